package sse

import (
	"bufio"
	"bytes"
	"io"
)

// Event is one server-sent event frame.
type Event struct {
	Type string
	Data []byte
}

// Reader splits a server-sent event stream into frames.
type Reader struct {
	reader *bufio.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{reader: bufio.NewReader(r)}
}

// ReadEvent returns the next frame. A frame ends at a blank line; its data
// lines are joined with "\n". Comments and unknown fields are ignored.
// io.EOF is returned once the stream ends, after any final unterminated frame.
func (r *Reader) ReadEvent() (Event, error) {
	var ev Event
	var data [][]byte
	seen := false

	for {
		line, err := r.reader.ReadBytes('\n')
		if err != nil && (err != io.EOF || len(line) == 0) {
			if err == io.EOF && seen {
				ev.Data = bytes.Join(data, []byte("\n"))
				return ev, nil
			}
			return Event{}, err
		}
		atEOF := err == io.EOF

		line = bytes.TrimRight(line, "\r\n")
		if len(line) == 0 {
			if seen {
				ev.Data = bytes.Join(data, []byte("\n"))
				return ev, nil
			}
			continue
		}

		field, value, _ := bytes.Cut(line, []byte(":"))
		value = bytes.TrimPrefix(value, []byte(" "))

		switch string(field) {
		case "event":
			ev.Type = string(value)
			seen = true
		case "data":
			data = append(data, value)
			seen = true
		}

		if atEOF {
			if seen {
				ev.Data = bytes.Join(data, []byte("\n"))
				return ev, nil
			}
			return Event{}, io.EOF
		}
	}
}
