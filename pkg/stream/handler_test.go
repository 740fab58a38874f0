package stream

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler(t *testing.T) {
	t.Run("HandlerFunc", func(t *testing.T) {
		var chunks []string
		var finalContent string
		var capturedError error

		handler := HandlerFunc{
			ChunkFunc: func(chunk []byte) error {
				chunks = append(chunks, string(chunk))
				return nil
			},
			CompleteFunc: func(content string) error {
				finalContent = content
				return nil
			},
			ErrorFunc: func(err error) {
				capturedError = err
			},
		}

		require.NoError(t, handler.OnChunk([]byte("Hello")))
		require.NoError(t, handler.OnChunk([]byte(" World")))
		require.NoError(t, handler.OnComplete("Hello World"))
		handler.OnError(errors.New("boom"))

		assert.Equal(t, []string{"Hello", " World"}, chunks)
		assert.Equal(t, "Hello World", finalContent)
		assert.EqualError(t, capturedError, "boom")
	})

	t.Run("HandlerFunc with nil functions", func(t *testing.T) {
		handler := HandlerFunc{}
		assert.NoError(t, handler.OnChunk([]byte("x")))
		assert.NoError(t, handler.OnComplete("x"))
		assert.NotPanics(t, func() { handler.OnError(errors.New("x")) })
	})
}

func TestToStreamingFunc(t *testing.T) {
	t.Run("should forward chunks", func(t *testing.T) {
		var got []string
		fn := ToStreamingFunc(HandlerFunc{ChunkFunc: func(c []byte) error {
			got = append(got, string(c))
			return nil
		}})

		require.NoError(t, fn(context.Background(), []byte("a")))
		require.NoError(t, fn(context.Background(), []byte("b")))
		assert.Equal(t, []string{"a", "b"}, got)
	})

	t.Run("should stop on a cancelled context without reporting", func(t *testing.T) {
		var chunkCalls, errCalls int
		fn := ToStreamingFunc(HandlerFunc{
			ChunkFunc: func([]byte) error { chunkCalls++; return nil },
			ErrorFunc: func(error) { errCalls++ },
		})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := fn(ctx, []byte("late"))
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, chunkCalls)
		assert.Zero(t, errCalls)
	})
}

func TestRecorder(t *testing.T) {
	var buf bytes.Buffer
	rec := NewRecorder(&buf)

	require.NoError(t, rec.OnChunk([]byte("Here is ")))
	require.NoError(t, rec.OnChunk([]byte("<Char")))
	require.NoError(t, rec.OnChunk([]byte("tData>\n{}</ChartData>")))
	require.NoError(t, rec.OnComplete(""))

	assert.Equal(t, []string{"Here is ", "<Char", "tData>\n{}</ChartData>"}, rec.Fragments())
	assert.Equal(t, 3, strings.Count(buf.String(), "\n"))

	replayed, err := ReadRecording(&buf)
	require.NoError(t, err)
	assert.Equal(t, rec.Fragments(), replayed)

	rec.OnError(errors.New("cut"))
	assert.EqualError(t, rec.Err(), "cut")
}

func TestReadRecordingInvalid(t *testing.T) {
	_, err := ReadRecording(strings.NewReader("\"ok\"\nnot-json\n"))
	assert.Error(t, err)
}

func TestMultiHandler(t *testing.T) {
	first := NewRecorder(nil)
	second := NewRecorder(nil)
	failing := HandlerFunc{CompleteFunc: func(string) error { return errors.New("persist failed") }}

	m := NewMultiHandler(first, failing, second)
	require.NoError(t, m.OnChunk([]byte("x")))
	err := m.OnComplete("x")
	assert.EqualError(t, err, "persist failed")

	m.OnError(errors.New("late"))
	assert.Equal(t, []string{"x"}, first.Fragments())
	assert.Equal(t, []string{"x"}, second.Fragments())
	assert.EqualError(t, second.Err(), "late")
}
