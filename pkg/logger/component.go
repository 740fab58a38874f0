package logger

import (
	"fmt"
	"strings"
)

// ComponentLogger tags every line with a component name and renders
// trailing key/value pairs as key=value.
type ComponentLogger struct {
	component string
}

// WithComponent returns a logger bound to component. It resolves the default
// logger on every call, so it may be created before Init.
func WithComponent(component string) *ComponentLogger {
	return &ComponentLogger{component: component}
}

func (c *ComponentLogger) Debug(msg string, keyvals ...any) {
	c.log(LevelDebug, msg, keyvals)
}

func (c *ComponentLogger) Info(msg string, keyvals ...any) {
	c.log(LevelInfo, msg, keyvals)
}

func (c *ComponentLogger) Warn(msg string, keyvals ...any) {
	c.log(LevelWarn, msg, keyvals)
}

func (c *ComponentLogger) Error(msg string, keyvals ...any) {
	c.log(LevelError, msg, keyvals)
}

func (c *ComponentLogger) log(level LogLevel, msg string, keyvals []any) {
	l := current()
	if l == nil || !l.shouldLog(level) {
		return
	}
	l.output(level, formatLine(c.component, msg, keyvals))
}

func formatLine(component, msg string, keyvals []any) string {
	var b strings.Builder
	b.WriteString(component)
	b.WriteString(": ")
	b.WriteString(msg)

	for i := 0; i < len(keyvals); i += 2 {
		b.WriteByte(' ')
		if i+1 >= len(keyvals) {
			fmt.Fprintf(&b, "%v=(missing)", keyvals[i])
			break
		}
		val := fmt.Sprintf("%v", keyvals[i+1])
		if strings.ContainsAny(val, " \t\n\"") {
			val = fmt.Sprintf("%q", val)
		}
		fmt.Fprintf(&b, "%v=%s", keyvals[i], val)
	}
	return b.String()
}
