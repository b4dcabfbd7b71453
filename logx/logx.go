// Package logx is a small leveled logger configured from the environment.
//
//	LOG_LEVEL   TRACE | DEBUG | INFO (default) | WARN | ERROR | OFF
//	LOG_FORMAT  console (default) | json | cloudwatch
//	LOG_COLOR   true (default) | false, console format only
//	LOG_CALLER  false (default) | true
//
// Messages use fmt verbs. Structs, maps and slices passed with %v are rendered
// as indented JSON when the message is logged at DEBUG or TRACE.
package logx

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Level is a logging severity
type Level int

const (
	TraceLevel Level = iota
	DebugLevel
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
	OffLevel
)

func (l Level) String() string {
	switch l {
	case TraceLevel:
		return "TRACE"
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	case OffLevel:
		return "OFF"
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// ParseLevel parses a level name; unknown names fall back to INFO
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return TraceLevel
	case "DEBUG":
		return DebugLevel
	case "WARN", "WARNING":
		return WarnLevel
	case "ERROR":
		return ErrorLevel
	case "FATAL":
		return FatalLevel
	case "OFF", "NONE":
		return OffLevel
	}
	return InfoLevel
}

// Format selects the output encoding
type Format string

const (
	FormatConsole    Format = "console"
	FormatJSON       Format = "json"
	FormatCloudWatch Format = "cloudwatch"
)

type logger struct {
	mu       sync.Mutex
	out      io.Writer
	level    Level
	format   Format
	useColor bool
	caller   bool
	exit     func(int)
}

var std = newFromEnv()

func newFromEnv() *logger {
	l := &logger{
		out:      os.Stderr,
		level:    ParseLevel(os.Getenv("LOG_LEVEL")),
		format:   FormatConsole,
		useColor: true,
		exit:     os.Exit,
	}

	switch Format(strings.ToLower(os.Getenv("LOG_FORMAT"))) {
	case FormatJSON:
		l.format = FormatJSON
	case FormatCloudWatch:
		l.format = FormatCloudWatch
	}

	if v := os.Getenv("LOG_COLOR"); v != "" {
		l.useColor = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("LOG_CALLER"); v != "" {
		l.caller = strings.EqualFold(v, "true") || v == "1"
	}

	return l
}

// SetLevel changes the minimum level
func SetLevel(level Level) {
	std.mu.Lock()
	std.level = level
	std.mu.Unlock()
}

// GetLevel returns the minimum level
func GetLevel() Level {
	std.mu.Lock()
	defer std.mu.Unlock()
	return std.level
}

// SetOutput redirects log output
func SetOutput(w io.Writer) {
	std.mu.Lock()
	std.out = w
	std.mu.Unlock()
}

// SetFormat changes the output encoding
func SetFormat(f Format) {
	std.mu.Lock()
	std.format = f
	std.mu.Unlock()
}

// SetColor toggles colored console output
func SetColor(enabled bool) {
	std.mu.Lock()
	std.useColor = enabled
	std.mu.Unlock()
}

// IsLevelEnabled reports whether messages at level are emitted
func IsLevelEnabled(level Level) bool {
	std.mu.Lock()
	defer std.mu.Unlock()
	return level >= std.level && std.level != OffLevel
}

func Trace(format string, args ...any) { std.log(TraceLevel, format, args...) }
func Debug(format string, args ...any) { std.log(DebugLevel, format, args...) }
func Info(format string, args ...any)  { std.log(InfoLevel, format, args...) }
func Warn(format string, args ...any)  { std.log(WarnLevel, format, args...) }
func Error(format string, args ...any) { std.log(ErrorLevel, format, args...) }

// Fatal logs and exits with status 1
func Fatal(format string, args ...any) {
	std.log(FatalLevel, format, args...)
	std.exit(1)
}

// DebugStruct logs v as indented JSON under name
func DebugStruct(name string, v any) {
	if !IsLevelEnabled(DebugLevel) {
		return
	}
	std.log(DebugLevel, "%s: %s", name, pretty(v))
}

func (l *logger) log(level Level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.level == OffLevel || level < l.level {
		return
	}

	if level <= DebugLevel && l.format == FormatConsole {
		args = expandStructs(args)
	}
	msg := fmt.Sprintf(format, args...)

	var caller string
	if l.caller {
		if _, file, line, ok := runtime.Caller(2); ok {
			caller = fmt.Sprintf("%s:%d", filepath.Base(file), line)
		}
	}

	now := time.Now()
	switch l.format {
	case FormatJSON:
		entry := map[string]any{
			"time":  now.Format(time.RFC3339Nano),
			"level": level.String(),
			"msg":   msg,
		}
		if caller != "" {
			entry["caller"] = caller
		}
		b, _ := json.Marshal(entry)
		fmt.Fprintln(l.out, string(b))
	case FormatCloudWatch:
		line := strings.ReplaceAll(msg, "\n", " ")
		if caller != "" {
			fmt.Fprintf(l.out, "%s [%s] %s %s\n", now.Format(time.RFC3339), level, caller, line)
		} else {
			fmt.Fprintf(l.out, "%s [%s] %s\n", now.Format(time.RFC3339), level, line)
		}
	default:
		tag := fmt.Sprintf("%-5s", level.String())
		if l.useColor {
			tag = levelColor(level).Sprint(tag)
		}
		prefix := now.Format("15:04:05.000") + " " + tag
		if caller != "" {
			prefix += " " + caller
		}
		fmt.Fprintf(l.out, "%s %s\n", prefix, msg)
	}
}

func levelColor(level Level) *color.Color {
	switch level {
	case TraceLevel:
		return color.New(color.FgHiBlack)
	case DebugLevel:
		return color.New(color.FgCyan)
	case InfoLevel:
		return color.New(color.FgGreen)
	case WarnLevel:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}

// expandStructs replaces composite arguments with their JSON rendering
func expandStructs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		switch a.(type) {
		case nil, error, fmt.Stringer, string, []byte:
			out[i] = a
			continue
		}
		if isComposite(a) {
			out[i] = pretty(a)
		} else {
			out[i] = a
		}
	}
	return out
}

func isComposite(v any) bool {
	s := fmt.Sprintf("%T", v)
	return strings.HasPrefix(s, "[]") || strings.HasPrefix(s, "map[") ||
		strings.HasPrefix(s, "*") || strings.Contains(s, ".")
}

func pretty(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(b)
}
