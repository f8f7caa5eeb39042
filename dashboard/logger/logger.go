package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorPurple = "\033[35m"
	colorWhite  = "\033[37m"
)

type LogType string

const (
	TypeSystem LogType = "SYS"
	TypeData   LogType = "DATA"
	TypeHTTP   LogType = "HTTP"
	TypeDB     LogType = "DB"
	TypeError  LogType = "ERR"
)

type Options struct {
	Name  string
	Level slog.Level
	// NoColor drops ANSI escapes, for files and CI logs.
	NoColor bool
	Out     io.Writer
}

type CustomHandler struct {
	opts   Options
	mu     *sync.Mutex
	attrs  []slog.Attr
	groups []string
}

func NewHandler(opts Options) *CustomHandler {
	if opts.Name == "" {
		opts.Name = "RetailDash"
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	return &CustomHandler{
		opts:  opts,
		mu:    &sync.Mutex{},
		attrs: make([]slog.Attr, 0),
	}
}

// ParseLevel maps a config string to a level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (h *CustomHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level
}

func (h *CustomHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next = append(next, h.attrs...)
	next = append(next, attrs...)
	return &CustomHandler{opts: h.opts, mu: h.mu, attrs: next, groups: h.groups}
}

func (h *CustomHandler) WithGroup(name string) slog.Handler {
	groups := append(append([]string{}, h.groups...), name)
	return &CustomHandler{opts: h.opts, mu: h.mu, attrs: h.attrs, groups: groups}
}

func (h *CustomHandler) color(c string) string {
	if h.opts.NoColor {
		return ""
	}
	return c
}

func (h *CustomHandler) Handle(_ context.Context, r slog.Record) error {
	timestamp := r.Time.Format("15:04:05")
	if r.Time.IsZero() {
		timestamp = time.Now().Format("15:04:05")
	}

	var levelColor, levelText string
	switch {
	case r.Level >= slog.LevelError:
		levelColor, levelText = colorRed, "ERROR"
	case r.Level >= slog.LevelWarn:
		levelColor, levelText = colorYellow, "WARN"
	case r.Level >= slog.LevelInfo:
		levelColor, levelText = colorGreen, "INFO"
	default:
		levelColor, levelText = colorPurple, "DEBUG"
	}

	all := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	all = append(all, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		all = append(all, a)
		return true
	})

	logType := getLogType(all)
	message := r.Message
	if r.Level >= slog.LevelError {
		if loc := getErrorLocation(all); loc != "" {
			message = fmt.Sprintf("%s (%s)", message, loc)
		}
		if details := getAttr(all, "error"); details != "" {
			message = fmt.Sprintf("%s: %s", message, details)
		}
	}
	if status := getAttr(all, "status"); status != "" {
		message = fmt.Sprintf("%s [Status: %s]", message, status)
	}

	var b strings.Builder
	prefix := strings.Join(h.groups, ".")
	for _, attr := range all {
		if isInternalAttr(attr.Key) {
			continue
		}
		key := attr.Key
		if prefix != "" {
			key = prefix + "." + key
		}
		fmt.Fprintf(&b, " %s=%v", key, attr.Value)
	}

	typeColor := colorCyan
	if logType == TypeError {
		typeColor = colorRed
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := fmt.Fprintf(h.opts.Out, "%s[%s] [%s] [%s%s%s] [%s%s%s] %s%s%s\n",
		h.color(colorWhite),
		h.opts.Name,
		timestamp,
		h.color(levelColor), levelText, h.color(colorWhite),
		h.color(typeColor), logType, h.color(colorWhite),
		message,
		b.String(),
		h.color(colorReset),
	)
	return err
}

func getLogType(attrs []slog.Attr) LogType {
	switch getAttr(attrs, "type") {
	case "data":
		return TypeData
	case "http":
		return TypeHTTP
	case "db":
		return TypeDB
	case "error":
		return TypeError
	default:
		return TypeSystem
	}
}

func getAttr(attrs []slog.Attr, key string) string {
	for i := len(attrs) - 1; i >= 0; i-- {
		if attrs[i].Key == key {
			return attrs[i].Value.String()
		}
	}
	return ""
}

func getErrorLocation(attrs []slog.Attr) string {
	if loc := getAttr(attrs, "error_location"); loc != "" {
		return loc
	}
	// slog.Error -> Logger.log -> Handle
	_, file, line, ok := runtime.Caller(4)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}

func isInternalAttr(key string) bool {
	switch key {
	case "type", "status", "error", "error_location":
		return true
	}
	return false
}
