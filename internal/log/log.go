// Package log provides structured, colored logging for mysterybox.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance.
var Logger zerolog.Logger

// Component loggers for different parts of the system.
var (
	Contract zerolog.Logger
	Host     zerolog.Logger
	Bank     zerolog.Logger
	RPC      zerolog.Logger
	Storage  zerolog.Logger
	Node     zerolog.Logger
)

const consoleTimeFormat = "15:04:05"

var (
	fileMu sync.Mutex
	file   *os.File
)

func init() {
	Logger = NewConsoleLogger(os.Stdout, zerolog.InfoLevel)
	initComponentLoggers()
}

// ParseLevel converts a level name. The empty string means info.
func ParseLevel(level string) (zerolog.Level, error) {
	if level == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
	return lvl, nil
}

// Init replaces the global and component loggers. Console output is colored
// unless jsonOutput is set. When path is non-empty every line is also
// appended to that file as JSON. Any file opened by a previous Init is
// closed.
func Init(level string, jsonOutput bool, path string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}

	var console io.Writer = os.Stdout
	if !jsonOutput {
		console = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: consoleTimeFormat}
	}

	var f *os.File
	out := console
	if path != "" {
		f, err = os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		out = zerolog.MultiLevelWriter(console, f)
	}

	Logger = zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	initComponentLoggers()
	swapFile(f)
	return nil
}

// Close closes the log file opened by Init, if any. Console logging keeps
// working.
func Close() error {
	fileMu.Lock()
	defer fileMu.Unlock()
	if file == nil {
		return nil
	}
	Logger = NewConsoleLogger(os.Stdout, Logger.GetLevel())
	initComponentLoggers()
	err := file.Close()
	file = nil
	return err
}

func swapFile(f *os.File) {
	fileMu.Lock()
	old := file
	file = f
	fileMu.Unlock()
	if old != nil {
		old.Close()
	}
}

// NewConsoleLogger creates a colored console logger.
func NewConsoleLogger(w io.Writer, lvl zerolog.Level) zerolog.Logger {
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: consoleTimeFormat}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// NewJSONLogger creates a structured JSON logger.
func NewJSONLogger(w io.Writer, lvl zerolog.Level) zerolog.Logger {
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

func initComponentLoggers() {
	Contract = WithComponent("contract")
	Host = WithComponent("host")
	Bank = WithComponent("bank")
	RPC = WithComponent("rpc")
	Storage = WithComponent("storage")
	Node = WithComponent("node")
}

// WithComponent returns a logger with a component field.
func WithComponent(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}

// WithContract returns a logger tagged with the deployed contract account.
func WithContract(account string) zerolog.Logger {
	return Logger.With().Str("contract", account).Logger()
}

// Event logs a contract event in the NEP-171 "EVENT_JSON" form. The raw
// event document is attached so log shippers can index it unchanged.
func Event(l zerolog.Logger, kind string, raw []byte) {
	l.Info().
		Str("event", kind).
		RawJSON("event_json", raw).
		Msg("EVENT_JSON")
}

// Silence drops all output. Tests call it to keep go test output clean.
func Silence() {
	Logger = zerolog.Nop()
	initComponentLoggers()
}
