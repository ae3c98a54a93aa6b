// Package diag provides the leveled, styled logger used to report
// resolver and fetcher diagnostics without aborting the operations that
// emit them.
package diag

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Level controls how much is printed. Greater means more output.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// Options configures a Logger.
type Options struct {
	// Out is where styled, human-facing lines are printed. Defaults to os.Stdout.
	Out io.Writer

	// Level controls the verbosity. The zero value is LevelError.
	Level Level

	// Component tags every line (e.g. "resolve", "fetch"). Optional.
	Component string
}

// Logger is the package's leveled, styled logger.
type Logger struct {
	out       io.Writer
	mu        sync.Mutex
	style     styles
	component string
	level     Level
}

type styles struct {
	info   lipgloss.Style
	warn   lipgloss.Style
	err    lipgloss.Style
	debug  lipgloss.Style
	banner lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		info:   lipgloss.NewStyle(),
		warn:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		err:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		debug:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		banner: lipgloss.NewStyle().Bold(true).Border(lipgloss.NormalBorder()).Padding(0, 1).Margin(1, 0),
	}
}

// New creates a Logger.
func New(opts Options) *Logger {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	return &Logger{
		out:       opts.Out,
		style:     defaultStyles(),
		component: opts.Component,
		level:     opts.Level,
	}
}

var (
	initOnce sync.Once
	def      *Logger
)

// Init sets the process-wide logger. Call once from main before L() is used.
func Init(opts Options) {
	initOnce.Do(func() {
		def = New(opts)
	})
}

// L returns the process-wide logger, defaulting to LevelWarn on stdout if
// Init was never called.
func L() *Logger {
	if def == nil {
		Init(Options{Level: LevelWarn})
	}
	return def
}

// SetLevel adjusts verbosity, e.g. from a --verbose/-v CLI flag.
func (l *Logger) SetLevel(lvl Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = lvl
}

func (l *Logger) line(tag string, style lipgloss.Style, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	ts := time.Now().Format("2006-01-02T15:04:05.000")
	component := ""
	if l.component != "" {
		component = fmt.Sprintf("[%s] ", l.component)
	}
	rendered := fmt.Sprintf("[%s] [%s] %s%s", ts, tag, component, msg)

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, style.Render(rendered))
}

// Error always prints.
func (l *Logger) Error(format string, args ...any) {
	l.line("ERR ", l.style.err, format, args...)
}

// Warn prints at LevelWarn and above.
func (l *Logger) Warn(format string, args ...any) {
	if l.level >= LevelWarn {
		l.line("WARN", l.style.warn, format, args...)
	}
}

// Info prints at LevelInfo and above.
func (l *Logger) Info(format string, args ...any) {
	if l.level >= LevelInfo {
		l.line("INFO", l.style.info, format, args...)
	}
}

// Debug prints only at LevelDebug.
func (l *Logger) Debug(format string, args ...any) {
	if l.level >= LevelDebug {
		l.line("DEBG", l.style.debug, format, args...)
	}
}

// Banner prints a bordered section title, used at the start of a phase
// (seed, resolve, materialize, fetch).
func (l *Logger) Banner(title string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, l.style.banner.Render(title))
}

// Package-level convenience wrappers over L().
func Errorf(format string, args ...any) { L().Error(format, args...) }
func Warnf(format string, args ...any)  { L().Warn(format, args...) }
func Infof(format string, args ...any)  { L().Info(format, args...) }
func Debugf(format string, args ...any) { L().Debug(format, args...) }
func Banner(title string)               { L().Banner(title) }
