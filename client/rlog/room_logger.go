package rlog

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
)

type Logger interface {
	Logf(format string, v ...any)
}

type subsystemLogger struct {
	subsystem string
	registry  *Registry
}

func (s *subsystemLogger) Logf(format string, v ...any) {
	s.registry.logf(s.subsystem, format, v...)
}

type logEntry struct {
	subsystem string
	formatted string
}

// Registry hands out per-subsystem loggers that all funnel into one writer.
// Writes go through an inbox goroutine so callers never block on IO.
type Registry struct {
	label string

	lock           sync.RWMutex
	loggers        map[string]*log.Logger
	out            io.Writer
	currentLogFunc func(*log.Logger, string, ...any)

	inbox chan logEntry
}

func NewRegistry(label string, out io.Writer, logging bool) *Registry {
	r := &Registry{
		label:          label,
		loggers:        make(map[string]*log.Logger),
		out:            out,
		currentLogFunc: nilLogf,
		inbox:          make(chan logEntry, 600),
	}

	if logging {
		r.currentLogFunc = defaultLogf
	}

	return r
}

func (r *Registry) RegisterSubsystem(subsystem string) Logger {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.loggers[subsystem]; !ok {
		r.loggers[subsystem] = log.New(r.out, fmt.Sprintf("[[%s] %s]: ", r.label, subsystem), log.Ldate|log.Ltime)
	}
	return &subsystemLogger{subsystem, r}
}

func (r *Registry) EnableLogging() {
	r.lock.Lock()
	r.currentLogFunc = defaultLogf
	r.lock.Unlock()
}

func (r *Registry) DisableLogging() {
	r.lock.Lock()
	r.currentLogFunc = nilLogf
	r.lock.Unlock()
}

func (r *Registry) logf(subsystem, format string, v ...any) {
	select {
	case r.inbox <- logEntry{subsystem, fmt.Sprintf(format, v...)}:
	default:
		// Full inbox drops the line rather than stalling a debounce timer.
	}
}

func (r *Registry) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-r.inbox:
			r.actualWrite(msg.subsystem, msg.formatted)
		}
	}
}

func (r *Registry) actualWrite(subsystem, formatted string) error {
	r.lock.Lock()
	logFunc := r.currentLogFunc
	logger, ok := r.loggers[subsystem]
	r.lock.Unlock()

	if !ok {
		return fmt.Errorf("Logger is not setup for this subsystem")
	}
	if logFunc != nil {
		logFunc(logger, formatted)
	}
	return nil
}

func defaultLogf(l *log.Logger, format string, a ...any) {
	l.Printf(format, a...)
}

func nilLogf(*log.Logger, string, ...any) {}

// Nop returns a logger that discards everything; handy as a default when a
// component is constructed without a registry.
func Nop() Logger { return nopLogger{} }

type nopLogger struct{}

func (nopLogger) Logf(string, ...any) {}
