package eio

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/karagenc/eio-server/internal/sync"
	"github.com/xiegeo/coloredgoroutine"
)

type (
	Debugger interface {
		Log(main string, v ...any)
		WithContext(context string) Debugger
		WithDynamicContext(context string, dynamicContext func() string) Debugger
	}

	noopDebugger struct{}

	printDebugger struct {
		out            io.Writer
		mu             *sync.Mutex
		context        string
		dynamicContext func() string
	}
)

func NewNoopDebugger() Debugger {
	return noopDebugger{}
}

func (d noopDebugger) Log(main string, _v ...any) {}

func (d noopDebugger) WithContext(context string) Debugger { return d }

func (d noopDebugger) WithDynamicContext(context string, _ func() string) Debugger { return d }

var stdoutMu sync.Mutex

// NewPrintDebugger writes to stdout. Output of each goroutine gets its own color.
func NewPrintDebugger() Debugger {
	return &printDebugger{
		out: coloredgoroutine.Colors(os.Stdout),
		mu:  &stdoutMu,
	}
}

// NewWriterDebugger writes plain lines to w.
func NewWriterDebugger(w io.Writer) Debugger {
	return &printDebugger{
		out: w,
		mu:  new(sync.Mutex),
	}
}

// Log writes one line: the context, the dynamic context, main and each
// value, separated by colons. Empty parts are left out.
func (d *printDebugger) Log(main string, v ...any) {
	parts := make([]string, 0, 3+len(v))
	if d.context != "" {
		parts = append(parts, d.context)
	}
	if d.dynamicContext != nil {
		if dc := d.dynamicContext(); dc != "" {
			parts = append(parts, dc)
		}
	}
	if main != "" {
		parts = append(parts, main)
	}
	for _, value := range v {
		parts = append(parts, fmt.Sprint(value))
	}

	line := strings.Join(parts, ": ") + "\n"

	d.mu.Lock()
	defer d.mu.Unlock()
	io.WriteString(d.out, line)
}

func (d printDebugger) WithContext(context string) Debugger {
	d.context = context
	d.dynamicContext = nil
	return &d
}

func (d printDebugger) WithDynamicContext(context string, dynamicContext func() string) Debugger {
	d.context = context
	d.dynamicContext = dynamicContext
	return &d
}
