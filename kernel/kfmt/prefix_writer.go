package kfmt

import (
	"bytes"
	"io"
)

// PrefixWriter is an io.Writer that wraps another io.Writer and injects a
// prefix at the beginning of each line. Subsystems use it to tag their log
// output, e.g. "[trap] ".
type PrefixWriter struct {
	// A writer where all writes get sent to. If nil, writes are sent to
	// the active Printf output sink (or the early print buffer).
	Sink io.Writer

	// The prefix injected at the beginning of each line.
	Prefix []byte

	// midLine is set while the current line has been started but has not
	// seen its terminating '\n' yet.
	midLine bool
}

// Write forwards p to the sink, emitting the prefix before the first byte of
// every line. The prefix is written lazily, so a trailing newline does not
// produce a dangling prefix. The returned count excludes injected prefixes.
func (w *PrefixWriter) Write(p []byte) (int, error) {
	var written int

	sink := w.Sink
	if sink == nil {
		sink = outputSink
	}
	if sink == nil {
		sink = &earlyPrintBuffer
	}

	for len(p) > 0 {
		if !w.midLine {
			if _, err := sink.Write(w.Prefix); err != nil {
				return written, err
			}
			w.midLine = true
		}

		chunk := p
		if nl := bytes.IndexByte(p, '\n'); nl >= 0 {
			chunk = p[:nl+1]
		}

		n, err := sink.Write(chunk)
		written += n
		if err != nil {
			return written, err
		}

		if chunk[len(chunk)-1] == '\n' {
			w.midLine = false
		}
		p = p[len(chunk):]
	}

	return written, nil
}
