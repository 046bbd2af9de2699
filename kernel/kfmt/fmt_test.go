package kfmt

import (
	"bytes"
	"testing"
)

func TestPrintf(t *testing.T) {
	defer func() {
		outputSink = nil
	}()

	// mute vet warnings about malformed printf formatting strings
	printfn := Printf

	specs := []struct {
		fn        func()
		expOutput string
	}{
		{
			func() { printfn("no args") },
			"no args",
		},
		{
			func() { printfn("%t %t", true, false) },
			"true false",
		},
		{
			func() { printfn("%s arg", "STRING") },
			"STRING arg",
		},
		{
			func() { printfn("%s arg", []byte("BYTE SLICE")) },
			"BYTE SLICE arg",
		},
		{
			func() { printfn("'%4s' arg with padding", "ABC") },
			"' ABC' arg with padding",
		},
		{
			func() { printfn("'%4s' arg longer than padding", "ABCDE") },
			"'ABCDE' arg longer than padding",
		},
		{
			func() { printfn("uint arg: %d", uint8(10)) },
			"uint arg: 10",
		},
		{
			func() { printfn("uint arg: %o", uint16(0777)) },
			"uint arg: 777",
		},
		{
			func() { printfn("uint arg: 0x%x", uint32(0xbadf00d)) },
			"uint arg: 0xbadf00d",
		},
		{
			func() { printfn("vector %8x", uint32(0x80)) },
			"vector 00000080",
		},
		{
			func() { printfn("code: %d", uint32(0xffffffff)) },
			"code: 4294967295",
		},
		{
			func() { printfn("uintptr 0x%x", uintptr(0xb8000)) },
			"uintptr 0xb8000",
		},
		{
			func() { printfn("int arg: %d", int8(-10)) },
			"int arg: -10",
		},
		{
			func() { printfn("int arg: '%5d'", int32(-10)) },
			"int arg: '  -10'",
		},
		{
			func() { printfn("int arg: %x", int64(-0xff)) },
			"int arg: -ff",
		},
		{
			func() { printfn("int arg: %5x", int(-0xf)) },
			"int arg: -000f",
		},
		{
			func() { printfn("zero: %d %x", 0, uint8(0)) },
			"zero: 0 0",
		},
		{
			func() { printfn("'%c%c'", 'h', uint8('i')) },
			"'hi'",
		},
		{
			func() { printfn("100%%") },
			"100%",
		},
		{
			func() { printfn("%d") },
			"(MISSING)",
		},
		{
			func() { printfn("%d", "not a number") },
			"%!(WRONGTYPE)",
		},
		{
			func() { printfn("%t", 1) },
			"%!(WRONGTYPE)",
		},
		{
			func() { printfn("%q", 1) },
			"%!(NOVERB)%!(EXTRA)",
		},
		{
			func() { printfn("trailing %") },
			"trailing %!(NOVERB)",
		},
		{
			func() { printfn("extra", 1, 2) },
			"extra%!(EXTRA)%!(EXTRA)",
		},
	}

	var buf bytes.Buffer
	SetOutputSink(&buf)

	for specIndex, spec := range specs {
		buf.Reset()
		spec.fn()

		if got := buf.String(); got != spec.expOutput {
			t.Errorf("[spec %d] expected to get %q; got %q", specIndex, spec.expOutput, got)
		}
	}
}

func TestPrintfToRingBuffer(t *testing.T) {
	defer func() {
		outputSink = nil
	}()

	earlyPrintBuffer.rIndex, earlyPrintBuffer.wIndex = 0, 0
	outputSink = nil

	Printf("IDT Initialization... %s", "OK")

	var buf bytes.Buffer
	SetOutputSink(&buf)

	if exp, got := "IDT Initialization... OK", buf.String(); got != exp {
		t.Fatalf("expected early output %q to be replayed; got %q", exp, got)
	}

	if GetOutputSink() != &buf {
		t.Fatal("expected GetOutputSink to return the attached sink")
	}
}

// nestingWriter prints to inner from inside its first Write call, the way a
// trap handler that logs would interrupt an in-flight Printf.
type nestingWriter struct {
	out    []byte
	inner  bytes.Buffer
	nested bool
}

func (w *nestingWriter) Write(p []byte) (int, error) {
	if !w.nested {
		w.nested = true
		Fprintf(&w.inner, "%d%c%x", 987654321, 'z', uint32(0xcafebabe))
	}
	w.out = append(w.out, p...)
	return len(p), nil
}

func TestFprintfReentrant(t *testing.T) {
	specs := []struct {
		format string
		arg    interface{}
		exp    string
	}{
		{"%d", 12345, "12345"},
		{"%8x", uint32(0xbeef), "0000beef"},
		{"%c", 'a', "a"},
		{"a", nil, "a"},
	}

	for specIndex, spec := range specs {
		var w nestingWriter
		if spec.arg == nil {
			Fprintf(&w, spec.format)
		} else {
			Fprintf(&w, spec.format, spec.arg)
		}

		if got := string(w.out); got != spec.exp {
			t.Errorf("[spec %d] expected outer output %q; got %q", specIndex, spec.exp, got)
		}

		if exp := "987654321zcafebabe"; w.inner.String() != exp {
			t.Errorf("[spec %d] expected nested output %q; got %q", specIndex, exp, w.inner.String())
		}
	}
}
