package console

import "testing"

func TestWritePassesBytesThroughUnmodified(t *testing.T) {
	var out []byte
	prev := putcFn
	defer func() { putcFn = prev }()
	putcFn = func(b byte) { out = append(out, b) }

	c := New()
	c.Write([]byte("ab\n"))

	if string(out) != "ab\n" {
		t.Fatalf("expected %q; got %q", "ab\n", out)
	}
}

func TestSetPutcInstallsTransmitFunction(t *testing.T) {
	prev := putcFn
	defer func() { putcFn = prev }()

	var got byte
	SetPutc(func(b byte) { got = b })

	c := New()
	c.WriteByte('Q')

	if got != 'Q' {
		t.Fatalf("expected 'Q'; got %q", got)
	}
}

func TestInputRingBufferFIFO(t *testing.T) {
	c := New()
	for _, b := range []byte("hi") {
		c.PushInput(b)
	}

	got, ok := c.ReadByte()
	if !ok || got != 'h' {
		t.Fatalf("expected 'h'; got %q, ok=%v", got, ok)
	}
	got, ok = c.ReadByte()
	if !ok || got != 'i' {
		t.Fatalf("expected 'i'; got %q, ok=%v", got, ok)
	}
	if _, ok := c.ReadByte(); ok {
		t.Fatal("expected the input buffer to be empty")
	}
}

func TestInputRingBufferDropsWhenFull(t *testing.T) {
	c := New()
	for i := 0; i < inputBufSize+10; i++ {
		c.PushInput(byte('a' + i%26))
	}

	count := 0
	for {
		if _, ok := c.ReadByte(); !ok {
			break
		}
		count++
	}
	if count != inputBufSize {
		t.Fatalf("expected exactly %d buffered bytes; got %d", inputBufSize, count)
	}
}
