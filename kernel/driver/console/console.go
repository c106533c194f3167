// Package console implements the kernel's serial-style output device: a
// byte-oriented UART sink and a fixed-size input ring buffer for characters
// received from the keyboard peripheral.
package console

const inputBufSize = 512

var (
	// putcFn transmits a single raw byte to the UART data register. It is
	// swapped out in tests, since the real implementation pokes a
	// memory-mapped device register that does not exist in a test binary.
	putcFn = func(b byte) {}

	// ActiveConsole is the console instance used by kfmt/early.Printf.
	ActiveConsole = New()
)

// SetPutc installs the function used to transmit a raw byte. kmain wires
// this to the platform's UART driver during boot.
func SetPutc(fn func(b byte)) {
	putcFn = fn
}

// Console is a single serial output/input device. Output goes straight to
// putcFn, byte for byte, with no newline or backspace translation; input
// is buffered in a small circular queue that PushInput fills and ReadByte
// drains.
type Console struct {
	in      [inputBufSize]byte
	inHead  int
	inTail  int
	inCount int
}

// New returns a Console with an empty input buffer.
func New() *Console {
	return &Console{}
}

// Write implements io.Writer.
func (c *Console) Write(data []byte) (int, error) {
	for _, b := range data {
		c.WriteByte(b)
	}
	return len(data), nil
}

// WriteByte transmits a single raw byte.
func (c *Console) WriteByte(b byte) error {
	putcFn(b)
	return nil
}

// PushInput enqueues a byte received from the keyboard peripheral. If the
// input buffer is full the byte is dropped.
func (c *Console) PushInput(b byte) {
	if c.inCount == inputBufSize {
		return
	}
	c.in[c.inTail] = b
	c.inTail = (c.inTail + 1) % inputBufSize
	c.inCount++
}

// ReadByte dequeues the oldest buffered input byte. The second return value
// is false if no input is available.
func (c *Console) ReadByte() (byte, bool) {
	if c.inCount == 0 {
		return 0, false
	}
	b := c.in[c.inHead]
	c.inHead = (c.inHead + 1) % inputBufSize
	c.inCount--
	return b, true
}
