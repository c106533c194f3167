package elf

import (
	"reflect"
	"unsafe"

	"github.com/HollowLamp/cse-os/kernel/mem"
	"github.com/HollowLamp/cse-os/kernel/mem/pmm"
)

// unsafeByteAt overlays a byte slice on top of a frame's backing memory so
// tests can inspect installed segment contents directly.
func unsafeByteAt(f pmm.Frame) []byte {
	return *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{
		Data: f.Address(),
		Len:  int(mem.PageSize),
		Cap:  int(mem.PageSize),
	}))
}
