package vmm

import (
	"testing"

	"github.com/HollowLamp/cse-os/kernel/mem/pmm"
)

func TestPTEFlags(t *testing.T) {
	var p pte

	if p.HasAnyFlag(FlagRead | FlagWrite) {
		t.Fatal("expected a zero entry to have no flags set")
	}

	p.SetFlags(FlagRead | FlagWrite)
	if !p.HasFlags(FlagRead | FlagWrite) {
		t.Fatal("expected both flags to be set")
	}
	if !p.HasAnyFlag(FlagRead) {
		t.Fatal("expected HasAnyFlag to report true for a subset")
	}

	p.ClearFlags(FlagRead)
	if p.HasFlags(FlagRead | FlagWrite) {
		t.Fatal("expected HasFlags to report false once a required flag is cleared")
	}
	if !p.HasFlags(FlagWrite) {
		t.Fatal("expected the untouched flag to survive ClearFlags")
	}
}

func TestPTEFrameEncoding(t *testing.T) {
	var p pte
	f := pmm.Frame(321)

	p.SetFlags(FlagValid | FlagRead)
	p.SetFrame(f)

	if got := p.Frame(); got != f {
		t.Fatalf("expected frame %v; got %v", f, got)
	}
	if !p.HasFlags(FlagValid | FlagRead) {
		t.Fatal("expected SetFrame to preserve existing flag bits")
	}
}
