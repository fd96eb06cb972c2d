package chain

import (
	"testing"

	"bitnode/internal/block"
	"bitnode/internal/chainerr"
)

func sampleHeader(nonce uint32) block.Block {
	return block.NewBlock(1, [32]byte{}, [32]byte{}, 0, 0x1d00ffff, nonce, nil)
}

func TestAppendHeaderRejectsRecentDuplicate(t *testing.T) {
	s := NewState(true)

	h := sampleHeader(1)
	if err := s.AppendHeader(h); err != nil {
		t.Fatalf("first AppendHeader: %v", err)
	}
	if err := s.AppendHeader(h); err != chainerr.ErrDuplicateHeader {
		t.Fatalf("expected ErrDuplicateHeader, got %v", err)
	}
}

func TestAppendHeaderAllowsDuplicateOutsideWindow(t *testing.T) {
	s := NewState(true)

	h := sampleHeader(1)
	if err := s.AppendHeader(h); err != nil {
		t.Fatalf("AppendHeader: %v", err)
	}
	for i := 0; i < duplicateWindow; i++ {
		if err := s.AppendHeader(sampleHeader(uint32(i + 2))); err != nil {
			t.Fatalf("AppendHeader filler %d: %v", i, err)
		}
	}
	if err := s.AppendHeader(h); err != nil {
		t.Errorf("expected duplicate outside the window to be accepted, got %v", err)
	}
}

func TestLocatorIsTipFirst(t *testing.T) {
	s := NewState(true)
	for i := uint32(1); i <= 3; i++ {
		if err := s.AppendHeader(sampleHeader(i)); err != nil {
			t.Fatalf("AppendHeader: %v", err)
		}
	}

	locator := s.Locator(2)
	if len(locator) != 2 {
		t.Fatalf("locator length = %d, want 2", len(locator))
	}
	tipHash, ok := s.TipHash()
	if !ok {
		t.Fatal("TipHash: no tip")
	}
	if locator[0] != tipHash {
		t.Error("locator[0] should be the tip hash")
	}
}

func TestPeerPoolStartsEmpty(t *testing.T) {
	s := NewState(true)
	if s.PeerCount() != 0 {
		t.Fatalf("expected empty peer pool, got %d", s.PeerCount())
	}
}
