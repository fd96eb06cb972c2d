package ibd

import (
	"testing"

	"bitnode/internal/block"
)

func TestSplitIntoNEvenDivision(t *testing.T) {
	hashes := make([][32]byte, 8)
	for i := range hashes {
		hashes[i][0] = byte(i)
	}

	chunks := splitIntoN(hashes, 4)
	if len(chunks) != 4 {
		t.Fatalf("expected 4 chunks, got %d", len(chunks))
	}
	total := 0
	for _, c := range chunks {
		if len(c) != 2 {
			t.Errorf("expected chunk size 2, got %d", len(c))
		}
		total += len(c)
	}
	if total != len(hashes) {
		t.Errorf("total split hashes = %d, want %d", total, len(hashes))
	}
}

func TestSplitIntoNUnevenDivision(t *testing.T) {
	hashes := make([][32]byte, 5)
	chunks := splitIntoN(hashes, 2)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if len(chunks[0])+len(chunks[1]) != 5 {
		t.Errorf("chunks don't cover all hashes: %d + %d != 5", len(chunks[0]), len(chunks[1]))
	}
}

func TestSplitIntoNMoreWorkersThanHashes(t *testing.T) {
	hashes := make([][32]byte, 3)
	chunks := splitIntoN(hashes, 10)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks (capped to hash count), got %d", len(chunks))
	}
}

func TestHeaderHashesLength(t *testing.T) {
	batch := []block.Block{
		block.NewBlock(1, [32]byte{}, [32]byte{}, 0, 0x1d00ffff, 1, nil),
		block.NewBlock(1, [32]byte{}, [32]byte{}, 0, 0x1d00ffff, 2, nil),
	}
	hashes := headerHashes(batch)
	if len(hashes) != 2 {
		t.Fatalf("expected 2 hashes, got %d", len(hashes))
	}
	if hashes[0] == hashes[1] {
		t.Error("distinct headers should hash differently")
	}
}
