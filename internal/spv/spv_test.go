package spv

import (
	"testing"

	"bitnode/internal/encoding"
)

func fixedHash(b byte) []byte {
	h := make([]byte, 32)
	h[0] = b
	return h
}

func TestProofOfInclusionAcceptsValidChain(t *testing.T) {
	leaf := fixedHash(1)
	sib1 := fixedHash(2)
	sib2 := fixedHash(3)

	step1 := encoding.MerkleParent(leaf, sib1)
	root := encoding.MerkleParent(step1, sib2)

	if !ProofOfInclusion(fixedHash(1), [][]byte{sib1, sib2}, root) {
		t.Error("expected valid proof chain to verify")
	}
}

func TestProofOfInclusionRejectsWrongRoot(t *testing.T) {
	leaf := fixedHash(1)
	sib1 := fixedHash(2)
	wrongRoot := fixedHash(99)

	if ProofOfInclusion(leaf, [][]byte{sib1}, wrongRoot) {
		t.Error("expected mismatched root to fail verification")
	}
}

func TestProofOfInclusionSingleSibling(t *testing.T) {
	leaf := fixedHash(5)
	sib := fixedHash(6)
	root := encoding.MerkleParent(fixedHash(5), sib)

	if !ProofOfInclusion(leaf, [][]byte{sib}, root) {
		t.Error("expected single-sibling proof to verify")
	}
}
