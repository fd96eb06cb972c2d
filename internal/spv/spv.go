// Package spv implements the node's simplified-payment-verification
// ancillary paths (spec §4.7, C7): merkle root reconstruction and
// proof-of-inclusion against a block a full node has already downloaded.
package spv

import (
	"bytes"

	"bitnode/internal/block"
	"bitnode/internal/encoding"
)

// VerifyMerkleRoot recomputes fb's merkle root from its transaction list
// and checks it against the header's claimed root.
func VerifyMerkleRoot(fb *block.FullBlock) (bool, error) {
	return fb.ValidateMerkleRoot()
}

// ProofOfInclusion walks siblings from leaf to root, iteratively computing
// sha256d(current||sibling) with current always as the left operand, and
// reports whether the resulting hash matches root (spec §4.7). Callers
// must supply siblings already oriented so this left-always convention
// holds; the function itself performs no position bookkeeping.
func ProofOfInclusion(txid []byte, siblings [][]byte, root []byte) bool {
	current := txid
	for _, sibling := range siblings {
		current = encoding.MerkleParent(current, sibling)
	}
	return bytes.Equal(current, root)
}
