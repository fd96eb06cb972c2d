package script

import (
	"bitnode/internal/eccmath"
	"bitnode/internal/encoding"
	"bytes"
	"fmt"
	"math/big"
)

// ValidateSigScript checks a legacy P2PKH sig_script against the pk_script
// it is meant to unlock, per spec §4.6: verify hash160(pubkey) matches the
// template hash, then verify the ECDSA signature over the precomputed
// sighash. sigScript must carry exactly two data pushes: <der_sig+hashtype>
// <compressed_pubkey>, matching what SignInput produces.
func ValidateSigScript(sigScript, pkScript Script, hashToSign []byte) (bool, error) {
	templateHash, ok := pkScript.P2pkhHash160()
	if !ok {
		return false, fmt.Errorf("pkScript is not a p2pkh template")
	}
	if len(sigScript.CommandStack) != 2 {
		return false, fmt.Errorf("sigScript must have exactly 2 elements, got %d", len(sigScript.CommandStack))
	}
	sigCmd, pubKeyCmd := sigScript.CommandStack[0], sigScript.CommandStack[1]
	if !sigCmd.IsData || !pubKeyCmd.IsData {
		return false, fmt.Errorf("sigScript elements must both be data pushes")
	}

	pubKeyHash := encoding.Hash160(pubKeyCmd.Data)
	if !bytes.Equal(pubKeyHash, templateHash) {
		return false, nil
	}

	if len(sigCmd.Data) < 2 {
		return false, fmt.Errorf("signature too short")
	}
	der := sigCmd.Data[:len(sigCmd.Data)-1] // strip trailing SIGHASH_ALL byte

	sig, err := eccmath.ParseSignature(bytes.NewReader(der))
	if err != nil {
		return false, fmt.Errorf("invalid DER signature: %w", err)
	}

	bc := eccmath.NewBitcoin()
	tempPoint := eccmath.NewS256Point(bc.G, bc)
	pubPoint, err := tempPoint.Deserialize(pubKeyCmd.Data)
	if err != nil {
		return false, fmt.Errorf("invalid SEC pubkey: %w", err)
	}

	z := new(big.Int).SetBytes(hashToSign)
	return pubPoint.Verify(z, sig), nil
}
