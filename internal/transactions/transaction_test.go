package transactions

import (
	"bitnode/internal/encoding"
	"bitnode/internal/keys"
	"bitnode/internal/script"
	"bytes"
	"math/big"
	"testing"
)

func sampleOutpoint(b byte) []byte {
	prevTx := make([]byte, 32)
	prevTx[0] = b
	return prevTx
}

func TestTransactionSerializeParseRoundTrip(t *testing.T) {
	h160 := bytes.Repeat([]byte{0xab}, 20)
	txin := NewTxIn(sampleOutpoint(0x01), 0, 0xffffffff)
	txin.ScriptSig = script.NewScript([]script.ScriptCommand{
		{IsData: true, Data: []byte{0x30, 0x01}},
		{IsData: true, Data: bytes.Repeat([]byte{0x02}, 33)},
	})
	txout := TxOut{Amount: 5000, ScriptPubKey: script.P2pkhScript(h160)}

	tx := NewTransaction(1, []TxIn{txin}, []TxOut{txout}, 0)

	serialized, err := tx.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	parsed, err := ParseTransaction(bytes.NewReader(serialized))
	if err != nil {
		t.Fatalf("ParseTransaction: %v", err)
	}

	reserialized, err := parsed.Serialize()
	if err != nil {
		t.Fatalf("re-Serialize: %v", err)
	}
	if !bytes.Equal(serialized, reserialized) {
		t.Errorf("round trip mismatch:\n got  %x\n want %x", reserialized, serialized)
	}
}

func TestTransactionCoinbaseInvariant(t *testing.T) {
	coinbaseIn := NewTxIn(make([]byte, 32), 0xffffffff, 0xffffffff)
	coinbaseIn.ScriptSig = script.NewScript([]script.ScriptCommand{
		{IsData: true, Data: []byte{0x03, 0x00, 0x00}},
	})
	normalIn := NewTxIn(sampleOutpoint(0x02), 0, 0xffffffff)
	txout := TxOut{Amount: 100, ScriptPubKey: script.P2pkhScript(bytes.Repeat([]byte{0x01}, 20))}

	tx := NewTransaction(1, []TxIn{coinbaseIn, normalIn}, []TxOut{txout}, 0)
	serialized, err := tx.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	if _, err := ParseTransaction(bytes.NewReader(serialized)); err == nil {
		t.Errorf("expected error parsing coinbase tx with 2 inputs, got nil")
	}
}

func TestTransactionIsCoinbase(t *testing.T) {
	coinbaseIn := NewTxIn(make([]byte, 32), 0xffffffff, 0xffffffff)
	coinbaseIn.ScriptSig = script.NewScript([]script.ScriptCommand{
		{IsData: true, Data: script.EncodeNum(680000)},
	})
	tx := NewTransaction(1, []TxIn{coinbaseIn}, []TxOut{{Amount: 1, ScriptPubKey: script.NewScript(nil)}}, 0)

	if !tx.IsCoinbase() {
		t.Fatal("expected IsCoinbase() true")
	}
	if got := tx.CoinbaseHeight(); got != 680000 {
		t.Errorf("CoinbaseHeight() = %d, want 680000", got)
	}

	normalIn := NewTxIn(sampleOutpoint(0x03), 1, 0xffffffff)
	tx2 := NewTransaction(1, []TxIn{normalIn}, []TxOut{{Amount: 1, ScriptPubKey: script.NewScript(nil)}}, 0)
	if tx2.IsCoinbase() {
		t.Fatal("expected IsCoinbase() false for a normal input")
	}
}

func TestSignAndVerifyInput(t *testing.T) {
	priv := keys.NewPrivateKey(big.NewInt(12345))
	pubKey := priv.PublicKey()
	h160 := encoding.Hash160(pubKey.Serialize(true))
	prevPkScript := script.P2pkhScript(h160)

	txin := NewTxIn(sampleOutpoint(0x04), 0, 0xffffffff)
	txout := TxOut{Amount: 4500, ScriptPubKey: script.P2pkhScript(bytes.Repeat([]byte{0x09}, 20))}
	tx := NewTransaction(1, []TxIn{txin}, []TxOut{txout}, 0)

	if err := tx.SignInput(0, priv, prevPkScript); err != nil {
		t.Fatalf("SignInput: %v", err)
	}

	valid, err := tx.VerifyInput(0, prevPkScript)
	if err != nil {
		t.Fatalf("VerifyInput: %v", err)
	}
	if !valid {
		t.Fatal("expected signature to verify")
	}
}

func TestVerifyInputWrongKeyFails(t *testing.T) {
	priv := keys.NewPrivateKey(big.NewInt(777))
	otherPriv := keys.NewPrivateKey(big.NewInt(888))
	otherPub := otherPriv.PublicKey()
	otherH160 := encoding.Hash160(otherPub.Serialize(true))
	prevPkScript := script.P2pkhScript(otherH160)

	txin := NewTxIn(sampleOutpoint(0x05), 0, 0xffffffff)
	txout := TxOut{Amount: 1000, ScriptPubKey: script.P2pkhScript(bytes.Repeat([]byte{0x0a}, 20))}
	tx := NewTransaction(1, []TxIn{txin}, []TxOut{txout}, 0)

	if err := tx.SignInput(0, priv, prevPkScript); err != nil {
		t.Fatalf("SignInput: %v", err)
	}

	valid, err := tx.VerifyInput(0, prevPkScript)
	if err != nil {
		t.Fatalf("VerifyInput: %v", err)
	}
	if valid {
		t.Fatal("expected verification to fail: sig_script pubkey doesn't match pk_script hash")
	}
}

func TestFee(t *testing.T) {
	txin1 := NewTxIn(sampleOutpoint(0x06), 0, 0xffffffff)
	txin2 := NewTxIn(sampleOutpoint(0x07), 1, 0xffffffff)
	txout := TxOut{Amount: 900, ScriptPubKey: script.P2pkhScript(bytes.Repeat([]byte{0x0b}, 20))}
	tx := NewTransaction(1, []TxIn{txin1, txin2}, []TxOut{txout}, 0)

	fee, err := tx.Fee([]uint64{500, 500})
	if err != nil {
		t.Fatalf("Fee: %v", err)
	}
	if fee != 100 {
		t.Errorf("Fee = %d, want 100", fee)
	}

	if _, err := tx.Fee([]uint64{500}); err == nil {
		t.Error("expected error for mismatched input value count")
	}
}
