package transactions

import (
	"bitnode/internal/encoding"
	"bitnode/internal/keys"
	"bitnode/internal/script"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"slices"
)

// Transaction is the legacy (non-SegWit) wire transaction of spec §3. SegWit
// parsing is a non-goal.
type Transaction struct {
	Version  uint32
	Inputs   []TxIn
	Outputs  []TxOut
	Locktime uint32
}

func NewTransaction(version uint32, inputs []TxIn, outputs []TxOut, locktime uint32) Transaction {
	return Transaction{
		Version:  version,
		Inputs:   inputs,
		Outputs:  outputs,
		Locktime: locktime,
	}
}

func (t Transaction) String() string {
	id, _ := t.ID()
	return fmt.Sprintf("tx: %s\n   version:\t%d\n   tx_ins:\t%v\n   tx_outs:\t%v\n   locktime:\t%d",
		id, t.Version, t.Inputs, t.Outputs, t.Locktime)
}

// ID returns the hex-encoded, display-order (reversed) double-SHA256 of the
// serialized transaction.
func (t *Transaction) ID() (string, error) {
	hash, err := t.IDBytes()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", hash), nil
}

// IDBytes returns the display-order (reversed) transaction hash.
func (t *Transaction) IDBytes() ([]byte, error) {
	hash, err := t.Hash()
	if err != nil {
		return nil, err
	}
	reversed := make([]byte, len(hash))
	copy(reversed, hash)
	slices.Reverse(reversed)
	return reversed, nil
}

// Hash returns the internal (wire-order) double-SHA256 identity used as the
// key into the chain state's block/UTXO maps.
func (t *Transaction) Hash() ([]byte, error) {
	serialized, err := t.Serialize()
	if err != nil {
		return nil, err
	}
	return encoding.Hash256(serialized), nil
}

func (t *Transaction) Serialize() ([]byte, error) {
	var result bytes.Buffer

	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, t.Version)
	if _, err := result.Write(buf); err != nil {
		return nil, fmt.Errorf("tx serialization error (version) - %w", err)
	}

	inputLenBytes, err := encoding.EncodeVarInt(uint64(len(t.Inputs)))
	if err != nil {
		return nil, err
	}
	if _, err := result.Write(inputLenBytes); err != nil {
		return nil, fmt.Errorf("tx serialization error (inputs length) - %w", err)
	}
	for i := range t.Inputs {
		data, err := t.Inputs[i].Serialize()
		if err != nil {
			return nil, fmt.Errorf("tx serialization error (input %d) - %w", i, err)
		}
		if _, err := result.Write(data); err != nil {
			return nil, fmt.Errorf("tx serialization error (input %d) - %w", i, err)
		}
	}

	outputLenBytes, err := encoding.EncodeVarInt(uint64(len(t.Outputs)))
	if err != nil {
		return nil, err
	}
	if _, err := result.Write(outputLenBytes); err != nil {
		return nil, fmt.Errorf("tx serialization error (outputs length) - %w", err)
	}
	for i := range t.Outputs {
		data, err := t.Outputs[i].Serialize()
		if err != nil {
			return nil, fmt.Errorf("tx serialization error (output %d) - %w", i, err)
		}
		if _, err := result.Write(data); err != nil {
			return nil, fmt.Errorf("tx serialization error (output %d) - %w", i, err)
		}
	}

	binary.LittleEndian.PutUint32(buf, t.Locktime)
	if _, err := result.Write(buf); err != nil {
		return nil, fmt.Errorf("tx serialization error (locktime) - %w", err)
	}

	return result.Bytes(), nil
}

func ParseTransaction(r io.Reader) (Transaction, error) {
	buf := make([]byte, 4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Transaction{}, fmt.Errorf("tx parse error (version) - %w", err)
	}
	version := binary.LittleEndian.Uint32(buf)

	numIn, err := encoding.ReadVarInt(r)
	if err != nil {
		return Transaction{}, fmt.Errorf("tx parse error (txin count) - %w", err)
	}
	txins := make([]TxIn, 0, numIn)
	for i := uint64(0); i < numIn; i++ {
		txin, err := ParseTxIn(r)
		if err != nil {
			return Transaction{}, err
		}
		txins = append(txins, txin)
	}

	numOut, err := encoding.ReadVarInt(r)
	if err != nil {
		return Transaction{}, fmt.Errorf("tx parse error (txout count) - %w", err)
	}
	txouts := make([]TxOut, 0, numOut)
	for i := uint64(0); i < numOut; i++ {
		txout, err := ParseTxOut(r)
		if err != nil {
			return Transaction{}, err
		}
		txouts = append(txouts, txout)
	}

	if _, err := io.ReadFull(r, buf); err != nil {
		return Transaction{}, fmt.Errorf("tx parse error (locktime) - %w", err)
	}
	locktime := binary.LittleEndian.Uint32(buf)

	tx := Transaction{
		Version:  version,
		Inputs:   txins,
		Outputs:  txouts,
		Locktime: locktime,
	}
	if err := tx.checkCoinbaseInvariant(); err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

// checkCoinbaseInvariant enforces spec §3: if the first input is the
// coinbase outpoint, it must be the only input.
func (t *Transaction) checkCoinbaseInvariant() error {
	if len(t.Inputs) == 0 {
		return fmt.Errorf("transaction has no inputs")
	}
	if t.Inputs[0].IsCoinbase() && len(t.Inputs) != 1 {
		return fmt.Errorf("coinbase transaction must have exactly 1 input, got %d", len(t.Inputs))
	}
	return nil
}

// IsCoinbase reports whether this is a coinbase transaction.
func (t *Transaction) IsCoinbase() bool {
	return len(t.Inputs) == 1 && t.Inputs[0].IsCoinbase()
}

// CoinbaseHeight decodes the block height (BIP34) from the first element of a
// coinbase transaction's scriptSig, read as a script number of at most 4
// bytes, or -1 if not coinbase or the element is empty.
func (t *Transaction) CoinbaseHeight() int64 {
	if !t.IsCoinbase() {
		return -1
	}
	cmds := t.Inputs[0].ScriptSig.CommandStack
	if len(cmds) == 0 || len(cmds[0].Data) == 0 {
		return -1
	}
	data := cmds[0].Data
	if len(data) > 4 {
		data = data[:4]
	}
	return script.DecodeNum(data)
}

// SigHash computes the legacy (pre-BIP143) signature hash for input
// inputIndex, given the pk_script of the output it spends (spec §4.6 step
// 5): all other inputs get an empty sig_script, this one gets prevPkScript
// in place of its sig_script, then SIGHASH_ALL is appended before hashing.
func (t *Transaction) SigHash(inputIndex int, prevPkScript script.Script) ([]byte, error) {
	if inputIndex < 0 || inputIndex >= len(t.Inputs) {
		return nil, fmt.Errorf("inputIndex %d out of range", inputIndex)
	}

	modifiedInputs := make([]TxIn, len(t.Inputs))
	for i, input := range t.Inputs {
		modifiedInputs[i] = TxIn{
			PrevTx:   input.PrevTx,
			PrevIdx:  input.PrevIdx,
			Sequence: input.Sequence,
		}
		if i == inputIndex {
			modifiedInputs[i].ScriptSig = prevPkScript
		} else {
			modifiedInputs[i].ScriptSig = script.NewScript(nil)
		}
	}

	modifiedTx := Transaction{
		Version:  t.Version,
		Inputs:   modifiedInputs,
		Outputs:  t.Outputs,
		Locktime: t.Locktime,
	}

	serialized, err := modifiedTx.Serialize()
	if err != nil {
		return nil, err
	}

	sighashType := make([]byte, 4)
	binary.LittleEndian.PutUint32(sighashType, encoding.SIGHASH_ALL)
	serialized = append(serialized, sighashType...)

	return encoding.Hash256(serialized), nil
}

// SignInput signs input inputIndex against prevPkScript and sets its
// sig_script to varint(len)||sig||0x21||compressed_pubkey (spec §4.6 step
// 5).
func (t *Transaction) SignInput(inputIndex int, privKey *keys.PrivateKey, prevPkScript script.Script) error {
	z, err := t.SigHash(inputIndex, prevPkScript)
	if err != nil {
		return err
	}

	sig, err := privKey.SignHash(z)
	if err != nil {
		return err
	}

	derSig := sig.Serialize()
	derSigWithHashType := append(derSig, byte(encoding.SIGHASH_ALL>>24))

	pubKey := privKey.PublicKey()
	secPubKey := pubKey.Serialize(true)

	t.Inputs[inputIndex].ScriptSig = script.NewScript([]script.ScriptCommand{
		{IsData: true, Data: derSigWithHashType},
		{IsData: true, Data: secPubKey},
	})
	return nil
}

// VerifyInput checks input inputIndex's sig_script against prevPkScript
// (spec §4.6 P2PKH validation).
func (t *Transaction) VerifyInput(inputIndex int, prevPkScript script.Script) (bool, error) {
	z, err := t.SigHash(inputIndex, prevPkScript)
	if err != nil {
		return false, err
	}
	return script.ValidateSigScript(t.Inputs[inputIndex].ScriptSig, prevPkScript, z)
}

// Fee returns inputSum - outputSum in satoshis, given the values of the
// outputs this transaction's inputs spend (indexed the same as t.Inputs).
func (t *Transaction) Fee(inputValues []uint64) (int64, error) {
	if len(inputValues) != len(t.Inputs) {
		return 0, fmt.Errorf("need %d input values, got %d", len(t.Inputs), len(inputValues))
	}
	var inputSum uint64
	for _, v := range inputValues {
		inputSum += v
	}
	var outputSum uint64
	for _, out := range t.Outputs {
		outputSum += out.Amount
	}
	return int64(inputSum) - int64(outputSum), nil
}
