package transactions

import (
	"bitnode/internal/encoding"
	"bitnode/internal/script"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"slices"
)

type TxIn struct {
	PrevTx    []byte // display order (big-endian), 32 bytes
	PrevIdx   uint32
	ScriptSig script.Script
	Sequence  uint32
}

func NewTxIn(prevTx []byte, prevIdx, sequence uint32) TxIn {
	return TxIn{
		PrevTx:   prevTx,
		PrevIdx:  prevIdx,
		Sequence: sequence,
	}
}

func (t TxIn) String() string {
	return fmt.Sprintf("%x:%d", t.PrevTx, t.PrevIdx)
}

// IsCoinbase reports whether this input is the sentinel coinbase outpoint
// (txid = 32 zero bytes, index = 0xFFFFFFFF), per spec §3.
func (t TxIn) IsCoinbase() bool {
	if t.PrevIdx != 0xffffffff {
		return false
	}
	for _, b := range t.PrevTx {
		if b != 0 {
			return false
		}
	}
	return true
}

func ParseTxIn(r io.Reader) (TxIn, error) {
	prevTx := make([]byte, 32)
	if _, err := io.ReadFull(r, prevTx); err != nil {
		return TxIn{}, fmt.Errorf("txin parse error (prevtx) - %w", err)
	}
	slices.Reverse(prevTx)

	buf := make([]byte, 4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return TxIn{}, fmt.Errorf("txin parse error (previdx) - %w", err)
	}
	prevIdx := binary.LittleEndian.Uint32(buf)

	isCoinbase := prevIdx == 0xffffffff
	if isCoinbase {
		for _, b := range prevTx {
			if b != 0 {
				isCoinbase = false
				break
			}
		}
	}

	var scriptSig script.Script
	if isCoinbase {
		// coinbase scriptSig is arbitrary bytes (first 4 of which are the
		// block-height encoding, per spec §3); store as raw data so the
		// height field round-trips untouched.
		scriptBytes, err := script.ReadScriptBytes(r)
		if err != nil {
			return TxIn{}, fmt.Errorf("txin parse error (coinbase script) - %w", err)
		}
		if len(scriptBytes) == 0 {
			scriptSig = script.NewScript([]script.ScriptCommand{})
		} else {
			scriptSig = script.NewScript([]script.ScriptCommand{
				{Data: scriptBytes, IsData: true},
			})
		}
	} else {
		var err error
		scriptSig, err = script.ParseScript(r)
		if err != nil {
			return TxIn{}, fmt.Errorf("txin parse error (scriptsig) - %w", err)
		}
	}

	if _, err := io.ReadFull(r, buf); err != nil {
		return TxIn{}, fmt.Errorf("txin parse error (sequence) - %w", err)
	}
	seq := binary.LittleEndian.Uint32(buf)

	return TxIn{
		PrevTx:    prevTx,
		PrevIdx:   prevIdx,
		ScriptSig: scriptSig,
		Sequence:  seq,
	}, nil
}

func (t *TxIn) Serialize() ([]byte, error) {
	var result bytes.Buffer

	revPrevTx := make([]byte, len(t.PrevTx))
	copy(revPrevTx, t.PrevTx)
	slices.Reverse(revPrevTx)
	if _, err := result.Write(revPrevTx); err != nil {
		return nil, err
	}

	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, t.PrevIdx)
	if _, err := result.Write(buf); err != nil {
		return nil, err
	}

	scriptBytes, err := t.ScriptSig.Serialize()
	if err != nil {
		return nil, err
	}
	if _, err := result.Write(scriptBytes); err != nil {
		return nil, err
	}

	binary.LittleEndian.PutUint32(buf, t.Sequence)
	if _, err := result.Write(buf); err != nil {
		return nil, err
	}

	return result.Bytes(), nil
}

// Outpoint identifies the previous output this input spends. TxID is
// stored in display (big-endian) order, matching TxIn.PrevTx.
func (t TxIn) Outpoint() Outpoint {
	var txid [32]byte
	copy(txid[:], t.PrevTx)
	return Outpoint{TxID: txid, Index: t.PrevIdx}
}

// Outpoint is the (txid, index) pair identifying a transaction output.
type Outpoint struct {
	TxID  [32]byte
	Index uint32
}

type TxOut struct {
	Amount         uint64
	ScriptPubKey   script.Script
	rawScriptBytes []byte // raw bytes even if the script didn't parse
}

// RawScriptBytes returns the raw pk_script bytes regardless of whether they
// parsed into a recognized template.
func (t *TxOut) RawScriptBytes() ([]byte, error) {
	if len(t.rawScriptBytes) > 0 {
		return t.rawScriptBytes, nil
	}
	return t.ScriptPubKey.RawBytes()
}

func (t TxOut) String() string {
	pubKey, _ := t.ScriptPubKey.Serialize()
	return fmt.Sprintf("%d:%x", t.Amount, pubKey)
}

func ParseTxOut(r io.Reader) (TxOut, error) {
	buf := make([]byte, 8)
	if _, err := io.ReadFull(r, buf); err != nil {
		return TxOut{}, fmt.Errorf("txout parse error (amount) - %w", err)
	}
	amount := binary.LittleEndian.Uint64(buf)

	scriptBytes, err := script.ReadScriptBytes(r)
	if err != nil {
		return TxOut{}, fmt.Errorf("txout parse error (script) - %w", err)
	}

	// some pk_scripts don't match any template we parse into commands;
	// keep raw bytes regardless so the output still round-trips.
	scriptObj := script.Script{}
	if len(scriptBytes) > 0 {
		varIntLen, _ := encoding.EncodeVarInt(uint64(len(scriptBytes)))
		scriptReader := bytes.NewReader(append(varIntLen, scriptBytes...))
		if parsed, err := script.ParseScript(scriptReader); err == nil {
			scriptObj = parsed
		}
	}

	return TxOut{
		Amount:         amount,
		ScriptPubKey:   scriptObj,
		rawScriptBytes: scriptBytes,
	}, nil
}

func (t *TxOut) Serialize() ([]byte, error) {
	var result bytes.Buffer

	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, t.Amount)
	if _, err := result.Write(buf); err != nil {
		return nil, err
	}

	var scriptBytes []byte
	if len(t.rawScriptBytes) > 0 {
		// parsed output: write the original bytes so it round-trips exactly
		varIntLen, err := encoding.EncodeVarInt(uint64(len(t.rawScriptBytes)))
		if err != nil {
			return nil, err
		}
		scriptBytes = append(varIntLen, t.rawScriptBytes...)
	} else {
		var err error
		scriptBytes, err = t.ScriptPubKey.Serialize()
		if err != nil {
			return nil, err
		}
	}
	if _, err := result.Write(scriptBytes); err != nil {
		return nil, err
	}

	return result.Bytes(), nil
}
