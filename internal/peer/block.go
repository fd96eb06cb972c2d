package peer

import (
	"bitnode/internal/block"
	"bitnode/internal/transactions"
	"io"
)

// TxMessage carries a single transaction, sent in reply to getdata for a
// DATA_TYPE_TX inventory item (spec §4.5 dispatch table).
type TxMessage struct {
	Tx transactions.Transaction
}

func ParseTxMessage(r io.Reader) (TxMessage, error) {
	tx, err := transactions.ParseTransaction(r)
	if err != nil {
		return TxMessage{}, err
	}
	return TxMessage{Tx: tx}, nil
}

func (tm *TxMessage) Serialize() ([]byte, error) {
	return tm.Tx.Serialize()
}

func (tm TxMessage) Command() string {
	return "tx"
}

// BlockMessage carries a full block (header + transactions), sent in reply
// to getdata for a DATA_TYPE_BLOCK inventory item (spec §4.4 blocks stage).
type BlockMessage struct {
	Block *block.FullBlock
}

func ParseBlockMessage(r io.Reader) (BlockMessage, error) {
	fb, err := block.ParseFullBlock(r)
	if err != nil {
		return BlockMessage{}, err
	}
	return BlockMessage{Block: fb}, nil
}

func (bm *BlockMessage) Serialize() ([]byte, error) {
	return bm.Block.Serialize()
}

func (bm BlockMessage) Command() string {
	return "block"
}
