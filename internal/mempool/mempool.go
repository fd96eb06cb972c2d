package mempool

import (
	"bitnode/internal/transactions"
	"sync"
)

// Pool is a mutex-guarded set of transactions indexed by txid. It backs an
// account's pending/confirmed lists (spec §4.6).
type Pool struct {
	txs map[[32]byte]*transactions.Transaction
	mu  sync.Mutex
}

func New() *Pool {
	return &Pool{
		txs: make(map[[32]byte]*transactions.Transaction),
	}
}

func (p *Pool) Add(tx *transactions.Transaction) error {
	txid, err := tx.Hash()
	if err != nil {
		return err
	}
	var key [32]byte
	copy(key[:], txid)

	p.mu.Lock()
	p.txs[key] = tx
	p.mu.Unlock()
	return nil
}

func (p *Pool) Get(txid [32]byte) (*transactions.Transaction, bool) {
	p.mu.Lock()
	tx, exists := p.txs[txid]
	p.mu.Unlock()
	return tx, exists
}

func (p *Pool) Remove(txid [32]byte) {
	p.mu.Lock()
	delete(p.txs, txid)
	p.mu.Unlock()
}

func (p *Pool) All() []*transactions.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	result := make([]*transactions.Transaction, 0, len(p.txs))
	for _, tx := range p.txs {
		result = append(result, tx)
	}
	return result
}

func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.txs)
}
