// Package chain holds the single shared, mutable view of the network: the
// header chain, the block store, the UTXO set, the connected peer pool, and
// the wallet's accounts (spec §3, §4.2, §5). Every mutable field is guarded
// by its own reader/writer lock; callers that must touch more than one
// field acquire locks in the fixed order documented on State, matching
// spec §5's "connected_peers → headers → blocks → utxo_set →
// accounts_outer → accounts_inner".
package chain

import (
	"bitnode/internal/address"
	"bitnode/internal/block"
	"bitnode/internal/chainerr"
	"bitnode/internal/peer"
	"bitnode/internal/transactions"
	"fmt"
	"sync"
)

// duplicateWindow is the last-10 sliding window spec §4.2/§9 uses to filter
// duplicate incoming headers. Surfaced as a var, not a const, per §9's note
// that implementers should make the window size a tunable.
var duplicateWindow = 10

// State is the node's entire shared mutable state. Lock order (acquire in
// this order, release in reverse): peersMu → headersMu → blocksMu →
// utxoMu → accountsMu → an individual Account's mu.
type State struct {
	TestNet bool

	peersMu sync.RWMutex
	peers   []*peer.Peer

	headersMu sync.RWMutex
	headers   []block.Block

	blocksMu sync.RWMutex
	blocks   map[[32]byte]*block.FullBlock

	utxoMu sync.RWMutex
	utxos  map[transactions.Outpoint]transactions.TxOut

	accountsMu sync.RWMutex
	accounts   []*Account
}

func NewState(testNet bool) *State {
	return &State{
		TestNet: testNet,
		blocks:  make(map[[32]byte]*block.FullBlock),
		utxos:   make(map[transactions.Outpoint]transactions.TxOut),
	}
}

// --- connected peers ---

func (s *State) AddPeer(p *peer.Peer) {
	s.peersMu.Lock()
	defer s.peersMu.Unlock()
	s.peers = append(s.peers, p)
}

func (s *State) RemovePeer(p *peer.Peer) {
	s.peersMu.Lock()
	defer s.peersMu.Unlock()
	for i, existing := range s.peers {
		if existing == p {
			s.peers = append(s.peers[:i], s.peers[i+1:]...)
			return
		}
	}
}

// Peers returns a snapshot of the connected peer pool.
func (s *State) Peers() []*peer.Peer {
	s.peersMu.RLock()
	defer s.peersMu.RUnlock()
	out := make([]*peer.Peer, len(s.peers))
	copy(out, s.peers)
	return out
}

func (s *State) PeerCount() int {
	s.peersMu.RLock()
	defer s.peersMu.RUnlock()
	return len(s.peers)
}

// Broadcast writes msg to every connected peer's writer queue, ignoring
// peers whose queue has been closed (spec §4.5).
func (s *State) Broadcast(msg peer.Message) {
	for _, p := range s.Peers() {
		_ = p.Send(msg)
	}
}

// --- headers ---

// AppendHeader appends h unless a header with the same hash is already
// present in the last duplicateWindow entries, per spec §4.2.
func (s *State) AppendHeader(h block.Block) error {
	hash, err := h.Hash()
	if err != nil {
		return chainerr.NewUnmarshallingError("header hash", err)
	}

	s.headersMu.Lock()
	defer s.headersMu.Unlock()

	start := 0
	if len(s.headers) > duplicateWindow {
		start = len(s.headers) - duplicateWindow
	}
	for i := start; i < len(s.headers); i++ {
		existingHash, err := s.headers[i].Hash()
		if err != nil {
			continue
		}
		if string(existingHash) == string(hash) {
			return chainerr.ErrDuplicateHeader
		}
	}

	s.headers = append(s.headers, h)
	return nil
}

// IsRecentHeader reports whether hash matches one of the last
// duplicateWindow headers (used by the dispatch loop's "not in last-10"
// checks before requesting/applying a block, spec §4.5).
func (s *State) IsRecentHeader(hash []byte) bool {
	s.headersMu.RLock()
	defer s.headersMu.RUnlock()

	start := 0
	if len(s.headers) > duplicateWindow {
		start = len(s.headers) - duplicateWindow
	}
	for i := start; i < len(s.headers); i++ {
		existingHash, err := s.headers[i].Hash()
		if err != nil {
			continue
		}
		if string(existingHash) == string(hash) {
			return true
		}
	}
	return false
}

func (s *State) HeaderByHeight(height int) (block.Block, bool) {
	s.headersMu.RLock()
	defer s.headersMu.RUnlock()
	if height < 0 || height >= len(s.headers) {
		return block.Block{}, false
	}
	return s.headers[height], true
}

func (s *State) HeaderCount() int {
	s.headersMu.RLock()
	defer s.headersMu.RUnlock()
	return len(s.headers)
}

// TipHash returns the hash of the most recently appended header.
func (s *State) TipHash() ([32]byte, bool) {
	s.headersMu.RLock()
	defer s.headersMu.RUnlock()
	if len(s.headers) == 0 {
		return [32]byte{}, false
	}
	tip := s.headers[len(s.headers)-1]
	hash, err := tip.Hash()
	if err != nil {
		return [32]byte{}, false
	}
	var out [32]byte
	copy(out[:], hash)
	return out, true
}

// Locator returns up to the last n header hashes, tip first, for a
// getheaders block locator.
func (s *State) Locator(n int) [][32]byte {
	s.headersMu.RLock()
	defer s.headersMu.RUnlock()

	if n > len(s.headers) {
		n = len(s.headers)
	}
	locator := make([][32]byte, 0, n)
	for i := 0; i < n; i++ {
		h := s.headers[len(s.headers)-1-i]
		hash, err := h.Hash()
		if err != nil {
			continue
		}
		var entry [32]byte
		copy(entry[:], hash)
		locator = append(locator, entry)
	}
	return locator
}

// HeadersFrom locates the first locator hash present in the chain and
// returns up to limit subsequent headers, stopping at stopHash if it is
// non-zero (spec §4.5's getheaders handler).
func (s *State) HeadersFrom(locator [][32]byte, stopHash [32]byte, limit int) []block.Block {
	s.headersMu.RLock()
	defer s.headersMu.RUnlock()

	start := -1
	for _, loc := range locator {
		for i := len(s.headers) - 1; i >= 0; i-- {
			hash, err := s.headers[i].Hash()
			if err != nil {
				continue
			}
			if string(hash) == string(loc[:]) {
				start = i + 1
				break
			}
		}
		if start != -1 {
			break
		}
	}
	if start == -1 {
		start = 0
	}

	var zero [32]byte
	result := make([]block.Block, 0, limit)
	for i := start; i < len(s.headers) && len(result) < limit; i++ {
		result = append(result, s.headers[i])
		if stopHash != zero {
			hash, err := s.headers[i].Hash()
			if err == nil && string(hash) == string(stopHash[:]) {
				break
			}
		}
	}
	return result
}

// --- block store ---

func (s *State) PutBlock(hash [32]byte, b *block.FullBlock) {
	s.blocksMu.Lock()
	defer s.blocksMu.Unlock()
	s.blocks[hash] = b
}

func (s *State) BlockByHash(hash [32]byte) (*block.FullBlock, bool) {
	s.blocksMu.RLock()
	defer s.blocksMu.RUnlock()
	b, ok := s.blocks[hash]
	return b, ok
}

func (s *State) BlockCount() int {
	s.blocksMu.RLock()
	defer s.blocksMu.RUnlock()
	return len(s.blocks)
}

// --- UTXO set ---

// ApplyBlockToUtxos applies every transaction in b in order: coinbase
// outputs are added outright; for every other transaction, the outpoints
// its inputs reference are removed before its own outputs are added (spec
// §4.2). Ordering within the block is significant.
func (s *State) ApplyBlockToUtxos(b *block.FullBlock) error {
	s.utxoMu.Lock()
	defer s.utxoMu.Unlock()

	for _, tx := range b.Txs {
		// Display order, the same byte order TxIn.Outpoint() reports.
		txid, err := tx.IDBytes()
		if err != nil {
			return chainerr.NewUnmarshallingError("tx hash", err)
		}
		var txidArr [32]byte
		copy(txidArr[:], txid)

		if !tx.IsCoinbase() {
			for _, in := range tx.Inputs {
				delete(s.utxos, in.Outpoint())
			}
		}
		for idx, out := range tx.Outputs {
			s.utxos[transactions.Outpoint{TxID: txidArr, Index: uint32(idx)}] = out
		}
	}
	return nil
}

func (s *State) UTXO(op transactions.Outpoint) (transactions.TxOut, bool) {
	s.utxoMu.RLock()
	defer s.utxoMu.RUnlock()
	out, ok := s.utxos[op]
	return out, ok
}

// UTXOsForAddress scans the global UTXO set for outputs whose pk_script
// resolves to addr's hash160 (spec §4.2's "UTXOs for an address" query).
func (s *State) UTXOsForAddress(addr string) (map[transactions.Outpoint]transactions.TxOut, error) {
	targetHash, _, err := address.Decode(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chainerr.ErrInvalidAddress, err)
	}

	s.utxoMu.RLock()
	defer s.utxoMu.RUnlock()

	result := make(map[transactions.Outpoint]transactions.TxOut)
	for op, out := range s.utxos {
		h160, ok := out.ScriptPubKey.P2pkhHash160()
		if !ok {
			continue
		}
		if string(h160) == string(targetHash) {
			result[op] = out
		}
	}
	return result, nil
}

// Balance sums every UTXO belonging to addr.
func (s *State) Balance(addr string) (uint64, error) {
	utxos, err := s.UTXOsForAddress(addr)
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, out := range utxos {
		total += out.Amount
	}
	return total, nil
}

// --- accounts ---

func (s *State) AddAccount(a *Account) {
	s.accountsMu.Lock()
	defer s.accountsMu.Unlock()
	s.accounts = append(s.accounts, a)
}

func (s *State) Accounts() []*Account {
	s.accountsMu.RLock()
	defer s.accountsMu.RUnlock()
	out := make([]*Account, len(s.accounts))
	copy(out, s.accounts)
	return out
}

func (s *State) AccountByAddress(addr string) (*Account, bool) {
	s.accountsMu.RLock()
	defer s.accountsMu.RUnlock()
	for _, a := range s.accounts {
		if a.Address == addr {
			return a, true
		}
	}
	return nil, false
}
