package chain

import (
	"fmt"
	"sync"

	"bitnode/internal/address"
	"bitnode/internal/chainerr"
	"bitnode/internal/encoding"
	"bitnode/internal/keys"
	"bitnode/internal/mempool"
	"bitnode/internal/script"
	"bitnode/internal/transactions"
)

// Account is a wallet identity: a private key plus the address derived
// from it, and the mutable view of that address's spendable outputs and
// in-flight transactions (spec §3, §4.6). Its lock (accounts_inner in the
// fixed lock order, spec §5) is acquired only after a caller already holds
// accountsMu, never before.
type Account struct {
	Address    string
	PrivateKey *keys.PrivateKey
	Compressed bool

	mu    sync.RWMutex
	utxos map[transactions.Outpoint]transactions.TxOut

	// Pending holds transactions this account has seen but that have not
	// yet been confirmed in a block; Confirmed holds ones that have (spec
	// §4.5's "scan tx/block against each account's pending/confirmed").
	Pending   *mempool.Pool
	Confirmed *mempool.Pool
}

// NewAccount decodes a WIF private key, derives its P2PKH address, and
// verifies it against the address supplied by the caller (spec §4.6's
// "reject if mismatched" rule, grounded on account.rs's
// validate_address_private_key).
func NewAccount(wifPrivateKey, wantAddress string, testNet bool) (*Account, error) {
	privKey, compressed, err := keys.ParseWIF(wifPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chainerr.ErrInvalidWIF, err)
	}

	pubKey := privKey.PublicKey()
	pubKeyBytes := pubKey.Serialize(compressed)
	h160 := encoding.Hash160(pubKeyBytes)
	derived := script.P2pkhAddress(h160, testNet)
	if derived != wantAddress {
		return nil, fmt.Errorf("%w: WIF key derives %s, not %s", chainerr.ErrInvalidAddress, derived, wantAddress)
	}

	return &Account{
		Address:    wantAddress,
		PrivateKey: privKey,
		Compressed: compressed,
		utxos:      make(map[transactions.Outpoint]transactions.TxOut),
		Pending:    mempool.New(),
		Confirmed:  mempool.New(),
	}, nil
}

// OwnsPkScript reports whether pkScript locks funds to this account's
// address (spec §4.5's tx handler: "if an output's pk_script encodes a
// known address").
func (a *Account) OwnsPkScript(pkScript script.Script) bool {
	h160, ok := pkScript.P2pkhHash160()
	if !ok {
		return false
	}
	myHash, _, err := address.Decode(a.Address)
	if err != nil {
		return false
	}
	return string(h160) == string(myHash)
}

// ConfirmPending moves tx from Pending to Confirmed, if it was pending
// (spec §4.5's block handler: "move matches to confirmed").
func (a *Account) ConfirmPending(txid [32]byte) {
	tx, ok := a.Pending.Get(txid)
	if !ok {
		return
	}
	a.Pending.Remove(txid)
	_ = a.Confirmed.Add(tx)
}

// LoadUtxos replaces the account's cached UTXO set, typically from a
// State.UTXOsForAddress scan after IBD completes or a block applies.
func (a *Account) LoadUtxos(utxos map[transactions.Outpoint]transactions.TxOut) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.utxos = utxos
}

// Balance sums the account's cached UTXOs.
func (a *Account) Balance() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var total uint64
	for _, out := range a.utxos {
		total += out.Amount
	}
	return total
}

// HasBalance reports whether the account's balance strictly exceeds value.
// This is a strict inequality, not >=, matching account.rs's has_balance -
// an inherited quirk, not a typo: spending the exact balance is rejected
// because it leaves no room for a change output.
func (a *Account) HasBalance(value uint64) bool {
	return a.Balance() > value
}

// SelectUtxos greedily accumulates UTXOs (in map iteration order) until
// their total exceeds value, mirroring account.rs's get_utxos_for_amount.
// It returns chainerr.ErrInsufficientBalance if the full set doesn't
// satisfy HasBalance's strict inequality.
func (a *Account) SelectUtxos(value uint64) (map[transactions.Outpoint]transactions.TxOut, uint64, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !func() bool {
		var total uint64
		for _, out := range a.utxos {
			total += out.Amount
		}
		return total > value
	}() {
		return nil, 0, chainerr.ErrInsufficientBalance
	}

	selected := make(map[transactions.Outpoint]transactions.TxOut)
	var partial uint64
	for op, out := range a.utxos {
		if partial > value {
			break
		}
		selected[op] = out
		partial += out.Amount
	}
	return selected, partial, nil
}

// RemoveUtxo drops op from the cached set, e.g. once its spend is
// confirmed in a new block.
func (a *Account) RemoveUtxo(op transactions.Outpoint) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.utxos, op)
}

// AddUtxo inserts or overwrites a single cached UTXO, e.g. a change output
// created by this account's own spend.
func (a *Account) AddUtxo(op transactions.Outpoint, out transactions.TxOut) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.utxos[op] = out
}

// PubKeyScript builds the P2PKH pk_script this account's outputs should be
// locked to, derived from its own address.
func (a *Account) PubKeyScript(testNet bool) (script.Script, error) {
	h160, _, err := address.Decode(a.Address)
	if err != nil {
		return script.Script{}, err
	}
	return script.P2pkhScript(h160), nil
}
