// Package wallet implements transaction construction and signing for a
// chain.Account (spec §4.6, C6). The cryptographic primitives
// (SigHash/SignInput) live on transactions.Transaction itself; this
// package orchestrates calling them with inputs and scripts looked up
// from a chain.Account and chain.State.
package wallet

import (
	"fmt"

	"bitnode/internal/address"
	"bitnode/internal/chain"
	"bitnode/internal/chainerr"
	"bitnode/internal/peer"
	"bitnode/internal/script"
	"bitnode/internal/transactions"
)

// DefaultFee is used when a caller doesn't specify one. Spec.md is silent
// on fee policy beyond "the caller supplies target = amount + fee"; a flat
// per-transaction fee matches how the teacher's own wallet flows priced
// sends, since this node has no mempool-driven fee market to sample from.
const DefaultFee = uint64(1000)

// Send builds, signs, records, and broadcasts a transaction paying amount
// to receiverAddress from acct's cached UTXOs, following spec §4.6's
// six-step construction exactly.
func Send(state *chain.State, acct *chain.Account, receiverAddress string, amount, fee uint64, testNet bool) (*transactions.Transaction, error) {
	target := amount + fee

	// 1. Select inputs.
	selected, total, err := acct.SelectUtxos(target)
	if err != nil {
		return nil, err
	}

	// 2. Receiver output.
	receiverHash, _, err := address.Decode(receiverAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chainerr.ErrInvalidAddress, err)
	}
	receiverScript := script.P2pkhScript(receiverHash)

	// 3. Change output, back to the sender's own address.
	changeScript, err := acct.PubKeyScript(testNet)
	if err != nil {
		return nil, err
	}
	change := total - target

	// 4. Raw transaction with empty sig_scripts.
	tx := &transactions.Transaction{Version: 1, Locktime: 0}

	ops := make([]transactions.Outpoint, 0, len(selected))
	prevScripts := make(map[transactions.Outpoint]script.Script, len(selected))
	for op, out := range selected {
		ops = append(ops, op)
		prevScripts[op] = out.ScriptPubKey
		tx.Inputs = append(tx.Inputs, transactions.NewTxIn(op.TxID[:], op.Index, 0xffffffff))
	}

	tx.Outputs = append(tx.Outputs, transactions.TxOut{Amount: amount, ScriptPubKey: receiverScript})
	if change > 0 {
		tx.Outputs = append(tx.Outputs, transactions.TxOut{Amount: change, ScriptPubKey: changeScript})
	}

	// 5. Sign every input against its referenced output's pk_script.
	for i, op := range ops {
		if err := tx.SignInput(i, acct.PrivateKey, prevScripts[op]); err != nil {
			return nil, fmt.Errorf("signing input %d: %w", i, err)
		}
	}

	// 6. Record and broadcast.
	if err := acct.Pending.Add(tx); err != nil {
		return nil, err
	}
	for op := range selected {
		acct.RemoveUtxo(op)
	}

	msg := peer.TxMessage{Tx: *tx}
	state.Broadcast(&msg)

	return tx, nil
}

// Balance returns acct's cached spendable balance.
func Balance(acct *chain.Account) uint64 {
	return acct.Balance()
}
