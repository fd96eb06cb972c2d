package wallet

import (
	"testing"

	"bitnode/internal/chain"
	"bitnode/internal/chainerr"
	"bitnode/internal/transactions"
)

const (
	senderWIF     = "cMoBjaYS6EraKLNqrNN8DvN93Nnt6pJNfWkYM8pUufYQB5EVZ7SR"
	senderAddress = "mnEvYsxexfDEkCx2YLEfzhjrwKKcyAhMqV"
	receiverAddr  = "mpzx6iZ1WX8hLSeDRKdkLatXXPN1GDWVaF"
)

func newFundedAccount(t *testing.T, amount uint64) *chain.Account {
	t.Helper()
	acct, err := chain.NewAccount(senderWIF, senderAddress, true)
	if err != nil {
		t.Fatalf("NewAccount: %v", err)
	}
	ownScript, err := acct.PubKeyScript(true)
	if err != nil {
		t.Fatalf("PubKeyScript: %v", err)
	}
	acct.LoadUtxos(map[transactions.Outpoint]transactions.TxOut{
		{Index: 0}: {Amount: amount, ScriptPubKey: ownScript},
	})
	return acct
}

func TestSendBuildsSignedTransactionWithChange(t *testing.T) {
	state := chain.NewState(true)
	acct := newFundedAccount(t, 10000)

	tx, err := Send(state, acct, receiverAddr, 3000, 500, true)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if len(tx.Outputs) != 2 {
		t.Fatalf("expected receiver+change outputs, got %d", len(tx.Outputs))
	}
	if tx.Outputs[0].Amount != 3000 {
		t.Errorf("receiver output = %d, want 3000", tx.Outputs[0].Amount)
	}
	wantChange := uint64(10000 - 3000 - 500)
	if tx.Outputs[1].Amount != wantChange {
		t.Errorf("change output = %d, want %d", tx.Outputs[1].Amount, wantChange)
	}

	ownScript, _ := acct.PubKeyScript(true)
	ok, err := tx.VerifyInput(0, ownScript)
	if err != nil {
		t.Fatalf("VerifyInput: %v", err)
	}
	if !ok {
		t.Error("signed input did not verify against its own prevPkScript")
	}
}

func TestSendInsufficientBalance(t *testing.T) {
	state := chain.NewState(true)
	acct := newFundedAccount(t, 100)

	if _, err := Send(state, acct, receiverAddr, 100, 0, true); err != chainerr.ErrInsufficientBalance {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestSendRejectsInvalidReceiverAddress(t *testing.T) {
	state := chain.NewState(true)
	acct := newFundedAccount(t, 10000)

	if _, err := Send(state, acct, "not-a-valid-address", 100, 10, true); err == nil {
		t.Fatal("expected error for invalid receiver address")
	}
}
