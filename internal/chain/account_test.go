package chain

import (
	"testing"

	"bitnode/internal/chainerr"
	"bitnode/internal/transactions"
)

const (
	testWIF     = "cMoBjaYS6EraKLNqrNN8DvN93Nnt6pJNfWkYM8pUufYQB5EVZ7SR"
	testAddress = "mnEvYsxexfDEkCx2YLEfzhjrwKKcyAhMqV"
)

func TestNewAccountDerivesAddress(t *testing.T) {
	acct, err := NewAccount(testWIF, testAddress, true)
	if err != nil {
		t.Fatalf("NewAccount: %v", err)
	}
	if acct.Address != testAddress {
		t.Errorf("address = %s, want %s", acct.Address, testAddress)
	}
}

func TestNewAccountRejectsMismatchedAddress(t *testing.T) {
	_, err := NewAccount(testWIF, "mpzx6iZ1WX8hLSeDRKdkLatXXPN1GDWVaF", true)
	if err == nil {
		t.Fatal("expected error for mismatched address, got nil")
	}
}

func sampleTxOut(amount uint64) transactions.TxOut {
	return transactions.TxOut{Amount: amount}
}

func TestHasBalanceStrictInequality(t *testing.T) {
	acct, err := NewAccount(testWIF, testAddress, true)
	if err != nil {
		t.Fatalf("NewAccount: %v", err)
	}
	acct.LoadUtxos(map[transactions.Outpoint]transactions.TxOut{
		{Index: 0}: sampleTxOut(1000),
	})

	if acct.HasBalance(1000) {
		t.Error("HasBalance(1000) should be false when balance == 1000 (strict inequality)")
	}
	if !acct.HasBalance(999) {
		t.Error("HasBalance(999) should be true when balance == 1000")
	}
}

func TestSelectUtxosInsufficientBalance(t *testing.T) {
	acct, err := NewAccount(testWIF, testAddress, true)
	if err != nil {
		t.Fatalf("NewAccount: %v", err)
	}
	acct.LoadUtxos(map[transactions.Outpoint]transactions.TxOut{
		{Index: 0}: sampleTxOut(500),
	})

	if _, _, err := acct.SelectUtxos(500); err == nil {
		t.Error("expected insufficient balance error spending exactly the full balance")
	} else if err != chainerr.ErrInsufficientBalance {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}

	selected, total, err := acct.SelectUtxos(499)
	if err != nil {
		t.Fatalf("SelectUtxos(499): %v", err)
	}
	if total != 500 {
		t.Errorf("selected total = %d, want 500", total)
	}
	if len(selected) != 1 {
		t.Errorf("selected count = %d, want 1", len(selected))
	}
}

func TestAddAndRemoveUtxo(t *testing.T) {
	acct, err := NewAccount(testWIF, testAddress, true)
	if err != nil {
		t.Fatalf("NewAccount: %v", err)
	}

	op := transactions.Outpoint{Index: 7}
	acct.AddUtxo(op, sampleTxOut(250))
	if acct.Balance() != 250 {
		t.Fatalf("balance after AddUtxo = %d, want 250", acct.Balance())
	}

	acct.RemoveUtxo(op)
	if acct.Balance() != 0 {
		t.Errorf("balance after RemoveUtxo = %d, want 0", acct.Balance())
	}
}
