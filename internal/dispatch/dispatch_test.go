package dispatch

import (
	"testing"

	"github.com/sirupsen/logrus"

	"bitnode/internal/chain"
)

func TestMarkSeenDedup(t *testing.T) {
	l := New(chain.NewState(true), true, logrus.StandardLogger())

	var txid [32]byte
	txid[0] = 0xAB

	if l.markSeen(txid) {
		t.Fatal("first markSeen should report unseen")
	}
	if !l.markSeen(txid) {
		t.Fatal("second markSeen should report already seen")
	}
}

func TestFindPendingTxNotFound(t *testing.T) {
	l := New(chain.NewState(true), true, logrus.StandardLogger())

	var txid [32]byte
	if _, ok := l.findPendingTx(txid); ok {
		t.Error("expected no pending tx with no accounts registered")
	}
}
