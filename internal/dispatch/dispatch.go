// Package dispatch implements the post-IBD per-peer command routing table
// (spec §4.5, C5). It wires domain handlers onto a peer.Peer's OnMessage
// hooks; the peer itself already runs the reader/writer/fan-out loops that
// move bytes, so this package only supplies the "what happens for each
// command" behavior.
package dispatch

import (
	"bytes"
	"sync"

	"github.com/sirupsen/logrus"

	"bitnode/internal/chain"
	"bitnode/internal/chainerr"
	"bitnode/internal/peer"
	"bitnode/internal/transactions"
)

const maxHeadersReply = 2000

// Loop holds the state shared by every attached peer's handlers: the
// chain state they all mutate, and a global "seen tx hash" set used by
// the inv handler to avoid re-requesting the same transaction from every
// peer that announces it.
type Loop struct {
	state   *chain.State
	testNet bool
	log     *logrus.Entry

	seenTxMu sync.Mutex
	seenTx   map[[32]byte]struct{}
}

func New(state *chain.State, testNet bool, log *logrus.Logger) *Loop {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Loop{
		state:   state,
		testNet: testNet,
		log:     log.WithField("component", "dispatch"),
		seenTx:  make(map[[32]byte]struct{}),
	}
}

// Attach registers l's command handlers on p (spec §4.5's routing table).
// ping is handled by peer.Peer itself; everything else routes here.
func (l *Loop) Attach(p *peer.Peer) {
	p.OnMessage("headers", func(env peer.NetworkEnvelope) { l.handleHeaders(p, env) })
	p.OnMessage("getheaders", func(env peer.NetworkEnvelope) { l.handleGetHeaders(p, env) })
	p.OnMessage("getdata", func(env peer.NetworkEnvelope) { l.handleGetData(p, env) })
	p.OnMessage("block", func(env peer.NetworkEnvelope) { l.handleBlock(p, env) })
	p.OnMessage("inv", func(env peer.NetworkEnvelope) { l.handleInv(p, env) })
	p.OnMessage("tx", func(env peer.NetworkEnvelope) { l.handleTx(p, env) })
}

func (l *Loop) handleHeaders(p *peer.Peer, env peer.NetworkEnvelope) {
	hm, err := peer.ParseHeadersMessage(bytes.NewReader(env.Payload))
	if err != nil {
		l.log.WithError(err).Warn("bad headers message")
		return
	}

	for _, h := range hm.Blocks {
		if !h.CheckProofOfWork() {
			l.log.Warn("header failed proof of work, ignoring")
			continue
		}
		hash, err := h.Hash()
		if err != nil {
			continue
		}
		if l.state.IsRecentHeader(hash) {
			continue
		}

		var hb [32]byte
		copy(hb[:], hash)
		gd := peer.NewGetDataMessage()
		gd.AddData(peer.DATA_TYPE_BLOCK, hb)
		if err := p.Send(&gd); err != nil {
			l.log.WithError(err).Warn("send getdata failed")
		}
	}
}

func (l *Loop) handleGetHeaders(p *peer.Peer, env peer.NetworkEnvelope) {
	gh, err := peer.ParseGetHeadersMessage(bytes.NewReader(env.Payload))
	if err != nil {
		l.log.WithError(err).Warn("bad getheaders message")
		return
	}

	headers := l.state.HeadersFrom(gh.BlockLocators, gh.HashStop, maxHeadersReply)
	hm := peer.HeadersMessage{Blocks: headers}
	if err := p.Send(&hm); err != nil {
		l.log.WithError(err).Warn("send headers failed")
	}
}

func (l *Loop) handleGetData(p *peer.Peer, env peer.NetworkEnvelope) {
	gd, err := peer.ParseGetDataMessage(bytes.NewReader(env.Payload))
	if err != nil {
		l.log.WithError(err).Warn("bad getdata message")
		return
	}

	notFound := peer.NewInventoryMessage()
	for _, item := range gd.Data {
		switch item.Type {
		case peer.DATA_TYPE_TX:
			tx, ok := l.findPendingTx(item.Identifier)
			if !ok {
				notFound.AddData(item.Type, item.Identifier)
				continue
			}
			msg := peer.TxMessage{Tx: *tx}
			if err := p.Send(&msg); err != nil {
				l.log.WithError(err).Warn("send tx failed")
			}
		case peer.DATA_TYPE_BLOCK:
			b, ok := l.state.BlockByHash(item.Identifier)
			if !ok {
				notFound.AddData(item.Type, item.Identifier)
				continue
			}
			msg := peer.BlockMessage{Block: b}
			if err := p.Send(&msg); err != nil {
				l.log.WithError(err).Warn("send block failed")
			}
		default:
			notFound.AddData(item.Type, item.Identifier)
		}
	}

	if len(notFound.Data) > 0 {
		nf := peer.NotFoundMessage{InventoryMessage: notFound}
		if err := p.Send(&nf); err != nil {
			l.log.WithError(err).Warn("send notfound failed")
		}
	}
}

// handleBlock applies an unsolicited/announced block the same way the IBD
// blocks stage does, guarded by the last-10 check so a block that arrives
// twice (e.g. from two peers racing an inv) is never applied twice (spec
// §4.5's ordering note).
func (l *Loop) handleBlock(p *peer.Peer, env peer.NetworkEnvelope) {
	bm, err := peer.ParseBlockMessage(bytes.NewReader(env.Payload))
	if err != nil {
		l.log.WithError(err).Warn("bad block message")
		return
	}
	if !bm.Block.BlockHeader.CheckProofOfWork() {
		l.log.Warn("block failed proof of work, ignoring")
		return
	}

	hash, err := bm.Block.BlockHeader.Hash()
	if err != nil {
		return
	}
	if l.state.IsRecentHeader(hash) {
		return
	}

	if err := l.state.AppendHeader(*bm.Block.BlockHeader); err != nil && err != chainerr.ErrDuplicateHeader {
		l.log.WithError(err).Warn("append header from block failed")
		return
	}

	var hb [32]byte
	copy(hb[:], hash)
	l.state.PutBlock(hb, bm.Block)

	if err := l.state.ApplyBlockToUtxos(bm.Block); err != nil {
		l.log.WithError(err).Warn("apply block to utxo set failed")
		return
	}

	for _, acct := range l.state.Accounts() {
		for _, tx := range bm.Block.Txs {
			txid, err := tx.Hash()
			if err != nil {
				continue
			}
			var txidArr [32]byte
			copy(txidArr[:], txid)
			acct.ConfirmPending(txidArr)
		}

		utxos, err := l.state.UTXOsForAddress(acct.Address)
		if err != nil {
			l.log.WithError(err).Warn("refresh account utxo cache failed")
			continue
		}
		acct.LoadUtxos(utxos)
	}
}

func (l *Loop) handleInv(p *peer.Peer, env peer.NetworkEnvelope) {
	im, err := peer.ParseInvMessage(bytes.NewReader(env.Payload))
	if err != nil {
		l.log.WithError(err).Warn("bad inv message")
		return
	}

	gd := peer.NewGetDataMessage()
	for _, item := range im.Data {
		if item.Type != peer.DATA_TYPE_TX {
			continue
		}
		if l.markSeen(item.Identifier) {
			continue
		}
		gd.AddData(peer.DATA_TYPE_TX, item.Identifier)
	}

	if len(gd.Data) > 0 {
		if err := p.Send(&gd); err != nil {
			l.log.WithError(err).Warn("send getdata failed")
		}
	}
}

func (l *Loop) handleTx(p *peer.Peer, env peer.NetworkEnvelope) {
	tm, err := peer.ParseTxMessage(bytes.NewReader(env.Payload))
	if err != nil {
		l.log.WithError(err).Warn("bad tx message")
		return
	}

	for _, acct := range l.state.Accounts() {
		for _, out := range tm.Tx.Outputs {
			if acct.OwnsPkScript(out.ScriptPubKey) {
				if err := acct.Pending.Add(&tm.Tx); err != nil {
					l.log.WithError(err).Warn("add pending tx failed")
				}
				break
			}
		}
	}
}

func (l *Loop) findPendingTx(txid [32]byte) (*transactions.Transaction, bool) {
	for _, acct := range l.state.Accounts() {
		if tx, ok := acct.Pending.Get(txid); ok {
			return tx, true
		}
	}
	return nil, false
}

// markSeen records txid in the global dedup set and reports whether it was
// already present.
func (l *Loop) markSeen(txid [32]byte) bool {
	l.seenTxMu.Lock()
	defer l.seenTxMu.Unlock()
	_, known := l.seenTx[txid]
	if !known {
		l.seenTx[txid] = struct{}{}
	}
	return known
}
