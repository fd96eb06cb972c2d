// Package ibd drives initial block download (spec §4.4, C4): a headers
// stage that walks getheaders/headers against one peer, and a blocks stage
// that fans header batches out across the peer pool via getdata.
package ibd

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"bitnode/internal/block"
	"bitnode/internal/chain"
	"bitnode/internal/chainerr"
	"bitnode/internal/peer"
)

const protocolVersion = int32(70015)

// headersPerReply is the maximum number of headers a compliant peer sends
// in a single "headers" reply. A shorter reply means the tip was reached.
const headersPerReply = 2000

// maxGetDataHashes is spec §4.4's subgroup size limit.
const maxGetDataHashes = 16

// Config mirrors the subset of spec §6's config-file keys this pipeline
// reads directly.
type Config struct {
	Workers          int
	SingleNode       bool
	StartTime        time.Time
	FirstBlockHeight int
}

// Pipeline runs the headers and blocks stages concurrently, connected by an
// internal channel of header batches.
type Pipeline struct {
	state *chain.State
	cfg   Config
	log   *logrus.Entry
}

func New(state *chain.State, cfg Config, log *logrus.Logger) *Pipeline {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pipeline{state: state, cfg: cfg, log: log.WithField("component", "ibd")}
}

// Run drives IBD to completion against headerPeer (used for the headers
// stage) and blockPeers (the pool the blocks stage fans work across).
// It returns once downloaded_blocks == header_count - first_block_height + 1,
// or a fatal error if the peer pool is exhausted first.
func (p *Pipeline) Run(ctx context.Context, headerPeer *peer.Peer, blockPeers []*peer.Peer) error {
	batches := make(chan []block.Block, 16)
	var headerCount int64

	var wg sync.WaitGroup
	wg.Add(2)

	var headersErr, blocksErr error
	go func() {
		defer wg.Done()
		headersErr = p.runHeadersStage(ctx, headerPeer, batches, &headerCount)
	}()
	go func() {
		defer wg.Done()
		blocksErr = p.runBlocksStage(ctx, blockPeers, batches, &headerCount)
	}()

	wg.Wait()
	if headersErr != nil {
		return headersErr
	}
	return blocksErr
}

// runHeadersStage implements spec §4.4's headers stage: repeated
// getheaders/headers round trips against one peer, validating PoW and
// prev_hash linkage, appending accepted headers to state, and forwarding
// each reply's headers as one batch once the batch's tip reaches
// cfg.StartTime.
func (p *Pipeline) runHeadersStage(ctx context.Context, pr *peer.Peer, batches chan<- []block.Block, headerCount *int64) error {
	defer close(batches)

	prevHash, haveTip := p.state.TipHash()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		locator := p.state.Locator(10)
		msg := peer.NewGetHeadersMessage(protocolVersion, locator, nil)
		if err := pr.Send(&msg); err != nil {
			return chainerr.NewPeerIOError(pr.Addr.String(), err)
		}

		env, err := pr.ReceiveWithTimeout("headers", 30*time.Second)
		if err != nil {
			return chainerr.NewPeerIOError(pr.Addr.String(), err)
		}
		hm, err := peer.ParseHeadersMessage(bytes.NewReader(env.Payload))
		if err != nil {
			return chainerr.NewUnmarshallingError("headers reply", err)
		}

		batch := make([]block.Block, 0, len(hm.Blocks))
		for _, h := range hm.Blocks {
			if !h.CheckProofOfWork() {
				return chainerr.NewInvalidHeaderError("proof of work check failed")
			}
			if haveTip && h.PrevBlock != prevHash {
				return chainerr.NewInvalidHeaderError("prev_hash does not link to predecessor")
			}
			if err := p.state.AppendHeader(h); err != nil && err != chainerr.ErrDuplicateHeader {
				return chainerr.NewInvalidHeaderError(err.Error())
			}
			hash, err := h.Hash()
			if err != nil {
				return chainerr.NewUnmarshallingError("header hash", err)
			}
			copy(prevHash[:], hash)
			haveTip = true
			batch = append(batch, h)
		}
		atomic.AddInt64(headerCount, int64(len(batch)))

		if len(batch) > 0 && !batch[len(batch)-1].Time().Before(p.cfg.StartTime) {
			select {
			case batches <- batch:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if len(hm.Blocks) < headersPerReply {
			return nil
		}
	}
}

// chunkItem is one ≤16-hash subgroup of a header batch, assigned to a
// single worker.
type chunkItem struct {
	hashes [][32]byte
}

// runBlocksStage implements spec §4.4's blocks stage: splits each incoming
// header batch into N peer-sized chunks, further splits each chunk into
// ≤16-hash subgroups, and downloads each subgroup via getdata. A subgroup
// whose peer fails is re-queued and its peer discarded. Terminates when
// downloaded blocks reach header_count - first_block_height + 1.
func (p *Pipeline) runBlocksStage(ctx context.Context, peers []*peer.Peer, batches <-chan []block.Block, headerCount *int64) error {
	workers := p.cfg.Workers
	if p.cfg.SingleNode || len(peers) < 2 {
		workers = 1
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(peers) {
		workers = len(peers)
	}

	work := make(chan chunkItem, 4096)
	feederDone := make(chan struct{})
	go func() {
		defer close(feederDone)
		for batch := range batches {
			hashes := headerHashes(batch)
			for _, group := range splitIntoN(hashes, workers) {
				for i := 0; i < len(group); i += maxGetDataHashes {
					end := i + maxGetDataHashes
					if end > len(group) {
						end = len(group)
					}
					work <- chunkItem{hashes: group[i:end]}
				}
			}
		}
	}()

	availablePeers := make(chan *peer.Peer, len(peers))
	for _, pr := range peers {
		availablePeers <- pr
	}
	var livePeers int64 = int64(len(peers))

	var downloaded int64
	done := make(chan struct{})
	var doneOnce sync.Once
	var fatalErr error
	var fatalMu sync.Mutex

	finish := func(err error) {
		if err != nil {
			fatalMu.Lock()
			if fatalErr == nil {
				fatalErr = err
			}
			fatalMu.Unlock()
		}
		doneOnce.Do(func() { close(done) })
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				case <-ctx.Done():
					return
				case item, ok := <-work:
					if !ok {
						return
					}
					var pr *peer.Peer
					select {
					case pr = <-availablePeers:
					case <-done:
						return
					case <-ctx.Done():
						return
					}

					if err := p.downloadSubgroup(pr, item.hashes); err != nil {
						p.log.WithError(err).Warn("peer failed mid-chunk, re-queuing")
						_ = pr.Close()
						if atomic.AddInt64(&livePeers, -1) <= 0 {
							finish(chainerr.ErrNoMorePeers)
							return
						}
						select {
						case work <- item:
						case <-done:
						}
						continue
					}

					availablePeers <- pr
					got := atomic.AddInt64(&downloaded, int64(len(item.hashes)))
					target := atomic.LoadInt64(headerCount) - int64(p.cfg.FirstBlockHeight) + 1
					if target > 0 && got >= target {
						finish(nil)
						return
					}
				}
			}
		}()
	}

	<-feederDone
	wg.Wait()

	fatalMu.Lock()
	defer fatalMu.Unlock()
	return fatalErr
}

func (p *Pipeline) downloadSubgroup(pr *peer.Peer, hashes [][32]byte) error {
	gd := peer.NewGetDataMessage()
	for _, h := range hashes {
		gd.AddData(peer.DATA_TYPE_BLOCK, h)
	}
	if err := pr.Send(&gd); err != nil {
		return chainerr.NewPeerIOError(pr.Addr.String(), err)
	}

	for range hashes {
		env, err := pr.ReceiveWithTimeout("block", 30*time.Second)
		if err != nil {
			return chainerr.NewPeerIOError(pr.Addr.String(), err)
		}
		bm, err := peer.ParseBlockMessage(bytes.NewReader(env.Payload))
		if err != nil {
			return chainerr.NewUnmarshallingError("block", err)
		}
		if err := p.validateBlock(bm.Block); err != nil {
			return err
		}

		hash, err := bm.Block.BlockHeader.Hash()
		if err != nil {
			return chainerr.NewUnmarshallingError("block hash", err)
		}
		var hb [32]byte
		copy(hb[:], hash)
		p.state.PutBlock(hb, bm.Block)
		if err := p.state.ApplyBlockToUtxos(bm.Block); err != nil {
			return err
		}
	}
	return nil
}

// validateBlock checks the §3 invariants this node can verify without a
// full UTXO-backed script interpreter: proof of work and merkle root.
func (p *Pipeline) validateBlock(fb *block.FullBlock) error {
	if !fb.BlockHeader.CheckProofOfWork() {
		return chainerr.NewInvalidBlockError("proof of work check failed")
	}
	ok, err := fb.ValidateMerkleRoot()
	if err != nil {
		return chainerr.NewInvalidBlockError(err.Error())
	}
	if !ok {
		return chainerr.NewInvalidBlockError("merkle root mismatch")
	}
	return nil
}

func headerHashes(batch []block.Block) [][32]byte {
	hashes := make([][32]byte, 0, len(batch))
	for _, h := range batch {
		hb, err := h.Hash()
		if err != nil {
			continue
		}
		var entry [32]byte
		copy(entry[:], hb)
		hashes = append(hashes, entry)
	}
	return hashes
}

// splitIntoN splits hashes into n roughly-equal, contiguous chunks (spec
// §4.4's "N equal chunks" rule).
func splitIntoN(hashes [][32]byte, n int) [][][32]byte {
	if n < 1 {
		n = 1
	}
	if n > len(hashes) {
		n = len(hashes)
	}
	if n == 0 {
		return nil
	}

	chunks := make([][][32]byte, 0, n)
	base := len(hashes) / n
	rem := len(hashes) % n
	idx := 0
	for i := 0; i < n; i++ {
		size := base
		if i < rem {
			size++
		}
		chunks = append(chunks, hashes[idx:idx+size])
		idx += size
	}
	return chunks
}
