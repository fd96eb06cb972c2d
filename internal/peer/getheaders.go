package peer

import (
	"bitnode/internal/block"
	"bitnode/internal/encoding"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

type GetHeadersMessage struct {
	Version       int32
	BlockLocators [][32]byte
	HashStop      [32]byte
}

func NewGetHeadersMessage(version int32, blockLocators [][32]byte, hashStop *[32]byte) GetHeadersMessage {
	stop := [32]byte{}
	if hashStop != nil {
		stop = *hashStop
	}

	return GetHeadersMessage{
		Version:       version,
		BlockLocators: blockLocators,
		HashStop:      stop,
	}
}

// ParseGetHeadersMessage parses an incoming getheaders request, used by
// the dispatch loop's getheaders handler (spec §4.5).
func ParseGetHeadersMessage(r io.Reader) (GetHeadersMessage, error) {
	buf := make([]byte, 4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return GetHeadersMessage{}, fmt.Errorf("getheaders parse error (version) - %w", err)
	}
	version := int32(binary.LittleEndian.Uint32(buf))

	count, err := encoding.ReadVarInt(r)
	if err != nil {
		return GetHeadersMessage{}, fmt.Errorf("getheaders parse error (locator count) - %w", err)
	}
	locators := make([][32]byte, count)
	for i := uint64(0); i < count; i++ {
		if _, err := io.ReadFull(r, locators[i][:]); err != nil {
			return GetHeadersMessage{}, fmt.Errorf("getheaders parse error (locator %d) - %w", i, err)
		}
	}

	var stop [32]byte
	if _, err := io.ReadFull(r, stop[:]); err != nil {
		return GetHeadersMessage{}, fmt.Errorf("getheaders parse error (stop hash) - %w", err)
	}

	return GetHeadersMessage{Version: version, BlockLocators: locators, HashStop: stop}, nil
}

func (g *GetHeadersMessage) Serialize() ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	bufint32 := make([]byte, 4)
	binary.LittleEndian.PutUint32(bufint32, uint32(g.Version))
	buf.Write(bufint32)

	hashes, err := encoding.EncodeVarInt(uint64(len(g.BlockLocators)))
	if err != nil {
		return nil, err
	}
	buf.Write(hashes)

	for _, h := range g.BlockLocators {
		buf.Write(h[:])
	}

	buf.Write(g.HashStop[:])

	return buf.Bytes(), nil
}

func (g GetHeadersMessage) Command() string {
	return "getheaders"
}

// HeadersMessage carries up to 2,000 block headers (spec §4.4 headers stage). Each
// header is immediately followed by a tx count, which real peers always
// send as 0 since full block bodies travel over "block"/"getdata" instead.
type HeadersMessage struct {
	Blocks []block.Block
}

func ParseHeadersMessage(r io.Reader) (HeadersMessage, error) {
	numHeaders, err := encoding.ReadVarInt(r)
	if err != nil {
		return HeadersMessage{}, err
	}
	blocks := make([]block.Block, numHeaders)
	for i := uint64(0); i < numHeaders; i++ {
		b, err := block.ParseBlock(r)
		if err != nil {
			return HeadersMessage{}, err
		}
		blocks[i] = b
		numTx, err := encoding.ReadVarInt(r)
		if err != nil {
			return HeadersMessage{}, err
		}
		if numTx != 0 {
			return HeadersMessage{}, fmt.Errorf("num transaction must be 0, got %d", numTx)
		}
	}
	return HeadersMessage{
		Blocks: blocks,
	}, nil
}

func (h *HeadersMessage) Serialize() ([]byte, error) {
	buf := bytes.NewBuffer(nil)

	numHeaders, err := encoding.EncodeVarInt(uint64(len(h.Blocks)))
	if err != nil {
		return nil, err
	}
	buf.Write(numHeaders)

	for _, b := range h.Blocks {
		blockBytes, err := b.Serialize()
		if err != nil {
			return nil, err
		}
		buf.Write(blockBytes)
		buf.WriteByte(0x00) // num_txs = 0
	}

	return buf.Bytes(), nil
}

func (h HeadersMessage) Command() string {
	return "headers"
}
