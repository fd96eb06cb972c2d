package peer

import (
	"bitnode/internal/encoding"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

type DataType uint32

const (
	DATA_TYPE_ERROR DataType = iota
	DATA_TYPE_TX
	DATA_TYPE_BLOCK
	DATA_TYPE_FILTERED_BLOCK
	DATA_TYPE_CMPCT_BLOCK
)

type DataItem struct {
	Type       DataType
	Identifier [32]byte
}

// InventoryMessage is the shared wire shape of getdata/inv/notfound: a
// varint count followed by (type, hash) pairs.
type InventoryMessage struct {
	Data []DataItem
}

func NewInventoryMessage() InventoryMessage {
	return InventoryMessage{
		Data: []DataItem{},
	}
}

func (im *InventoryMessage) AddData(dType DataType, id [32]byte) {
	im.Data = append(im.Data, DataItem{
		Type:       dType,
		Identifier: id,
	})
}

func (im *InventoryMessage) serializeBody() ([]byte, error) {
	buf := bytes.NewBuffer(nil)

	count, err := encoding.EncodeVarInt(uint64(len(im.Data)))
	if err != nil {
		return nil, err
	}
	buf.Write(count)

	for _, item := range im.Data {
		if err := binary.Write(buf, binary.LittleEndian, item.Type); err != nil {
			return nil, err
		}
		buf.Write(item.Identifier[:])
	}

	return buf.Bytes(), nil
}

func parseInventoryBody(r io.Reader) (InventoryMessage, error) {
	count, err := encoding.ReadVarInt(r)
	if err != nil {
		return InventoryMessage{}, err
	}
	items := make([]DataItem, 0, count)
	for i := uint64(0); i < count; i++ {
		typeBuf := make([]byte, 4)
		if _, err := io.ReadFull(r, typeBuf); err != nil {
			return InventoryMessage{}, fmt.Errorf("inventory parse error (type) - %w", err)
		}
		var id [32]byte
		if _, err := io.ReadFull(r, id[:]); err != nil {
			return InventoryMessage{}, fmt.Errorf("inventory parse error (hash) - %w", err)
		}
		items = append(items, DataItem{
			Type:       DataType(binary.LittleEndian.Uint32(typeBuf)),
			Identifier: id,
		})
	}
	return InventoryMessage{Data: items}, nil
}

// GetDataMessage requests the full objects (blocks/txs) named by its
// inventory items (spec §4.4 blocks stage, ≤16 hashes per request).
type GetDataMessage struct {
	InventoryMessage
}

func NewGetDataMessage() GetDataMessage {
	return GetDataMessage{NewInventoryMessage()}
}

// ParseGetDataMessage parses an incoming getdata request, used by the
// dispatch loop's getdata handler (spec §4.5).
func ParseGetDataMessage(r io.Reader) (GetDataMessage, error) {
	inv, err := parseInventoryBody(r)
	if err != nil {
		return GetDataMessage{}, err
	}
	return GetDataMessage{inv}, nil
}

func (gd *GetDataMessage) Serialize() ([]byte, error) {
	return gd.serializeBody()
}

func (gd GetDataMessage) Command() string {
	return "getdata"
}

// InvMessage announces objects the sending peer has available.
type InvMessage struct {
	InventoryMessage
}

func ParseInvMessage(r io.Reader) (InvMessage, error) {
	inv, err := parseInventoryBody(r)
	if err != nil {
		return InvMessage{}, err
	}
	return InvMessage{inv}, nil
}

func (im *InvMessage) Serialize() ([]byte, error) {
	return im.serializeBody()
}

func (im InvMessage) Command() string {
	return "inv"
}

// NotFoundMessage is a peer's reply to getdata for objects it doesn't have.
type NotFoundMessage struct {
	InventoryMessage
}

func ParseNotFoundMessage(r io.Reader) (NotFoundMessage, error) {
	inv, err := parseInventoryBody(r)
	if err != nil {
		return NotFoundMessage{}, err
	}
	return NotFoundMessage{inv}, nil
}

func (nf *NotFoundMessage) Serialize() ([]byte, error) {
	return nf.serializeBody()
}

func (nf NotFoundMessage) Command() string {
	return "notfound"
}
