package peer

import (
	"bitnode/internal/encoding"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"time"
)

type NetAddr struct {
	Services uint64
	Address  [16]byte
	Port     uint16
}

func NewNetAddr(services uint64, address [16]byte, port uint16) NetAddr {
	return NetAddr{
		Services: services,
		Address:  address,
		Port:     port,
	}
}

func (na NetAddr) String() string {
	ip := net.IP(na.Address[:])
	return ip.String()
}

func (na *NetAddr) Serialize() []byte {
	serviceBytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(serviceBytes, na.Services)
	portBytes := make([]byte, 2)
	binary.BigEndian.PutUint16(portBytes, na.Port)
	return append(serviceBytes, append(na.Address[:], portBytes...)...)
}

func ParseNetAddr(r io.Reader) (NetAddr, error) {
	buf := make([]byte, 8)
	if _, err := io.ReadFull(r, buf); err != nil {
		return NetAddr{}, err
	}
	services := binary.LittleEndian.Uint64(buf)

	var addr [16]byte
	if _, err := io.ReadFull(r, addr[:]); err != nil {
		return NetAddr{}, err
	}

	portBuf := make([]byte, 2)
	if _, err := io.ReadFull(r, portBuf); err != nil {
		return NetAddr{}, err
	}
	port := binary.BigEndian.Uint16(portBuf)

	return NetAddr{Services: services, Address: addr, Port: port}, nil
}

type VersionMessage struct {
	Version      int32 // default 70015
	Services     uint64
	TimeStamp    int64 // 64 bit UNIX time
	SenderAddr   NetAddr
	ReceiverAddr NetAddr
	Nonce        uint64
	UserAgent    string
	LatestBlock  int32
	Relay        bool
}

func DefaultVersionMessage(remoteIP net.IP, port uint16, latestBlock int32) VersionMessage {
	ip16 := remoteIP.To16()
	var addr [16]byte
	copy(addr[:], ip16)
	return VersionMessage{
		Version:   70015,
		Services:  0,
		TimeStamp: time.Now().Unix(),
		SenderAddr: NetAddr{
			Services: 0,
			Address:  [16]byte{},
			Port:     port,
		},
		ReceiverAddr: NetAddr{
			Services: 0,
			Address:  addr,
			Port:     port,
		},
		Nonce:       rand.Uint64(),
		UserAgent:   "/bitnode:0.1/",
		LatestBlock: latestBlock,
		Relay:       false,
	}
}

func (vm *VersionMessage) Serialize() ([]byte, error) {
	buf := bytes.NewBuffer(nil)

	int32Buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(int32Buf, uint32(vm.Version))
	buf.Write(int32Buf)

	int64Buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(int64Buf, vm.Services)
	buf.Write(int64Buf)

	binary.LittleEndian.PutUint64(int64Buf, uint64(vm.TimeStamp))
	buf.Write(int64Buf)

	buf.Write(vm.ReceiverAddr.Serialize())
	buf.Write(vm.SenderAddr.Serialize())

	binary.LittleEndian.PutUint64(int64Buf, vm.Nonce)
	buf.Write(int64Buf)

	userAgentVarInt, err := encoding.EncodeVarInt(uint64(len(vm.UserAgent)))
	if err != nil {
		return nil, err
	}
	buf.Write(userAgentVarInt)
	buf.Write([]byte(vm.UserAgent))

	binary.LittleEndian.PutUint32(int32Buf, uint32(vm.LatestBlock))
	buf.Write(int32Buf)

	if vm.Relay {
		buf.WriteByte(0x01)
	} else {
		buf.WriteByte(0x00)
	}

	return buf.Bytes(), nil
}

func ParseVersionMessage(r io.Reader) (VersionMessage, error) {
	buf := make([]byte, 4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return VersionMessage{}, fmt.Errorf("version parse error (version) - %w", err)
	}
	version := int32(binary.LittleEndian.Uint32(buf))

	buf8 := make([]byte, 8)
	if _, err := io.ReadFull(r, buf8); err != nil {
		return VersionMessage{}, fmt.Errorf("version parse error (services) - %w", err)
	}
	services := binary.LittleEndian.Uint64(buf8)

	if _, err := io.ReadFull(r, buf8); err != nil {
		return VersionMessage{}, fmt.Errorf("version parse error (timestamp) - %w", err)
	}
	timestamp := int64(binary.LittleEndian.Uint64(buf8))

	receiverAddr, err := ParseNetAddr(r)
	if err != nil {
		return VersionMessage{}, fmt.Errorf("version parse error (receiver addr) - %w", err)
	}
	senderAddr, err := ParseNetAddr(r)
	if err != nil {
		return VersionMessage{}, fmt.Errorf("version parse error (sender addr) - %w", err)
	}

	if _, err := io.ReadFull(r, buf8); err != nil {
		return VersionMessage{}, fmt.Errorf("version parse error (nonce) - %w", err)
	}
	nonce := binary.LittleEndian.Uint64(buf8)

	userAgentLen, err := encoding.ReadVarInt(r)
	if err != nil {
		return VersionMessage{}, fmt.Errorf("version parse error (user agent length) - %w", err)
	}
	userAgentBytes := make([]byte, userAgentLen)
	if _, err := io.ReadFull(r, userAgentBytes); err != nil {
		return VersionMessage{}, fmt.Errorf("version parse error (user agent) - %w", err)
	}

	if _, err := io.ReadFull(r, buf); err != nil {
		return VersionMessage{}, fmt.Errorf("version parse error (latest block) - %w", err)
	}
	latestBlock := int32(binary.LittleEndian.Uint32(buf))

	relayByte := make([]byte, 1)
	relay := false
	if _, err := io.ReadFull(r, relayByte); err == nil {
		relay = relayByte[0] != 0x00
	}

	return VersionMessage{
		Version:      version,
		Services:     services,
		TimeStamp:    timestamp,
		SenderAddr:   senderAddr,
		ReceiverAddr: receiverAddr,
		Nonce:        nonce,
		UserAgent:    string(userAgentBytes),
		LatestBlock:  latestBlock,
		Relay:        relay,
	}, nil
}

func (vm VersionMessage) Command() string {
	return "version"
}
