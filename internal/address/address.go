package address

import (
	"bitnode/internal/encoding"
	"fmt"
)

type Network int

const (
	MAINNET Network = iota
	TESTNET
)

func (n Network) P2PKHVersion() byte {
	if n == TESTNET {
		return 0x6F
	}
	return 0x00
}

// Address is a base58check-encoded P2PKH address (spec §4.6). SegWit and
// P2SH addresses are a non-goal.
type Address struct {
	Network Network
	String  string
}

// FromHash160 builds a P2PKH address from a 20-byte hash160.
func FromHash160(hash160 []byte, net Network) (*Address, error) {
	if len(hash160) != 20 {
		return nil, fmt.Errorf("invalid hash160 length: %d", len(hash160))
	}
	prefix := net.P2PKHVersion()
	addrString := encoding.EncodeBase58Checksum(append([]byte{prefix}, hash160...))
	return &Address{
		String:  addrString,
		Network: net,
	}, nil
}

// FromPublicKey builds a P2PKH address from a SEC-encoded public key.
func FromPublicKey(pubkey []byte, net Network) (*Address, error) {
	hash160 := encoding.Hash160(pubkey)
	return FromHash160(hash160, net)
}

// Decode recovers the hash160 and network from a base58check P2PKH address.
func Decode(addrString string) ([]byte, Network, error) {
	raw, err := encoding.DecodeBase58Checksum(addrString)
	if err != nil {
		return nil, MAINNET, fmt.Errorf("address decode error: %w", err)
	}
	if len(raw) != 21 {
		return nil, MAINNET, fmt.Errorf("invalid address payload length: %d", len(raw))
	}

	var net Network
	switch raw[0] {
	case 0x00:
		net = MAINNET
	case 0x6F:
		net = TESTNET
	default:
		return nil, MAINNET, fmt.Errorf("unrecognized address version byte: 0x%02x", raw[0])
	}

	return raw[1:], net, nil
}
