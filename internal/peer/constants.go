package peer

// Network ports
const (
	MAINNET_PORT int = 8333
	TESTNET_PORT int = 18333
)

// DNS seeds for peer discovery
const (
	MAINNET_SEEDS string = "seed.bitcoin.sipa.be"
	TESTNET_SEEDS string = "testnet-seed.bitcoin.jonasschnelli.ch"
)

// Service flags (NODE_* constants)
const (
	NODE_NETWORK uint64 = 1 << 0 // full node serving the complete chain
)
