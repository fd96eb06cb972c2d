package peer

type GenericMessage struct {
	command string
	payload []byte
}

func NewGenericMessage(command string, payload []byte) GenericMessage {
	return GenericMessage{
		command: command,
		payload: payload,
	}
}

func (g *GenericMessage) Serialize() ([]byte, error) {
	return g.payload, nil
}

func (g GenericMessage) Command() string {
	return g.command
}

// VerackMessage acknowledges a received version message. It carries no
// payload.
type VerackMessage struct{}

func (v *VerackMessage) Serialize() ([]byte, error) {
	return []byte{}, nil
}

func (v VerackMessage) Command() string {
	return "verack"
}

// PongMessage echoes a ping's nonce back to the sender.
type PongMessage struct {
	Nonce []byte
}

func (pm *PongMessage) Serialize() ([]byte, error) {
	return pm.Nonce, nil
}

func (pm PongMessage) Command() string {
	return "pong"
}
