package peer

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MessageHandler is registered per command for the post-handshake dispatch
// loop (spec §4.5); it is invoked on every incoming message of that command,
// concurrently with any blocking Receive() on the same command's channel.
type MessageHandler func(NetworkEnvelope)

// Peer wraps one TCP stream (spec §4.3 C3). Reads are fanned out to a set of
// per-command channels (used by the IBD pipeline's blocking request/reply
// pattern) and to registered handlers (used by the dispatch loop, C5).
// Writes go through a single outgoing queue so handlers never interleave
// raw socket writes with the reader.
type Peer struct {
	Addr    NetAddr
	// ConnID identifies this specific connection, distinct from Addr: a
	// peer that reconnects at the same IP:port gets a fresh ID, so log
	// lines can tell the two connections apart even though Addr is
	// identical.
	ConnID  uuid.UUID
	conn    net.Conn
	TestNet bool

	log *logrus.Entry

	incoming chan NetworkEnvelope
	outgoing chan Message
	done     chan struct{}
	closeOnce sync.Once
	wg       sync.WaitGroup

	handlersMu sync.Mutex
	handlers   map[string]MessageHandler

	channelsMu  sync.Mutex
	channelsMap map[string]chan NetworkEnvelope
}

// Dial connects to host:port and starts the peer's reader/writer/fan-out
// goroutines. The handshake itself (version/verack exchange) is driven by
// Handshake, not by Dial.
func Dial(host string, port int, testNet bool, log *logrus.Logger) (*Peer, error) {
	ip := net.ParseIP(host)
	if ip == nil {
		return nil, fmt.Errorf("invalid ip address: %s", host)
	}
	ip16 := ip.To16()
	var address [16]byte
	copy(address[:], ip16)

	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", host, port), 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("error connecting to %s:%d - %w", host, port, err)
	}

	if log == nil {
		log = logrus.StandardLogger()
	}

	connID := uuid.New()
	p := &Peer{
		Addr: NetAddr{
			Services: 0,
			Address:  address,
			Port:     uint16(port),
		},
		ConnID:      connID,
		conn:        conn,
		TestNet:     testNet,
		log:         log.WithField("peer", fmt.Sprintf("%s:%d", host, port)).WithField("conn", connID.String()),
		incoming:    make(chan NetworkEnvelope, 10),
		outgoing:    make(chan Message, 10),
		done:        make(chan struct{}),
		handlers:    make(map[string]MessageHandler),
		channelsMap: make(map[string]chan NetworkEnvelope),
	}

	for _, cmd := range []string{"version", "verack", "headers", "block", "tx", "inv", "notfound", "getheaders", "getdata", "ping", "pong"} {
		bufSize := 1
		if cmd == "tx" || cmd == "block" {
			bufSize = 25
		}
		p.registerChannel(cmd, bufSize)
	}

	p.wg.Add(3)
	go p.readLoop()
	go p.writeLoop()
	go p.fanOutLoop()

	p.OnMessage("ping", func(env NetworkEnvelope) {
		p.log.Debug("auto-responding to ping")
		_ = p.Send(&PongMessage{Nonce: env.Payload})
	})

	return p, nil
}

func (p *Peer) registerChannel(name string, bufSize int) {
	p.channelsMu.Lock()
	defer p.channelsMu.Unlock()
	p.channelsMap[name] = make(chan NetworkEnvelope, bufSize)
}

func (p *Peer) readLoop() {
	defer p.wg.Done()
	defer close(p.incoming)

	for {
		select {
		case <-p.done:
			return
		default:
			env, err := ParseNetworkEnvelope(p.conn)
			if err != nil {
				p.log.WithError(err).Debug("peer read error")
				return
			}
			p.log.WithField("command", env.Command).Trace("received message")

			select {
			case p.incoming <- env:
			case <-p.done:
				return
			}
		}
	}
}

func (p *Peer) writeLoop() {
	defer p.wg.Done()

	for {
		select {
		case msg := <-p.outgoing:
			if err := p.writeMessage(msg); err != nil {
				p.log.WithError(err).Debug("peer write error")
				return
			}
		case <-p.done:
			return
		}
	}
}

func (p *Peer) writeMessage(msg Message) error {
	payload, err := msg.Serialize()
	if err != nil {
		return fmt.Errorf("serialization error: %w", err)
	}
	envelope, err := NewNetworkEnvelope(msg.Command(), payload, p.TestNet)
	if err != nil {
		return fmt.Errorf("envelope error: %w", err)
	}
	data, err := envelope.Serialize()
	if err != nil {
		return fmt.Errorf("serialization error: %w", err)
	}
	p.log.WithField("command", envelope.Command).Trace("sending message")
	_, err = p.conn.Write(data)
	return err
}

// Send enqueues msg on the shared writer queue (spec §4.5's back-channel
// from handlers to the writer).
func (p *Peer) Send(msg Message) error {
	select {
	case p.outgoing <- msg:
		return nil
	case <-p.done:
		return fmt.Errorf("connection closed")
	}
}

func (p *Peer) fanOutLoop() {
	defer func() {
		p.wg.Done()
		p.channelsMu.Lock()
		for _, ch := range p.channelsMap {
			close(ch)
		}
		p.channelsMu.Unlock()
	}()
	for env := range p.incoming {
		p.channelsMu.Lock()
		ch, ok := p.channelsMap[env.Command]
		p.channelsMu.Unlock()
		if ok {
			select {
			case ch <- env:
			default:
				p.log.WithField("command", env.Command).Warn("channel full, dropping message")
			}
		}

		p.handlersMu.Lock()
		handler, ok := p.handlers[env.Command]
		p.handlersMu.Unlock()
		if ok {
			go handler(env)
		}
	}
}

// OnMessage registers a handler invoked for every incoming message of the
// given command (spec §4.5's per-command dispatch table).
func (p *Peer) OnMessage(command string, handler MessageHandler) {
	p.handlersMu.Lock()
	defer p.handlersMu.Unlock()
	p.handlers[command] = handler
}

// Handshake performs the version/verack exchange of spec §4.3.
func (p *Peer) Handshake(startHeight int32) error {
	msg := DefaultVersionMessage(net.IP(p.Addr.Address[:]), p.Addr.Port, startHeight)
	if err := p.Send(&msg); err != nil {
		return err
	}

	if _, err := p.Receive("version"); err != nil {
		return fmt.Errorf("handshake: waiting for version: %w", err)
	}
	if err := p.Send(&VerackMessage{}); err != nil {
		return err
	}
	if _, err := p.Receive("verack"); err != nil {
		return fmt.Errorf("handshake: waiting for verack: %w", err)
	}

	p.log.Info("handshake complete")
	return nil
}

// Receive blocks (up to 5s) for the next message of the given command.
func (p *Peer) Receive(command string) (NetworkEnvelope, error) {
	return p.ReceiveWithTimeout(command, 5*time.Second)
}

func (p *Peer) ReceiveWithTimeout(command string, timeout time.Duration) (NetworkEnvelope, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	p.channelsMu.Lock()
	ch, ok := p.channelsMap[command]
	p.channelsMu.Unlock()
	if !ok {
		return NetworkEnvelope{}, errors.New("unknown command")
	}

	select {
	case env, ok := <-ch:
		if !ok {
			return NetworkEnvelope{}, errors.New("connection closed")
		}
		return env, nil
	case <-timer.C:
		return NetworkEnvelope{}, fmt.Errorf("timeout waiting for %s", command)
	case <-p.done:
		return NetworkEnvelope{}, errors.New("connection closed")
	}
}

// Close tears down the peer's goroutines and underlying socket. Safe to
// call more than once.
func (p *Peer) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
	})
	p.wg.Wait()
	err := p.conn.Close()
	p.log.Debug("peer connection closed")
	return err
}
