package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Riboost-Studio/chalan/internal/model"
)

// --- Print agent connection ---

type ConnectionOptions struct {
	URL              string
	Header           http.Header
	HandshakeTimeout time.Duration
	// Signing is tried first. When it is not already unsigned, a failed
	// negotiation is retried once with UnsignedStrategy.
	Signing SigningStrategy
	Logger  *zap.Logger
}

// ConnectionManager owns the one logical connection to the local print
// agent. Concurrent callers of EnsureConnected share a single handshake.
type ConnectionManager struct {
	url              string
	header           http.Header
	handshakeTimeout time.Duration
	strategies       []SigningStrategy
	log              *zap.Logger

	group singleflight.Group

	mu    sync.Mutex
	state model.ConnectionState
	conn  *agentConn
}

func NewConnectionManager(opts ConnectionOptions) *ConnectionManager {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	primary := opts.Signing
	if primary == nil {
		primary = UnsignedStrategy{}
	}
	strategies := []SigningStrategy{primary}
	if _, unsigned := primary.(UnsignedStrategy); !unsigned {
		strategies = append(strategies, UnsignedStrategy{})
	}
	return &ConnectionManager{
		url:              opts.URL,
		header:           opts.Header,
		handshakeTimeout: opts.HandshakeTimeout,
		strategies:       strategies,
		log:              log.Named("agent"),
		state:            model.StateDisconnected,
	}
}

func (m *ConnectionManager) State() model.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *ConnectionManager) setState(s model.ConnectionState) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// EnsureConnected negotiates a connection unless one is already up. It
// does not impose a deadline of its own; callers race it against theirs.
func (m *ConnectionManager) EnsureConnected(ctx context.Context) error {
	if m.State() == model.StateConnected {
		return nil
	}
	_, err, shared := m.group.Do("connect", func() (interface{}, error) {
		if m.State() == model.StateConnected {
			return nil, nil
		}
		m.setState(model.StateHandshaking)
		conn, err := m.negotiate(ctx)
		if err != nil {
			m.setState(model.StateFailed)
			return nil, err
		}
		m.mu.Lock()
		m.conn = conn
		m.state = model.StateConnected
		m.mu.Unlock()
		go m.watch(conn)
		return nil, nil
	})
	if shared {
		m.log.Debug("joined in-flight handshake")
	}
	return err
}

func (m *ConnectionManager) negotiate(ctx context.Context) (*agentConn, error) {
	var lastErr error
	for _, strategy := range m.strategies {
		conn, err := m.dialAndHandshake(ctx, strategy)
		if err == nil {
			m.log.Info("connected to print agent", zap.String("url", m.url), zap.String("signing", strategy.Name()))
			return conn, nil
		}
		m.log.Warn("negotiation failed", zap.String("signing", strategy.Name()), zap.Error(err))
		lastErr = err
	}
	return nil, model.NewPrintError(model.KindConnectionUnavailable, "print agent negotiation failed", lastErr)
}

func (m *ConnectionManager) dialAndHandshake(ctx context.Context, strategy SigningStrategy) (*agentConn, error) {
	cert, err := strategy.Certificate()
	if err != nil {
		return nil, fmt.Errorf("certificate: %w", err)
	}

	parsed, err := url.Parse(m.url)
	if err != nil {
		return nil, fmt.Errorf("invalid agent URL: %w", err)
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return nil, fmt.Errorf("agent URL scheme must be ws or wss, got %q", parsed.Scheme)
	}

	dialer := &websocket.Dialer{HandshakeTimeout: m.handshakeTimeout}
	c, _, err := dialer.DialContext(ctx, parsed.String(), m.header)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	// Unblock the handshake reads if ctx ends first.
	stop := context.AfterFunc(ctx, func() { c.Close() })
	defer stop()

	if err := c.WriteJSON(model.WSMessage{Type: model.MessageTypeCertificate, Certificate: cert}); err != nil {
		c.Close()
		return nil, fmt.Errorf("send certificate: %w", err)
	}

	for {
		var msg model.WSMessage
		if err := c.ReadJSON(&msg); err != nil {
			c.Close()
			return nil, fmt.Errorf("handshake read: %w", err)
		}

		switch msg.Type {
		case model.MessageTypePing:
			if err := c.WriteJSON(model.WSMessage{Type: model.MessageTypePong}); err != nil {
				c.Close()
				return nil, fmt.Errorf("send pong: %w", err)
			}

		case model.MessageTypeSignRequest:
			sig, err := strategy.Sign(msg.Challenge)
			if err != nil {
				c.Close()
				return nil, err
			}
			if err := c.WriteJSON(model.WSMessage{Type: model.MessageTypeSignature, UID: msg.UID, Signature: sig}); err != nil {
				c.Close()
				return nil, fmt.Errorf("send signature: %w", err)
			}

		case model.MessageTypeReady:
			return newAgentConn(c, m.log), nil

		case model.MessageTypeError:
			c.Close()
			return nil, fmt.Errorf("agent refused: %s", msg.Error)

		default:
			m.log.Debug("ignoring frame during handshake", zap.String("type", string(msg.Type)))
		}
	}
}

// watch resets the state once the connection's read loop ends, so the
// next EnsureConnected reconnects.
func (m *ConnectionManager) watch(conn *agentConn) {
	<-conn.done
	m.mu.Lock()
	if m.conn == conn {
		m.conn = nil
		m.state = model.StateDisconnected
	}
	m.mu.Unlock()
	m.log.Info("print agent disconnected", zap.Error(conn.err))
}

func (m *ConnectionManager) current() (*agentConn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil || m.state != model.StateConnected {
		return nil, model.NewPrintError(model.KindConnectionUnavailable, "not connected to print agent", nil)
	}
	return m.conn, nil
}

// Print sends raw ESC/POS bytes to the named device and waits for the
// agent's acknowledgement.
func (m *ConnectionManager) Print(ctx context.Context, device string, data []byte) error {
	conn, err := m.current()
	if err != nil {
		return err
	}
	_, err = conn.request(ctx, model.WSMessage{
		Type:    model.MessageTypePrint,
		Printer: device,
		Data:    base64.StdEncoding.EncodeToString(data),
	})
	if err != nil {
		return model.NewPrintError(model.KindSendFailure, "print to "+device, err)
	}
	return nil
}

func (m *ConnectionManager) Close() error {
	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.state = model.StateDisconnected
	m.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.close()
}

// agentConn multiplexes request/reply frames over one websocket.
type agentConn struct {
	c   *websocket.Conn
	log *zap.Logger

	// gorilla websocket panics on concurrent writes.
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan model.WSMessage

	done chan struct{}
	err  error
}

func newAgentConn(c *websocket.Conn, log *zap.Logger) *agentConn {
	ac := &agentConn{
		c:       c,
		log:     log,
		pending: make(map[string]chan model.WSMessage),
		done:    make(chan struct{}),
	}
	go ac.readLoop()
	return ac
}

func (ac *agentConn) write(msg model.WSMessage) error {
	ac.writeMu.Lock()
	defer ac.writeMu.Unlock()
	return ac.c.WriteJSON(msg)
}

func (ac *agentConn) readLoop() {
	defer close(ac.done)
	for {
		var msg model.WSMessage
		if err := ac.c.ReadJSON(&msg); err != nil {
			ac.err = err
			return
		}

		switch msg.Type {
		case model.MessageTypePing:
			if err := ac.write(model.WSMessage{Type: model.MessageTypePong}); err != nil {
				ac.log.Warn("pong failed", zap.Error(err))
			}

		case model.MessageTypeResult, model.MessageTypeError:
			ac.mu.Lock()
			ch, ok := ac.pending[msg.UID]
			delete(ac.pending, msg.UID)
			ac.mu.Unlock()
			if ok {
				ch <- msg
			} else {
				ac.log.Debug("reply for unknown request", zap.String("uid", msg.UID))
			}

		default:
			ac.log.Debug("unknown message type", zap.String("type", string(msg.Type)))
		}
	}
}

func (ac *agentConn) request(ctx context.Context, msg model.WSMessage) (model.WSMessage, error) {
	msg.UID = uuid.NewString()
	ch := make(chan model.WSMessage, 1)

	ac.mu.Lock()
	ac.pending[msg.UID] = ch
	ac.mu.Unlock()
	defer func() {
		ac.mu.Lock()
		delete(ac.pending, msg.UID)
		ac.mu.Unlock()
	}()

	if err := ac.write(msg); err != nil {
		return model.WSMessage{}, fmt.Errorf("write %s: %w", msg.Type, err)
	}

	select {
	case reply := <-ch:
		if reply.Type == model.MessageTypeError {
			return reply, errors.New(reply.Error)
		}
		return reply, nil
	case <-ac.done:
		return model.WSMessage{}, fmt.Errorf("connection closed: %v", ac.err)
	case <-ctx.Done():
		return model.WSMessage{}, ctx.Err()
	}
}

func (ac *agentConn) close() error {
	ac.writeMu.Lock()
	ac.c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	ac.writeMu.Unlock()
	return ac.c.Close()
}
