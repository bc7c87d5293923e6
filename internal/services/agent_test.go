package services

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Riboost-Studio/chalan/internal/model"
)

type printed struct {
	Device string
	Data   []byte
	At     time.Time
}

// fakeAgent is an in-process print agent speaking the handshake and the
// print/printers.find frames.
type fakeAgent struct {
	t        *testing.T
	srv      *httptest.Server
	once     sync.Once
	upgrader websocket.Upgrader

	devices    []string
	readyDelay time.Duration
	failPrintN int // fail the Nth print (1-based), 0 = never
	muteFrom   int // never acknowledge the Nth print and later ones, 0 = always ack
	muteFind   bool

	// pingFirst pings before answering the certificate and requires a pong.
	pingFirst bool

	// rejectSigned refuses certificate-bearing handshakes.
	rejectSigned bool

	// trustedKey, when set, must verify the challenge signature.
	trustedKey []byte

	handshakes atomic.Int32
	pongs      atomic.Int32
	mu         sync.Mutex
	conns      []*websocket.Conn
	jobs       []printed
	certs      []string
}

// newFakeAgent starts listening on the first URL call, so tests configure
// it before any connection exists.
func newFakeAgent(t *testing.T, devices ...string) *fakeAgent {
	t.Helper()
	return &fakeAgent{t: t, devices: devices}
}

func (a *fakeAgent) URL() string {
	a.once.Do(func() {
		a.srv = httptest.NewServer(http.HandlerFunc(a.handle))
		a.t.Cleanup(a.srv.Close)
	})
	return "ws" + strings.TrimPrefix(a.srv.URL, "http")
}

func (a *fakeAgent) Certs() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.certs...)
}

func (a *fakeAgent) Jobs() []printed {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]printed(nil), a.jobs...)
}

// dropAll closes every server side connection.
func (a *fakeAgent) dropAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, c := range a.conns {
		c.Close()
	}
	a.conns = nil
}

func (a *fakeAgent) handle(w http.ResponseWriter, r *http.Request) {
	c, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer c.Close()
	a.handshakes.Add(1)

	var hello model.WSMessage
	if err := c.ReadJSON(&hello); err != nil || hello.Type != model.MessageTypeCertificate {
		return
	}
	a.mu.Lock()
	a.certs = append(a.certs, hello.Certificate)
	a.mu.Unlock()

	if a.pingFirst {
		c.WriteJSON(model.WSMessage{Type: model.MessageTypePing})
		var pong model.WSMessage
		if err := c.ReadJSON(&pong); err != nil || pong.Type != model.MessageTypePong {
			return
		}
		a.pongs.Add(1)
	}

	if hello.Certificate != "" {
		if a.rejectSigned {
			c.WriteJSON(model.WSMessage{Type: model.MessageTypeError, Error: "certificate not trusted"})
			return
		}
		c.WriteJSON(model.WSMessage{Type: model.MessageTypeSignRequest, UID: "challenge-1", Challenge: "nonce-123"})
		var sig model.WSMessage
		if err := c.ReadJSON(&sig); err != nil || sig.Type != model.MessageTypeSignature || sig.Signature == "" {
			c.WriteJSON(model.WSMessage{Type: model.MessageTypeError, Error: "bad signature"})
			return
		}
		if a.trustedKey != nil {
			if err := VerifySignature(a.trustedKey, "nonce-123", sig.Signature); err != nil {
				c.WriteJSON(model.WSMessage{Type: model.MessageTypeError, Error: "signature rejected"})
				return
			}
		}
	}

	time.Sleep(a.readyDelay)
	if err := c.WriteJSON(model.WSMessage{Type: model.MessageTypeReady}); err != nil {
		return
	}
	a.mu.Lock()
	a.conns = append(a.conns, c)
	a.mu.Unlock()

	for {
		var msg model.WSMessage
		if err := c.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case model.MessageTypeFindPrinters:
			if a.muteFind {
				continue
			}
			c.WriteJSON(model.WSMessage{Type: model.MessageTypeResult, UID: msg.UID, Printers: a.devices})
		case model.MessageTypePrint:
			data, _ := base64.StdEncoding.DecodeString(msg.Data)
			a.mu.Lock()
			a.jobs = append(a.jobs, printed{Device: msg.Printer, Data: data, At: time.Now()})
			n := len(a.jobs)
			a.mu.Unlock()
			if a.muteFrom > 0 && n >= a.muteFrom {
				continue
			}
			if a.failPrintN == n {
				c.WriteJSON(model.WSMessage{Type: model.MessageTypeError, UID: msg.UID, Error: "paper jam"})
				continue
			}
			c.WriteJSON(model.WSMessage{Type: model.MessageTypeResult, UID: msg.UID})
		}
	}
}
