package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/Riboost-Studio/chalan/internal/model"
)

type failingStrategy struct{}

func (failingStrategy) Name() string                 { return "broken" }
func (failingStrategy) Certificate() (string, error) { return "-----BEGIN CERTIFICATE-----", nil }
func (failingStrategy) Sign(string) (string, error)  { return "", errors.New("token expired") }

func newTestManager(t *testing.T, url string, signing SigningStrategy) *ConnectionManager {
	t.Helper()
	m := NewConnectionManager(ConnectionOptions{
		URL:              url,
		HandshakeTimeout: time.Second,
		Signing:          signing,
		Logger:           zaptest.NewLogger(t),
	})
	t.Cleanup(func() { m.Close() })
	return m
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestConnectionManager_SignedHandshake(t *testing.T) {
	t.Parallel()
	agent := newFakeAgent(t, "EPSON TM-T20III")
	pub, priv := newTestKeyPair(t)
	agent.trustedKey = pub
	signed, err := NewSignedStrategy(pub, priv)
	if err != nil {
		t.Fatal(err)
	}
	m := newTestManager(t, agent.URL(), signed)

	if m.State() != model.StateDisconnected {
		t.Fatalf("initial state = %s", m.State())
	}
	if err := m.EnsureConnected(context.Background()); err != nil {
		t.Fatalf("EnsureConnected: %v", err)
	}
	if m.State() != model.StateConnected {
		t.Errorf("state = %s, want connected", m.State())
	}
	// already connected is a no-op
	if err := m.EnsureConnected(context.Background()); err != nil {
		t.Fatalf("second EnsureConnected: %v", err)
	}
	if n := agent.handshakes.Load(); n != 1 {
		t.Errorf("handshakes = %d, want 1", n)
	}
	if certs := agent.Certs(); len(certs) != 1 || certs[0] != string(pub) {
		t.Errorf("agent saw certificates %q", certs)
	}
}

func TestConnectionManager_AnswersHandshakePing(t *testing.T) {
	t.Parallel()
	agent := newFakeAgent(t, "EPSON")
	agent.pingFirst = true
	m := newTestManager(t, agent.URL(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.EnsureConnected(ctx); err != nil {
		t.Fatalf("EnsureConnected: %v", err)
	}
	if n := agent.pongs.Load(); n != 1 {
		t.Errorf("pongs = %d, want 1", n)
	}
}

func TestConnectionManager_SingleFlight(t *testing.T) {
	t.Parallel()
	agent := newFakeAgent(t, "POS-80")
	agent.readyDelay = 100 * time.Millisecond
	m := newTestManager(t, agent.URL(), nil)

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = m.EnsureConnected(context.Background())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("caller %d: %v", i, err)
		}
	}
	if n := agent.handshakes.Load(); n != 1 {
		t.Errorf("handshakes = %d, want exactly 1", n)
	}
}

func TestConnectionManager_FallsBackToUnsigned(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		signing SigningStrategy
		reject  bool
	}{
		{"sign error", failingStrategy{}, false},
		{"agent rejects certificate", failingStrategy{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			agent := newFakeAgent(t, "POS-80")
			agent.rejectSigned = tt.reject
			m := newTestManager(t, agent.URL(), tt.signing)

			if err := m.EnsureConnected(context.Background()); err != nil {
				t.Fatalf("EnsureConnected: %v", err)
			}
			if n := agent.handshakes.Load(); n != 2 {
				t.Errorf("handshakes = %d, want signed then unsigned", n)
			}
			if certs := agent.Certs(); len(certs) != 2 || certs[0] == "" || certs[1] != "" {
				t.Errorf("certificates = %q", certs)
			}
		})
	}
}

func TestConnectionManager_Unavailable(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		url  string
	}{
		{"bad scheme", "http://127.0.0.1:1"},
		{"nothing listening", "ws://127.0.0.1:1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(t, tt.url, nil)
			err := m.EnsureConnected(context.Background())
			if !errors.Is(err, model.ErrConnectionUnavailable) {
				t.Fatalf("err = %v, want connection unavailable", err)
			}
			if m.State() != model.StateFailed {
				t.Errorf("state = %s, want failed", m.State())
			}
		})
	}
}

func TestConnectionManager_PrintRequiresConnection(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, "ws://127.0.0.1:1", nil)
	if err := m.Print(context.Background(), "POS-80", []byte{0x1B, '@'}); !errors.Is(err, model.ErrConnectionUnavailable) {
		t.Errorf("Print err = %v", err)
	}
	if _, err := m.ListDevices(context.Background()); !errors.Is(err, model.ErrConnectionUnavailable) {
		t.Errorf("ListDevices err = %v", err)
	}
}

func TestConnectionManager_PrintAndDevices(t *testing.T) {
	t.Parallel()
	agent := newFakeAgent(t, "EPSON TM-T20III", "Kitchen POS-80")
	agent.failPrintN = 2
	m := newTestManager(t, agent.URL(), nil)
	ctx := context.Background()

	if err := m.EnsureConnected(ctx); err != nil {
		t.Fatal(err)
	}
	devices, err := m.ListDevices(ctx)
	if err != nil || len(devices) != 2 {
		t.Fatalf("ListDevices = %v, %v", devices, err)
	}

	device, ok, err := m.ResolveDevice(ctx, "kitchen")
	if err != nil || !ok || device != "Kitchen POS-80" {
		t.Fatalf("ResolveDevice = %q, %v, %v", device, ok, err)
	}

	if err := m.Print(ctx, device, []byte{0x1B, '@', 'h', 'i'}); err != nil {
		t.Fatalf("Print: %v", err)
	}
	if err := m.Print(ctx, device, []byte("second")); !errors.Is(err, model.ErrSendFailure) {
		t.Errorf("second Print err = %v, want send failure", err)
	}

	jobs := agent.Jobs()
	if len(jobs) != 2 || jobs[0].Device != "Kitchen POS-80" || string(jobs[0].Data) != "\x1b@hi" {
		t.Errorf("agent jobs = %+v", jobs)
	}
}

func TestConnectionManager_NoDevices(t *testing.T) {
	t.Parallel()
	agent := newFakeAgent(t)
	m := newTestManager(t, agent.URL(), nil)
	ctx := context.Background()
	if err := m.EnsureConnected(ctx); err != nil {
		t.Fatal(err)
	}
	device, ok, err := m.ResolveDevice(ctx, "EPSON")
	if err != nil || ok || device != "" {
		t.Errorf("ResolveDevice = %q, %v, %v; want none", device, ok, err)
	}
}

func TestConnectionManager_Reconnects(t *testing.T) {
	t.Parallel()
	agent := newFakeAgent(t, "POS-80")
	m := newTestManager(t, agent.URL(), nil)
	ctx := context.Background()

	if err := m.EnsureConnected(ctx); err != nil {
		t.Fatal(err)
	}
	agent.dropAll()
	waitFor(t, func() bool { return m.State() == model.StateDisconnected })

	if err := m.EnsureConnected(ctx); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if n := agent.handshakes.Load(); n != 2 {
		t.Errorf("handshakes = %d, want 2", n)
	}
}
