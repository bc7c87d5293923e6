package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/Riboost-Studio/chalan/internal/model"
)

// --- Device discovery ---

// ListDevices asks the agent for the printers it can reach.
func (m *ConnectionManager) ListDevices(ctx context.Context) ([]string, error) {
	conn, err := m.current()
	if err != nil {
		return nil, err
	}
	reply, err := conn.request(ctx, model.WSMessage{Type: model.MessageTypeFindPrinters})
	if err != nil {
		return nil, model.NewPrintError(model.KindConnectionUnavailable, "list printers", err)
	}
	return reply.Printers, nil
}

// ResolveDevice picks the device to print on for a configured name. The
// boolean is false when the agent reports no devices at all.
func (m *ConnectionManager) ResolveDevice(ctx context.Context, preferred string) (string, bool, error) {
	devices, err := m.ListDevices(ctx)
	if err != nil {
		return "", false, err
	}
	name, ok := MatchDevice(devices, preferred)
	if ok && !strings.EqualFold(name, preferred) {
		m.log.Info("configured printer not found exactly, using closest match",
			zap.String("preferred", preferred), zap.String("device", name))
	}
	return name, ok, nil
}

// MatchDevice resolves preferred against the available device names:
// case-insensitive exact match, then case-insensitive substring match,
// then the first device. It returns false only when devices is empty.
func MatchDevice(devices []string, preferred string) (string, bool) {
	if len(devices) == 0 {
		return "", false
	}
	want := strings.ToLower(strings.TrimSpace(preferred))
	if want != "" {
		for _, d := range devices {
			if strings.ToLower(d) == want {
				return d, true
			}
		}
		for _, d := range devices {
			if strings.Contains(strings.ToLower(d), want) {
				return d, true
			}
		}
	}
	return devices[0], true
}
