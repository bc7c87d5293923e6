package services

import (
	"testing"

	"github.com/Riboost-Studio/chalan/internal/model"
)

func allFlagsConfig() *model.PrinterConfig {
	cfg := model.DefaultPrinterConfig("school-1")
	cfg.PrintComanda = true
	cfg.ComandaCopies = 2
	cfg.PrintTicketGeneral, cfg.PrintTicketCredit, cfg.PrintTicketTeacher = true, true, true
	cfg.PrintComandaGeneral, cfg.PrintComandaCredit, cfg.PrintComandaTeacher = true, true, true
	cfg.OpenDrawerOnGeneral, cfg.OpenDrawerOnCredit, cfg.OpenDrawerOnTeacher = true, true, true
	return cfg
}

func TestDecide_UnknownSaleType(t *testing.T) {
	t.Parallel()
	cfg := allFlagsConfig()
	for _, st := range []model.SaleType{"", "GENERAL", "staff", "refund", "general "} {
		d := Decide(cfg, st, 5)
		if d != (model.RoutingDecision{}) {
			t.Errorf("Decide(%q) = %+v, want all false", st, d)
		}
		if d := Decide(nil, st, 5); d != (model.RoutingDecision{}) {
			t.Errorf("Decide(nil, %q) = %+v, want all false", st, d)
		}
	}
	if d := Decide(nil, "bogus", 5); !d.Empty() {
		t.Errorf("Decide(nil, bogus) = %+v, want nothing printed", d)
	}
}

func TestDecide_GlobalComandaSwitch(t *testing.T) {
	t.Parallel()
	cfg := allFlagsConfig()
	cfg.PrintComanda = false
	for _, st := range []model.SaleType{model.SaleGeneral, model.SaleCredit, model.SaleTeacher} {
		d := Decide(cfg, st, 5)
		if d.PrintComanda || d.ComandaCopies != 0 {
			t.Errorf("Decide(%q) printed comanda with global switch off: %+v", st, d)
		}
		if !d.PrintTicket || !d.OpenDrawer {
			t.Errorf("Decide(%q) = %+v, want ticket and drawer", st, d)
		}
	}
}

func TestDecide_PerTypeFlags(t *testing.T) {
	t.Parallel()
	cfg := model.DefaultPrinterConfig("school-1")
	cfg.PrintComanda = true
	cfg.ComandaCopies = 2
	cfg.PrintTicketGeneral = true
	cfg.OpenDrawerOnGeneral = true
	cfg.PrintTicketTeacher = true
	cfg.PrintComandaTeacher = true

	tests := []struct {
		saleType model.SaleType
		want     model.RoutingDecision
	}{
		{model.SaleGeneral, model.RoutingDecision{PrintTicket: true, OpenDrawer: true}},
		{model.SaleTeacher, model.RoutingDecision{PrintTicket: true, PrintComanda: true, ComandaCopies: 2}},
		{model.SaleCredit, model.RoutingDecision{}},
	}
	for _, tt := range tests {
		t.Run(string(tt.saleType), func(t *testing.T) {
			if got := Decide(cfg, tt.saleType, 5); got != tt.want {
				t.Errorf("Decide(%q) = %+v, want %+v", tt.saleType, got, tt.want)
			}
		})
	}
}

func TestDecide_CopyClamp(t *testing.T) {
	t.Parallel()
	tests := []struct {
		copies, max, want int
	}{
		{0, 5, 1},
		{-3, 5, 1},
		{1, 5, 1},
		{3, 5, 3},
		{9, 5, 5},
		{4, 0, 1},
	}
	for _, tt := range tests {
		cfg := allFlagsConfig()
		cfg.ComandaCopies = tt.copies
		d := Decide(cfg, model.SaleGeneral, tt.max)
		if d.ComandaCopies != tt.want {
			t.Errorf("copies=%d max=%d: got %d, want %d", tt.copies, tt.max, d.ComandaCopies, tt.want)
		}
	}
}

func TestDecide_NoConfig(t *testing.T) {
	t.Parallel()
	for _, st := range []model.SaleType{model.SaleGeneral, model.SaleCredit, model.SaleTeacher, "unknown"} {
		d := Decide(nil, st, 5)
		want := model.RoutingDecision{PrintTicket: true}
		if d != want {
			t.Errorf("Decide(nil, %q) = %+v, want ticket only", st, d)
		}
	}
}
