package services

import "github.com/Riboost-Studio/chalan/internal/model"

// Decide looks up, for the sale type, whether to print a ticket, a comanda
// (and how many copies) and whether to open the drawer. Unknown sale types
// decide nothing. A nil config means ticket only.
func Decide(cfg *model.PrinterConfig, saleType model.SaleType, maxCopies int) model.RoutingDecision {
	switch saleType {
	case model.SaleGeneral, model.SaleCredit, model.SaleTeacher:
	default:
		return model.RoutingDecision{}
	}
	if cfg == nil {
		return model.RoutingDecision{PrintTicket: true}
	}

	var ticket, comanda, drawer bool
	switch saleType {
	case model.SaleGeneral:
		ticket, comanda, drawer = cfg.PrintTicketGeneral, cfg.PrintComandaGeneral, cfg.OpenDrawerOnGeneral
	case model.SaleCredit:
		ticket, comanda, drawer = cfg.PrintTicketCredit, cfg.PrintComandaCredit, cfg.OpenDrawerOnCredit
	case model.SaleTeacher:
		ticket, comanda, drawer = cfg.PrintTicketTeacher, cfg.PrintComandaTeacher, cfg.OpenDrawerOnTeacher
	}

	d := model.RoutingDecision{
		PrintTicket:  ticket,
		PrintComanda: comanda && cfg.PrintComanda,
		OpenDrawer:   drawer,
	}
	if d.PrintComanda {
		d.ComandaCopies = clampCopies(cfg.ComandaCopies, maxCopies)
	}
	return d
}

func clampCopies(n, max int) int {
	if max < 1 {
		max = 1
	}
	if n < 1 {
		return 1
	}
	if n > max {
		return max
	}
	return n
}
