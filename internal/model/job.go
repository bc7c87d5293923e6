package model

type JobKind string

const (
	JobTicket  JobKind = "ticket"
	JobComanda JobKind = "comanda"
)

// RoutingDecision is what the router decided for one sale.
type RoutingDecision struct {
	PrintTicket   bool `json:"printTicket"`
	PrintComanda  bool `json:"printComanda"`
	ComandaCopies int  `json:"comandaCopies"`
	OpenDrawer    bool `json:"openDrawer"`
}

// Empty reports whether the decision prints nothing at all.
func (d RoutingDecision) Empty() bool {
	return !d.PrintTicket && !d.PrintComanda
}
