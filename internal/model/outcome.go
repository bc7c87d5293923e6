package model

import "time"

type OutcomeStatus string

const (
	StatusOK       OutcomeStatus = "ok"
	StatusDegraded OutcomeStatus = "degraded"
	StatusSkipped  OutcomeStatus = "skipped"
)

// Outcome records how a single step ended. Err is kept for callers that
// want to inspect it; it is never returned as a failure of the sale.
type Outcome struct {
	Status OutcomeStatus `json:"status"`
	Reason string        `json:"reason,omitempty"`
	Err    error         `json:"-"`
}

func OK() Outcome { return Outcome{Status: StatusOK} }

func Degraded(reason string, err error) Outcome {
	return Outcome{Status: StatusDegraded, Reason: reason, Err: err}
}

func Skipped(reason string) Outcome {
	return Outcome{Status: StatusSkipped, Reason: reason}
}

type Route string

const (
	RouteNone     Route = "none"
	RouteHardware Route = "hardware"
	RouteBrowser  Route = "browser"
)

// JobResult is one attempted physical or document output.
type JobResult struct {
	JobID      string    `json:"jobId"`
	Kind       JobKind   `json:"kind"`
	Copy       int       `json:"copy"`
	Route      Route     `json:"route"`
	DrawerSent bool      `json:"drawerSent"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Outcome    Outcome   `json:"outcome"`
}

// Report is what the orchestrator returns for a sale.
type Report struct {
	TicketCode string          `json:"ticketCode"`
	SchoolID   string          `json:"schoolId"`
	Decision   RoutingDecision `json:"decision"`
	Route      Route           `json:"route"`
	States     []string        `json:"states"`
	Jobs       []JobResult     `json:"jobs"`
	Outcome    Outcome         `json:"outcome"`
}
