package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Riboost-Studio/chalan/internal/model"
	"github.com/Riboost-Studio/chalan/internal/receipt"
)

type State string

const (
	StateIdle               State = "idle"
	StateResolvingConfig    State = "resolving_config"
	StateDeciding           State = "deciding"
	StateAttemptingHardware State = "attempting_hardware"
	StateSucceeded          State = "succeeded"
	StateFallingBack        State = "falling_back"
	StateRenderingBrowser   State = "rendering_browser"
	StateDone               State = "done"
)

// ConfigResolver returns the active config of a school, or nil when the
// school has none.
type ConfigResolver interface {
	ActiveConfig(ctx context.Context, schoolID string) (*model.PrinterConfig, error)
}

// Connector is the part of ConnectionManager the orchestrator needs.
type Connector interface {
	EnsureConnected(ctx context.Context) error
	ResolveDevice(ctx context.Context, preferred string) (string, bool, error)
}

// JobSender prints one job on a resolved device.
type JobSender interface {
	Send(ctx context.Context, device string, job PrintJob) error
}

// DocumentShower opens one fallback document.
type DocumentShower interface {
	Show(ctx context.Context, doc Document) (Handle, error)
}

type OrchestratorOptions struct {
	HardwareTimeout  time.Duration
	// SendTimeout bounds every agent round trip once connected: the device
	// lookup and each job's acknowledgement.
	SendTimeout      time.Duration
	ComandaStagger   time.Duration
	CopyDelay        time.Duration
	MaxComandaCopies int
}

func DefaultOrchestratorOptions() OrchestratorOptions {
	return OrchestratorOptions{
		HardwareTimeout:  3 * time.Second,
		SendTimeout:      5 * time.Second,
		ComandaStagger:   700 * time.Millisecond,
		CopyDelay:        250 * time.Millisecond,
		MaxComandaCopies: 5,
	}
}

// Orchestrator turns a completed sale into print side effects. Print never
// fails: every problem ends up in the returned Report.
type Orchestrator struct {
	configs  ConfigResolver
	conn     Connector
	hardware JobSender
	browser  DocumentShower
	opts     OrchestratorOptions
	log      *zap.Logger
}

func NewOrchestrator(configs ConfigResolver, conn Connector, hardware JobSender, browser DocumentShower, opts OrchestratorOptions, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxComandaCopies < 1 {
		opts.MaxComandaCopies = 1
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultOrchestratorOptions().SendTimeout
	}
	return &Orchestrator{
		configs:  configs,
		conn:     conn,
		hardware: hardware,
		browser:  browser,
		opts:     opts,
		log:      log.Named("orchestrator"),
	}
}

// run holds the per-sale state of one Print call.
type run struct {
	o      *Orchestrator
	sale   model.SaleData
	cfg    *model.PrinterConfig
	report model.Report
	log    *zap.Logger
}

func (r *run) enter(s State) {
	r.report.States = append(r.report.States, string(s))
	r.log.Debug("state", zap.String("state", string(s)))
}

func (r *run) record(job PrintJob, route model.Route, started time.Time, out model.Outcome) {
	r.report.Jobs = append(r.report.Jobs, model.JobResult{
		JobID:      job.ID,
		Kind:       job.Kind,
		Copy:       job.Copy,
		Route:      route,
		DrawerSent: route == model.RouteHardware && job.OpenDrawer && out.Status == model.StatusOK,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Outcome:    out,
	})
}

// Print runs the sale to a terminal state. Cancelling ctx does not abort
// it: the sale is already committed.
func (o *Orchestrator) Print(ctx context.Context, sale model.SaleData) (report model.Report) {
	ctx = context.WithoutCancel(ctx)
	r := &run{
		o:    o,
		sale: sale,
		log:  o.log.With(zap.String("ticket", sale.TicketCode), zap.String("school", sale.SchoolID)),
		report: model.Report{
			TicketCode: sale.TicketCode,
			SchoolID:   sale.SchoolID,
			Route:      model.RouteNone,
		},
	}
	r.enter(StateIdle)
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("print orchestration panicked", zap.Any("panic", p))
			r.report.Outcome = model.Degraded("internal error", fmt.Errorf("panic: %v", p))
		}
		r.enter(StateDone)
		report = r.report
	}()

	if err := sale.Validate(); err != nil {
		r.log.Warn("invalid sale, nothing printed", zap.Error(err))
		r.report.Outcome = model.Skipped(err.Error())
		return r.report
	}

	r.enter(StateResolvingConfig)
	cfg, err := o.configs.ActiveConfig(ctx, sale.SchoolID)
	if err != nil {
		r.log.Warn("config lookup failed, using defaults", zap.Error(err))
		cfg = nil
	}

	r.enter(StateDeciding)
	decision := Decide(cfg, sale.SaleType, o.opts.MaxComandaCopies)
	r.report.Decision = decision
	if decision.Empty() {
		r.log.Info("nothing to print for sale type", zap.String("saleType", string(sale.SaleType)))
		r.report.Outcome = model.Skipped("nothing to print for sale type " + string(sale.SaleType))
		return r.report
	}
	if cfg == nil {
		r.log.Info("no active printer config, printing ticket in browser")
		r.cfg = model.DefaultPrinterConfig(sale.SchoolID)
		r.fallback(ctx, decision, model.Skipped("no active printer config"))
		return r.report
	}
	r.cfg = cfg

	r.enter(StateAttemptingHardware)
	sent, err := r.hardware(ctx, decision)
	if err == nil {
		r.enter(StateSucceeded)
		r.report.Route = model.RouteHardware
		r.report.Outcome = r.hardwareOutcome()
		return r.report
	}
	if sent {
		// Something already came out of the printer; finish degraded
		// rather than printing the sale twice.
		r.report.Route = model.RouteHardware
		r.report.Outcome = model.Degraded("hardware printing incomplete", err)
		return r.report
	}
	r.log.Info("hardware path unavailable, falling back to browser", zap.Error(err))
	r.fallback(ctx, decision, model.Degraded("hardware unavailable", err))
	return r.report
}

func (r *run) hardwareOutcome() model.Outcome {
	for _, j := range r.report.Jobs {
		if j.Outcome.Status != model.StatusOK {
			return model.Degraded("some copies failed", model.ErrPartialCompletion)
		}
	}
	return model.OK()
}

// connect races the connection against the hardware budget. The losing
// attempt keeps running in the background and only logs.
func (r *run) connect(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		done <- r.o.conn.EnsureConnected(ctx)
	}()

	timer := time.NewTimer(r.o.opts.HardwareTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		go func() {
			if err := <-done; err != nil {
				r.log.Debug("abandoned connection attempt failed", zap.Error(err))
			} else {
				r.log.Debug("abandoned connection attempt settled")
			}
		}()
		return model.NewPrintError(model.KindConnectionUnavailable,
			fmt.Sprintf("print agent not ready within %s", r.o.opts.HardwareTimeout), context.DeadlineExceeded)
	}
}

// hardware prints the decided jobs through the agent. sent reports whether
// any job reached the device before an error.
func (r *run) hardware(ctx context.Context, d model.RoutingDecision) (sent bool, err error) {
	if err := r.connect(ctx); err != nil {
		return false, err
	}

	lookupCtx, cancel := context.WithTimeout(ctx, r.o.opts.SendTimeout)
	device, ok, err := r.o.conn.ResolveDevice(lookupCtx, r.cfg.PrinterName)
	cancel()
	if err != nil {
		return false, err
	}
	if !ok {
		return false, model.NewPrintError(model.KindDeviceNotFound,
			fmt.Sprintf("no device matches %q and none is available", r.cfg.PrinterName), nil)
	}
	log := r.log.With(zap.String("device", device))
	if d.OpenDrawer && !r.cfg.OpenCashDrawer {
		log.Debug("drawer pulse decided but no cash drawer is configured")
	}

	// Encode everything up front so a bad item falls back before any
	// paper is used.
	var ticket PrintJob
	if d.PrintTicket {
		seq, err := receipt.EncodeTicket(receipt.TicketFromSale(r.cfg, r.sale))
		if err != nil {
			return false, err
		}
		ticket = newJob(model.JobTicket, 1, 1, seq, r.cfg.PaperWidth)
		ticket.OpenDrawer = d.OpenDrawer
		ticket.DrawerPin = r.cfg.CashDrawerPin
	}
	var comanda receipt.Sequence
	if d.PrintComanda {
		comanda, err = receipt.EncodeComanda(receipt.ComandaFromSale(r.cfg, r.sale))
		if err != nil {
			return false, err
		}
	}

	if d.PrintTicket {
		started := time.Now()
		if err := r.send(ctx, device, ticket); err != nil {
			r.record(ticket, model.RouteHardware, started, model.Degraded("ticket send failed", err))
			return false, err
		}
		r.record(ticket, model.RouteHardware, started, model.OK())
		sent = true
		log.Info("ticket printed", zap.Bool("drawer", ticket.OpenDrawer))
	}

	for i := 1; i <= d.ComandaCopies && d.PrintComanda; i++ {
		if sent {
			time.Sleep(r.o.opts.CopyDelay)
		}
		job := newJob(model.JobComanda, i, d.ComandaCopies, comanda, r.cfg.PaperWidth)
		started := time.Now()
		if err := r.send(ctx, device, job); err != nil {
			if !sent {
				r.record(job, model.RouteHardware, started, model.Degraded("comanda send failed", err))
				return false, err
			}
			perr := model.NewPrintError(model.KindPartialCompletion,
				fmt.Sprintf("comanda copy %d of %d", i, d.ComandaCopies), err)
			log.Warn("comanda copy failed, continuing", zap.Int("copy", i), zap.Error(perr))
			r.record(job, model.RouteHardware, started, model.Degraded("comanda copy failed", perr))
			continue
		}
		r.record(job, model.RouteHardware, started, model.OK())
		sent = true
		log.Info("comanda printed", zap.Int("copy", i), zap.Int("copies", d.ComandaCopies))
	}
	return sent, nil
}

// send prints one job, giving up on the acknowledgement after SendTimeout.
func (r *run) send(ctx context.Context, device string, job PrintJob) error {
	ctx, cancel := context.WithTimeout(ctx, r.o.opts.SendTimeout)
	defer cancel()
	err := r.o.hardware.Send(ctx, device, job)
	if err != nil && ctx.Err() != nil {
		return model.NewPrintError(model.KindSendFailure,
			fmt.Sprintf("%s copy %d not acknowledged within %s", job.Kind, job.Copy, r.o.opts.SendTimeout), err)
	}
	return err
}

// fallback renders the decided outputs as documents. It is entered at most
// once per sale.
func (r *run) fallback(ctx context.Context, d model.RoutingDecision, reason model.Outcome) {
	r.enter(StateFallingBack)
	r.report.Route = model.RouteBrowser
	r.enter(StateRenderingBrowser)

	var failures []error
	if d.OpenDrawer {
		r.log.Info("cash drawer not available on browser path")
	}

	var ticketSection *Section
	if d.PrintTicket {
		seq, err := receipt.EncodeTicket(receipt.TicketFromSale(r.cfg, r.sale))
		if err != nil {
			r.log.Error("ticket could not be encoded", zap.Error(err))
			failures = append(failures, err)
		} else {
			s := renderSection(model.JobTicket, seq)
			ticketSection = &s
		}
	}

	var comanda receipt.Sequence
	if d.PrintComanda {
		seq, err := receipt.EncodeComanda(receipt.ComandaFromSale(r.cfg, r.sale))
		if err != nil {
			r.log.Error("comanda could not be encoded", zap.Error(err))
			failures = append(failures, err)
		} else {
			comanda = seq
		}
	}

	if ticketSection != nil {
		job := newJob(model.JobTicket, 1, 1, nil, r.cfg.PaperWidth)
		started := time.Now()
		doc := NewDocument(r.cfg, r.sale, model.JobTicket, 1, *ticketSection)
		if _, err := r.o.browser.Show(ctx, doc); err != nil {
			r.log.Error("ticket document failed", zap.Error(err))
			failures = append(failures, err)
			r.record(job, model.RouteBrowser, started, model.Degraded("ticket document failed", err))
		} else {
			r.record(job, model.RouteBrowser, started, model.OK())
		}
	}

	// Comandas always get documents of their own after the ticket. Without
	// PrintSeparateComanda all copies share one document, a section each.
	var groups [][]int
	if comanda != nil {
		if r.cfg.PrintSeparateComanda {
			for i := 1; i <= d.ComandaCopies; i++ {
				groups = append(groups, []int{i})
			}
		} else {
			all := make([]int, d.ComandaCopies)
			for i := range all {
				all[i] = i + 1
			}
			groups = append(groups, all)
		}
	}

	section := renderSection(model.JobComanda, comanda)
	for n, copies := range groups {
		if ticketSection != nil || n > 0 {
			time.Sleep(r.o.opts.ComandaStagger)
		}
		sections := make([]Section, len(copies))
		for i := range sections {
			sections[i] = section
		}
		started := time.Now()
		doc := NewDocument(r.cfg, r.sale, model.JobComanda, copies[0], sections...)
		_, err := r.o.browser.Show(ctx, doc)
		if err != nil {
			r.log.Error("comanda document failed", zap.Ints("copies", copies), zap.Error(err))
			failures = append(failures, err)
		}
		for _, c := range copies {
			job := newJob(model.JobComanda, c, d.ComandaCopies, nil, r.cfg.PaperWidth)
			if err != nil {
				r.record(job, model.RouteBrowser, started, model.Degraded("comanda document failed", err))
			} else {
				r.record(job, model.RouteBrowser, started, model.OK())
			}
		}
	}

	if len(failures) > 0 {
		r.report.Outcome = model.Degraded("browser fallback incomplete", errors.Join(failures...))
		return
	}
	r.report.Outcome = reason
}
