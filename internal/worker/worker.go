// Package worker drains the submission queue against the authority API.
// A single sequential worker is deliberate: the authority rejects duplicate
// in-flight submissions, so invoices go out one at a time.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmedwadee/fbrflow/internal/fbr"
	"github.com/ahmedwadee/fbrflow/internal/invoice"
	"github.com/ahmedwadee/fbrflow/internal/payload"
	"github.com/ahmedwadee/fbrflow/internal/queue"
	"github.com/ahmedwadee/fbrflow/internal/sublog"
)

// Submitter is the authority call boundary, implemented by *fbr.Client.
type Submitter interface {
	PostInvoice(ctx context.Context, p *payload.Payload) (*fbr.SubmissionResult, error)
}

type Worker struct {
	queue    *queue.Service
	invoices *invoice.Service
	builder  *payload.Builder
	client   Submitter
	log      *sublog.Service

	pollInterval time.Duration
	callTimeout  time.Duration
	now          func() time.Time
}

type Config struct {
	PollInterval time.Duration
	CallTimeout  time.Duration
}

func New(q *queue.Service, invoices *invoice.Service, builder *payload.Builder, client Submitter, log *sublog.Service, cfg Config) *Worker {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Second
	}

	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = 30 * time.Second
	}

	return &Worker{
		queue:        q,
		invoices:     invoices,
		builder:      builder,
		client:       client,
		log:          log,
		pollInterval: cfg.PollInterval,
		callTimeout:  cfg.CallTimeout,
		now:          time.Now,
	}
}

// Run drains the queue until ctx is cancelled. An in-progress submission is
// allowed to resolve; only the idle wait is interruptible.
func (w *Worker) Run(ctx context.Context) {
	slog.Info("submission worker started", "poll_interval", w.pollInterval)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		w.drain(ctx)

		select {
		case <-ctx.Done():
			slog.Info("submission worker stopped")
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		processed, err := w.ProcessOne(ctx)
		if err != nil {
			slog.Error("processing queue entry", "error", err)
			return
		}

		if !processed {
			return
		}
	}
}

// ProcessOne submits the next due queue entry. It reports whether an entry
// was processed; (false, nil) means the queue had nothing ready.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	e, err := w.queue.DequeueNext(ctx)
	if err != nil {
		return false, fmt.Errorf("dequeueing: %w", err)
	}

	if e == nil {
		return false, nil
	}

	if err := w.queue.MarkInFlight(ctx, e); err != nil {
		if errors.Is(err, queue.ErrConflict) {
			// Lost the entry to a concurrent transition; not an error.
			return false, nil
		}

		return false, fmt.Errorf("marking in flight: %w", err)
	}

	w.submit(ctx, e)

	return true, nil
}

func (w *Worker) submit(ctx context.Context, e *queue.Entry) {
	start := w.now()

	inv, err := w.invoices.Get(ctx, e.InvoiceID)
	if err != nil {
		w.failTerminal(ctx, e, nil, sublog.OutcomeValidation, fmt.Sprintf("loading invoice: %v", err), start)
		return
	}

	p, err := w.builder.Build(ctx, inv)
	if err != nil {
		var verr *payload.ValidationError
		if errors.As(err, &verr) {
			// The invoice changed since it was enqueued; no retry will fix it.
			w.failTerminal(ctx, e, nil, sublog.OutcomeValidation, verr.Error(), start)
			return
		}

		// Lookup infrastructure failure; retry later.
		w.failRetryable(ctx, e, nil, err.Error(), start)

		return
	}

	rawPayload, _ := json.Marshal(p)

	callCtx, cancel := context.WithTimeout(ctx, w.callTimeout)
	defer cancel()

	result, err := w.client.PostInvoice(callCtx, p)
	if err != nil {
		var rejection *fbr.RejectionError
		if errors.As(err, &rejection) {
			slog.Warn("invoice rejected by authority",
				"invoice_id", e.InvoiceID, "status_code", rejection.StatusCode, "message", rejection.Message)

			w.failTerminal(ctx, e, rawPayload, sublog.OutcomeRejected, rejection.Message, start)

			return
		}

		slog.Warn("submission transport failure",
			"invoice_id", e.InvoiceID, "attempt", e.Attempts+1, "error", err)

		w.failRetryable(ctx, e, rawPayload, err.Error(), start)

		return
	}

	if err := w.queue.MarkAcknowledged(ctx, e); err != nil {
		slog.Error("marking entry acknowledged", "entry_id", e.ID, "error", err)
		return
	}

	if err := w.invoices.MarkSubmitted(ctx, e.InvoiceID, result.FBRInvoiceNumber, result.Status, w.now()); err != nil {
		slog.Error("recording invoice submission", "invoice_id", e.InvoiceID, "error", err)
	}

	w.append(ctx, &sublog.Record{
		InvoiceID:        e.InvoiceID,
		EntryID:          e.ID,
		FBRInvoiceNumber: result.FBRInvoiceNumber,
		Outcome:          sublog.OutcomeSuccess,
		RequestPayload:   rawPayload,
		ResponseBody:     result.Raw,
		Duration:         w.now().Sub(start),
		SubmittedAt:      start,
	})

	slog.Info("invoice acknowledged",
		"invoice_id", e.InvoiceID, "fbr_invoice_number", result.FBRInvoiceNumber)
}

// failRetryable records a transport-class failure; the entry retries per the
// backoff policy unless its attempt budget is spent.
func (w *Worker) failRetryable(ctx context.Context, e *queue.Entry, rawPayload []byte, cause string, start time.Time) {
	if err := w.queue.MarkFailed(ctx, e, cause, false); err != nil {
		slog.Error("marking entry failed", "entry_id", e.ID, "error", err)
		return
	}

	if e.Terminal {
		if err := w.invoices.MarkFailed(ctx, e.InvoiceID); err != nil {
			slog.Error("marking invoice failed", "invoice_id", e.InvoiceID, "error", err)
		}
	}

	w.append(ctx, &sublog.Record{
		InvoiceID:      e.InvoiceID,
		EntryID:        e.ID,
		Outcome:        sublog.OutcomeTransport,
		Detail:         cause,
		RequestPayload: rawPayload,
		Duration:       w.now().Sub(start),
		SubmittedAt:    start,
	})
}

// failTerminal records a failure that retrying cannot fix; the entry needs
// manual intervention and the invoice reopens for editing.
func (w *Worker) failTerminal(ctx context.Context, e *queue.Entry, rawPayload []byte, outcome sublog.Outcome, cause string, start time.Time) {
	if err := w.queue.MarkFailed(ctx, e, cause, true); err != nil {
		slog.Error("marking entry failed", "entry_id", e.ID, "error", err)
		return
	}

	if err := w.invoices.MarkFailed(ctx, e.InvoiceID); err != nil {
		slog.Error("marking invoice failed", "invoice_id", e.InvoiceID, "error", err)
	}

	w.append(ctx, &sublog.Record{
		InvoiceID:      e.InvoiceID,
		EntryID:        e.ID,
		Outcome:        outcome,
		Detail:         cause,
		RequestPayload: rawPayload,
		Duration:       w.now().Sub(start),
		SubmittedAt:    start,
	})
}

func (w *Worker) append(ctx context.Context, rec *sublog.Record) {
	if err := w.log.Append(ctx, rec); err != nil {
		slog.Error("appending submission log", "invoice_id", rec.InvoiceID, "error", err)
	}
}
