package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ahmedwadee/fbrflow/internal/fbr"
	"github.com/ahmedwadee/fbrflow/internal/hscode"
	"github.com/ahmedwadee/fbrflow/internal/invoice"
	"github.com/ahmedwadee/fbrflow/internal/payload"
	"github.com/ahmedwadee/fbrflow/internal/queue"
	"github.com/ahmedwadee/fbrflow/internal/sublog"
	"github.com/ahmedwadee/fbrflow/internal/worker"
)

var frozen = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type stubSubmitter struct {
	result *fbr.SubmissionResult
	err    error
	calls  int
}

func (s *stubSubmitter) PostInvoice(_ context.Context, _ *payload.Payload) (*fbr.SubmissionResult, error) {
	s.calls++
	return s.result, s.err
}

type harness struct {
	worker      *worker.Worker
	queueRepo   *queue.MockRepository
	invoiceRepo *invoice.MockRepository
	logRepo     *sublog.MockRepository
	submitter   *stubSubmitter
	clock       *time.Time
}

func newHarness(t *testing.T, submitter *stubSubmitter) *harness {
	t.Helper()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	now := frozen

	h := &harness{
		queueRepo:   queue.NewMockRepository(ctrl),
		invoiceRepo: invoice.NewMockRepository(ctrl),
		logRepo:     sublog.NewMockRepository(ctrl),
		submitter:   submitter,
		clock:       &now,
	}

	queueSvc := queue.NewService(h.queueRepo, queue.RetryPolicy{
		BaseDelay:   2 * time.Second,
		MaxDelay:    time.Minute,
		MaxAttempts: 3,
	}).WithClock(func() time.Time { return *h.clock })

	h.worker = worker.New(
		queueSvc,
		invoice.NewService(h.invoiceRepo),
		payload.NewBuilder(hscode.NewStatic("5904.9000")),
		submitter,
		sublog.NewService(h.logRepo),
		worker.Config{PollInterval: time.Second, CallTimeout: time.Second},
	)

	return h
}

func validInvoice(id uuid.UUID) *invoice.Invoice {
	return &invoice.Invoice{
		ID:            id,
		InvoiceNumber: "SI-2026-0001",
		Type:          invoice.TypeSaleInvoice,
		PostingDate:   time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Status:        invoice.StatusQueued,
		Seller: invoice.Party{
			NTNCNIC:      "1234567-8",
			BusinessName: "Mehran Textiles",
			Province:     "Sindh",
		},
		Buyer: invoice.Party{
			BusinessName: "Indus Retail",
			Province:     "Punjab",
		},
		Items: []invoice.LineItem{
			{
				HSCode:     "5904.9000",
				UoM:        "SQM",
				Quantity:   decimal.NewFromInt(10),
				UnitValue:  100_00,
				TaxRateBps: 1800,
			},
		},
	}
}

func TestWorker_ProcessOne_EmptyQueue(t *testing.T) {
	h := newHarness(t, &stubSubmitter{})

	h.queueRepo.EXPECT().NextPending(gomock.Any(), frozen).Return(nil, nil)

	processed, err := h.worker.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
	assert.Zero(t, h.submitter.calls)
}

func TestWorker_ProcessOne_Success(t *testing.T) {
	invoiceID := uuid.New()
	entryID := uuid.New()

	h := newHarness(t, &stubSubmitter{
		result: &fbr.SubmissionResult{
			FBRInvoiceNumber: "7000007DI1747119701593",
			Status:           "Valid",
			StatusCode:       "00",
			Raw:              []byte(`{"validationResponse":{"status":"Valid"}}`),
		},
	})

	entry := &queue.Entry{ID: entryID, InvoiceID: invoiceID, Status: queue.StatusPending}

	h.queueRepo.EXPECT().NextPending(gomock.Any(), frozen).Return(entry, nil)
	h.queueRepo.EXPECT().MarkInFlight(gomock.Any(), entryID).Return(nil)
	h.invoiceRepo.EXPECT().GetInvoice(gomock.Any(), invoiceID).Return(validInvoice(invoiceID), nil)
	h.queueRepo.EXPECT().MarkAcknowledged(gomock.Any(), entryID).Return(nil)
	h.invoiceRepo.EXPECT().
		SetSubmissionResult(gomock.Any(), invoiceID, "7000007DI1747119701593", "Valid", gomock.Any()).
		Return(nil)
	h.invoiceRepo.EXPECT().UpdateStatus(gomock.Any(), invoiceID, invoice.StatusSubmitted).Return(nil)
	h.logRepo.EXPECT().
		Append(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, rec *sublog.Record) error {
			assert.Equal(t, sublog.OutcomeSuccess, rec.Outcome)
			assert.Equal(t, invoiceID, rec.InvoiceID)
			assert.Equal(t, "7000007DI1747119701593", rec.FBRInvoiceNumber)
			assert.NotEmpty(t, rec.RequestPayload)
			assert.NotEmpty(t, rec.ResponseBody)
			return nil
		})

	processed, err := h.worker.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, 1, h.submitter.calls)
}

func TestWorker_ProcessOne_TransportErrorRetries(t *testing.T) {
	invoiceID := uuid.New()
	entryID := uuid.New()

	h := newHarness(t, &stubSubmitter{
		err: &fbr.TransportError{Op: "posting invoice", Err: context.DeadlineExceeded},
	})

	entry := &queue.Entry{ID: entryID, InvoiceID: invoiceID, Status: queue.StatusPending}

	h.queueRepo.EXPECT().NextPending(gomock.Any(), frozen).Return(entry, nil)
	h.queueRepo.EXPECT().MarkInFlight(gomock.Any(), entryID).Return(nil)
	h.invoiceRepo.EXPECT().GetInvoice(gomock.Any(), invoiceID).Return(validInvoice(invoiceID), nil)

	// First failed attempt: base delay of 2s, not terminal.
	h.queueRepo.EXPECT().
		MarkFailed(gomock.Any(), entryID, 1, gomock.Any(), false, frozen.Add(2*time.Second)).
		Return(nil)
	h.logRepo.EXPECT().
		Append(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, rec *sublog.Record) error {
			assert.Equal(t, sublog.OutcomeTransport, rec.Outcome)
			return nil
		})

	processed, err := h.worker.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)

	// After the delay the entry is due again; the second failure doubles
	// the backoff.
	*h.clock = frozen.Add(2 * time.Second)
	entry.Status = queue.StatusFailed

	h.queueRepo.EXPECT().NextPending(gomock.Any(), *h.clock).Return(entry, nil)
	h.queueRepo.EXPECT().MarkInFlight(gomock.Any(), entryID).Return(nil)
	h.invoiceRepo.EXPECT().GetInvoice(gomock.Any(), invoiceID).Return(validInvoice(invoiceID), nil)
	h.queueRepo.EXPECT().
		MarkFailed(gomock.Any(), entryID, 2, gomock.Any(), false, h.clock.Add(4*time.Second)).
		Return(nil)
	h.logRepo.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)

	processed, err = h.worker.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, 2, h.submitter.calls)
	assert.Equal(t, 2, entry.Attempts)
}

func TestWorker_ProcessOne_ExhaustedAttemptsTurnTerminal(t *testing.T) {
	invoiceID := uuid.New()
	entryID := uuid.New()

	h := newHarness(t, &stubSubmitter{
		err: &fbr.TransportError{Op: "posting invoice", Err: context.DeadlineExceeded},
	})

	// Two attempts already burned; MaxAttempts is 3.
	entry := &queue.Entry{ID: entryID, InvoiceID: invoiceID, Status: queue.StatusFailed, Attempts: 2}

	h.queueRepo.EXPECT().NextPending(gomock.Any(), frozen).Return(entry, nil)
	h.queueRepo.EXPECT().MarkInFlight(gomock.Any(), entryID).Return(nil)
	h.invoiceRepo.EXPECT().GetInvoice(gomock.Any(), invoiceID).Return(validInvoice(invoiceID), nil)
	h.queueRepo.EXPECT().
		MarkFailed(gomock.Any(), entryID, 3, gomock.Any(), true, gomock.Any()).
		Return(nil)
	h.invoiceRepo.EXPECT().UpdateStatus(gomock.Any(), invoiceID, invoice.StatusFailed).Return(nil)
	h.logRepo.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)

	processed, err := h.worker.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.True(t, entry.Terminal)
}

func TestWorker_ProcessOne_RejectionIsTerminal(t *testing.T) {
	invoiceID := uuid.New()
	entryID := uuid.New()

	h := newHarness(t, &stubSubmitter{
		err: &fbr.RejectionError{StatusCode: "01", Message: "Seller not registered for sales tax"},
	})

	entry := &queue.Entry{ID: entryID, InvoiceID: invoiceID, Status: queue.StatusPending}

	h.queueRepo.EXPECT().NextPending(gomock.Any(), frozen).Return(entry, nil)
	h.queueRepo.EXPECT().MarkInFlight(gomock.Any(), entryID).Return(nil)
	h.invoiceRepo.EXPECT().GetInvoice(gomock.Any(), invoiceID).Return(validInvoice(invoiceID), nil)
	h.queueRepo.EXPECT().
		MarkFailed(gomock.Any(), entryID, 1, "Seller not registered for sales tax", true, gomock.Any()).
		Return(nil)
	h.invoiceRepo.EXPECT().UpdateStatus(gomock.Any(), invoiceID, invoice.StatusFailed).Return(nil)
	h.logRepo.EXPECT().
		Append(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, rec *sublog.Record) error {
			assert.Equal(t, sublog.OutcomeRejected, rec.Outcome)
			assert.Contains(t, rec.Detail, "Seller not registered")
			return nil
		})

	processed, err := h.worker.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.True(t, entry.Terminal)
	assert.Equal(t, 1, h.submitter.calls)
}

func TestWorker_ProcessOne_ValidationFailureSkipsCall(t *testing.T) {
	invoiceID := uuid.New()
	entryID := uuid.New()

	h := newHarness(t, &stubSubmitter{})

	entry := &queue.Entry{ID: entryID, InvoiceID: invoiceID, Status: queue.StatusPending}

	// The invoice lost its buyer province since it was enqueued.
	inv := validInvoice(invoiceID)
	inv.Buyer.Province = ""

	h.queueRepo.EXPECT().NextPending(gomock.Any(), frozen).Return(entry, nil)
	h.queueRepo.EXPECT().MarkInFlight(gomock.Any(), entryID).Return(nil)
	h.invoiceRepo.EXPECT().GetInvoice(gomock.Any(), invoiceID).Return(inv, nil)
	h.queueRepo.EXPECT().
		MarkFailed(gomock.Any(), entryID, 1, gomock.Any(), true, gomock.Any()).
		Return(nil)
	h.invoiceRepo.EXPECT().UpdateStatus(gomock.Any(), invoiceID, invoice.StatusFailed).Return(nil)
	h.logRepo.EXPECT().
		Append(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, rec *sublog.Record) error {
			assert.Equal(t, sublog.OutcomeValidation, rec.Outcome)
			assert.Contains(t, rec.Detail, "buyer.province")
			return nil
		})

	processed, err := h.worker.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Zero(t, h.submitter.calls)
}

func TestWorker_ProcessOne_LostClaimIsNotAnError(t *testing.T) {
	invoiceID := uuid.New()
	entryID := uuid.New()

	h := newHarness(t, &stubSubmitter{})

	entry := &queue.Entry{ID: entryID, InvoiceID: invoiceID, Status: queue.StatusPending}

	h.queueRepo.EXPECT().NextPending(gomock.Any(), frozen).Return(entry, nil)
	h.queueRepo.EXPECT().MarkInFlight(gomock.Any(), entryID).Return(queue.ErrConflict)

	processed, err := h.worker.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
	assert.Zero(t, h.submitter.calls)
}
