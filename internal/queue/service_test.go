package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ahmedwadee/fbrflow/internal/queue"
)

var frozen = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*queue.Service, *queue.MockRepository) {
	t.Helper()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	repo := queue.NewMockRepository(ctrl)
	svc := queue.NewService(repo, queue.RetryPolicy{
		BaseDelay:   2 * time.Second,
		MaxDelay:    time.Minute,
		MaxAttempts: 3,
	}).WithClock(func() time.Time { return frozen })

	return svc, repo
}

func TestService_Enqueue(t *testing.T) {
	svc, repo := newService(t)

	invoiceID := uuid.New()

	repo.EXPECT().GetActiveByInvoice(gomock.Any(), invoiceID).Return(nil, queue.ErrNotFound)
	repo.EXPECT().
		CreateEntry(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e *queue.Entry) error {
			e.ID = uuid.New()
			e.CreatedAt = frozen
			return nil
		})

	e, err := svc.Enqueue(context.Background(), invoiceID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusPending, e.Status)
	assert.Equal(t, frozen, e.NextRetryAt)
	assert.Zero(t, e.Attempts)
}

func TestService_Enqueue_Duplicate(t *testing.T) {
	type testCase struct {
		name     string
		existing *queue.Entry
	}

	tests := []testCase{
		{name: "Pending", existing: &queue.Entry{Status: queue.StatusPending}},
		{name: "InFlight", existing: &queue.Entry{Status: queue.StatusInFlight}},
		{name: "FailedRetryable", existing: &queue.Entry{Status: queue.StatusFailed}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newService(t)

			invoiceID := uuid.New()
			repo.EXPECT().GetActiveByInvoice(gomock.Any(), invoiceID).Return(tt.existing, nil)

			_, err := svc.Enqueue(context.Background(), invoiceID)
			assert.ErrorIs(t, err, queue.ErrDuplicate)
		})
	}
}

func TestService_MarkFailed_Backoff(t *testing.T) {
	type testCase struct {
		name         string
		attempts     int
		wantDelay    time.Duration
		wantTerminal bool
	}

	// BaseDelay 2s, MaxDelay 1m, MaxAttempts 3.
	tests := []testCase{
		{name: "FirstAttempt", attempts: 0, wantDelay: 2 * time.Second},
		{name: "SecondAttempt", attempts: 1, wantDelay: 4 * time.Second},
		{name: "ThirdAttemptExhausts", attempts: 2, wantDelay: 8 * time.Second, wantTerminal: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newService(t)

			e := &queue.Entry{
				ID:       uuid.New(),
				Status:   queue.StatusInFlight,
				Attempts: tt.attempts,
			}

			wantNext := frozen.Add(tt.wantDelay)
			repo.EXPECT().
				MarkFailed(gomock.Any(), e.ID, tt.attempts+1, "connection timed out", tt.wantTerminal, wantNext).
				Return(nil)

			err := svc.MarkFailed(context.Background(), e, "connection timed out", false)
			require.NoError(t, err)

			assert.Equal(t, queue.StatusFailed, e.Status)
			assert.Equal(t, tt.attempts+1, e.Attempts)
			assert.Equal(t, tt.wantTerminal, e.Terminal)
			assert.Equal(t, wantNext, e.NextRetryAt)
			assert.True(t, e.NextRetryAt.After(frozen))
		})
	}
}

func TestService_MarkFailed_TerminalRejection(t *testing.T) {
	svc, repo := newService(t)

	e := &queue.Entry{ID: uuid.New(), Status: queue.StatusInFlight}

	repo.EXPECT().
		MarkFailed(gomock.Any(), e.ID, 1, "buyer NTN not registered", true, gomock.Any()).
		Return(nil)

	err := svc.MarkFailed(context.Background(), e, "buyer NTN not registered", true)
	require.NoError(t, err)
	assert.True(t, e.Terminal)
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := queue.RetryPolicy{
		BaseDelay:   2 * time.Second,
		MaxDelay:    30 * time.Second,
		MaxAttempts: 10,
	}

	assert.Equal(t, 2*time.Second, p.Delay(1))
	assert.Equal(t, 4*time.Second, p.Delay(2))
	assert.Equal(t, 8*time.Second, p.Delay(3))
	assert.Equal(t, 16*time.Second, p.Delay(4))
	assert.Equal(t, 30*time.Second, p.Delay(5))  // capped
	assert.Equal(t, 30*time.Second, p.Delay(20)) // stays capped

	// Strictly increasing until the cap.
	for i := 1; i < 4; i++ {
		assert.Less(t, p.Delay(i), p.Delay(i+1))
	}
}

func TestService_Cancel(t *testing.T) {
	type testCase struct {
		name      string
		entry     *queue.Entry
		setupMock func(repo *queue.MockRepository, id uuid.UUID)
		wantErr   error
	}

	tests := []testCase{
		{
			name:  "PendingDeleted",
			entry: &queue.Entry{Status: queue.StatusPending},
			setupMock: func(repo *queue.MockRepository, id uuid.UUID) {
				repo.EXPECT().DeleteEntry(gomock.Any(), id).Return(nil)
			},
		},
		{
			name:    "InFlightRefused",
			entry:   &queue.Entry{Status: queue.StatusInFlight},
			wantErr: queue.ErrInFlight,
		},
		{
			name:  "FailedDeleted",
			entry: &queue.Entry{Status: queue.StatusFailed, Terminal: true},
			setupMock: func(repo *queue.MockRepository, id uuid.UUID) {
				repo.EXPECT().DeleteEntry(gomock.Any(), id).Return(nil)
			},
		},
		{
			name:    "AcknowledgedRefused",
			entry:   &queue.Entry{Status: queue.StatusAcknowledged},
			wantErr: queue.ErrConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newService(t)

			id := uuid.New()
			tt.entry.ID = id
			repo.EXPECT().GetEntry(gomock.Any(), id).Return(tt.entry, nil)

			if tt.setupMock != nil {
				tt.setupMock(repo, id)
			}

			err := svc.Cancel(context.Background(), id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			assert.NoError(t, err)
		})
	}
}

func TestService_Retry(t *testing.T) {
	svc, repo := newService(t)

	id := uuid.New()
	repo.EXPECT().GetEntry(gomock.Any(), id).Return(&queue.Entry{
		ID:       id,
		Status:   queue.StatusFailed,
		Terminal: true,
		Attempts: 3,
	}, nil)
	repo.EXPECT().Requeue(gomock.Any(), id, frozen).Return(nil)

	e, err := svc.Retry(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusPending, e.Status)
	assert.False(t, e.Terminal)
}

func TestService_Retry_NotTerminal(t *testing.T) {
	svc, repo := newService(t)

	id := uuid.New()
	repo.EXPECT().GetEntry(gomock.Any(), id).Return(&queue.Entry{
		ID:     id,
		Status: queue.StatusFailed,
	}, nil)

	_, err := svc.Retry(context.Background(), id)
	assert.ErrorIs(t, err, queue.ErrConflict)
}

func TestService_DequeueNext_None(t *testing.T) {
	svc, repo := newService(t)

	repo.EXPECT().NextPending(gomock.Any(), frozen).Return(nil, nil)

	e, err := svc.DequeueNext(context.Background())
	require.NoError(t, err)
	assert.Nil(t, e)
}
