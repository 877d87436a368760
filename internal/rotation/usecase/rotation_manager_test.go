package usecase

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	auditDomain "github.com/allisson/dominion/internal/audit/domain"
	auditService "github.com/allisson/dominion/internal/audit/service"
	keysDomain "github.com/allisson/dominion/internal/keys/domain"
	"github.com/allisson/dominion/internal/keys/repository"
	keysService "github.com/allisson/dominion/internal/keys/service"
	keysUseCase "github.com/allisson/dominion/internal/keys/usecase"
	rotationDomain "github.com/allisson/dominion/internal/rotation/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type rotationFixture struct {
	clock   *clockwork.FakeClock
	ledger  *auditService.Ledger
	keys    keysUseCase.RootKeyUseCase
	manager *rotationManager
}

func newRotationFixture(t *testing.T) *rotationFixture {
	t.Helper()

	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	providers, err := keysDomain.NewProviderSet([]string{"render"})
	require.NoError(t, err)
	material := keysService.NewKeyMaterial(
		keysDomain.NewKeyRing(),
		keysDomain.NewProviderRegistry(providers),
		keysService.NewKeyDerivationService(),
		"1",
	)
	keys := keysUseCase.NewRootKeyUseCase(
		nil,
		repository.NewMemoryRootKeyRepository(),
		keysService.NewRootKeyCodec(nil, nil),
		material,
		clock,
		logger,
		keysUseCase.Config{Overlap: 24 * time.Hour},
	)
	require.NoError(t, keys.Bootstrap(context.Background()))

	ledger := auditService.NewLedger(0, clock, nil)
	manager := NewRotationManager(keys, ledger, ledger, clock, logger, Config{}).(*rotationManager)

	return &rotationFixture{clock: clock, ledger: ledger, keys: keys, manager: manager}
}

func (f *rotationFixture) currentEpoch(t *testing.T) uint64 {
	t.Helper()
	status, err := f.keys.Status(context.Background())
	require.NoError(t, err)
	return status.CurrentEpoch
}

func (f *rotationFixture) events(eventType auditDomain.EventType) []auditDomain.Event {
	var out []auditDomain.Event
	for _, e := range f.ledger.Recent(0) {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (f *rotationFixture) start(t *testing.T) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- f.manager.Run(ctx)
	}()
	return cancel, done
}

func TestRotationManager_Rotate(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_Manual", func(t *testing.T) {
		f := newRotationFixture(t)

		result, err := f.manager.Rotate(ctx, &rotationDomain.RotateInput{
			Trigger: rotationDomain.TriggerManual,
			Reason:  "operator drill",
		})
		require.NoError(t, err)

		assert.Equal(t, uint64(1), result.PreviousKeyEpoch)
		assert.Equal(t, uint64(2), result.NewKeyEpoch)
		assert.Equal(t, rotationDomain.TriggerManual, result.Trigger)
		assert.Equal(t, f.clock.Now().Add(24*time.Hour), result.OverlapEndsAt)
		assert.Len(t, result.NewFingerprint, 16)
		assert.Equal(t, uint64(2), f.currentEpoch(t))

		events := f.events(auditDomain.EventRotate)
		require.Len(t, events, 1)
		assert.Equal(t, auditDomain.OutcomeSuccess, events[0].Outcome)
		assert.Contains(t, events[0].Detail, "trigger=manual")
		assert.Contains(t, events[0].Detail, "reason=operator drill")
		assert.Contains(t, events[0].Detail, result.RotationID.String())
	})

	t.Run("Error_InvalidTrigger", func(t *testing.T) {
		f := newRotationFixture(t)

		_, err := f.manager.Rotate(ctx, &rotationDomain.RotateInput{Trigger: "whenever"})
		assert.ErrorIs(t, err, rotationDomain.ErrInvalidTrigger)
		assert.Equal(t, uint64(1), f.currentEpoch(t))
	})

	t.Run("Error_OverlapStillOpen", func(t *testing.T) {
		f := newRotationFixture(t)
		_, err := f.manager.Rotate(ctx, &rotationDomain.RotateInput{Trigger: rotationDomain.TriggerManual})
		require.NoError(t, err)

		f.clock.Advance(time.Hour)
		_, err = f.manager.Rotate(ctx, &rotationDomain.RotateInput{Trigger: rotationDomain.TriggerIncident})
		assert.ErrorIs(t, err, keysDomain.ErrRotationInProgress)

		events := f.events(auditDomain.EventRotate)
		require.Len(t, events, 2)
		assert.Equal(t, auditDomain.OutcomeRejected, events[0].Outcome)
	})

	t.Run("Success_AfterOverlapPurgesPrevious", func(t *testing.T) {
		f := newRotationFixture(t)
		_, err := f.manager.Rotate(ctx, &rotationDomain.RotateInput{Trigger: rotationDomain.TriggerManual})
		require.NoError(t, err)

		f.clock.Advance(24*time.Hour + time.Second)
		result, err := f.manager.Rotate(ctx, &rotationDomain.RotateInput{Trigger: rotationDomain.TriggerManual})
		require.NoError(t, err)
		assert.Equal(t, uint64(3), result.NewKeyEpoch)

		status, err := f.manager.Status(ctx)
		require.NoError(t, err)
		require.Len(t, status.Retired, 1)
		assert.Equal(t, uint64(1), status.Retired[0].Epoch)
	})
}

type blockingKeys struct {
	RootKeys
	entered chan struct{}
	release chan struct{}
}

func (b *blockingKeys) Rotate(ctx context.Context) (*keysDomain.Rotation, error) {
	close(b.entered)
	<-b.release
	return &keysDomain.Rotation{PreviousEpoch: 1, NewEpoch: 2}, nil
}

func (b *blockingKeys) Status(ctx context.Context) (keysDomain.Status, error) {
	return keysDomain.Status{CurrentEpoch: 1}, nil
}

func TestRotationManager_SingleInFlight(t *testing.T) {
	ctx := context.Background()
	keys := &blockingKeys{entered: make(chan struct{}), release: make(chan struct{})}
	manager := NewRotationManager(
		keys, nil, nil,
		clockwork.NewFakeClock(),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config{},
	)

	done := make(chan error, 1)
	go func() {
		_, err := manager.Rotate(ctx, &rotationDomain.RotateInput{Trigger: rotationDomain.TriggerManual})
		done <- err
	}()
	<-keys.entered

	status, err := manager.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.InProgress)

	_, err = manager.Rotate(ctx, &rotationDomain.RotateInput{Trigger: rotationDomain.TriggerIncident})
	assert.ErrorIs(t, err, keysDomain.ErrRotationInProgress)

	close(keys.release)
	require.NoError(t, <-done)

	status, err = manager.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.InProgress)
}

func TestRotationManager_Run(t *testing.T) {
	t.Run("ScheduledRotationThenBackgroundPurge", func(t *testing.T) {
		f := newRotationFixture(t)
		f.clock.Advance(30 * 24 * time.Hour)

		cancel, done := f.start(t)

		assert.Eventually(t, func() bool {
			return len(f.events(auditDomain.EventRotate)) == 1
		}, time.Second, time.Millisecond)
		assert.Equal(t, uint64(2), f.currentEpoch(t))
		assert.Contains(t, f.events(auditDomain.EventRotate)[0].Detail, "trigger=scheduled")

		// ticker plus the purge timer
		ctx, stop := context.WithTimeout(context.Background(), time.Second)
		defer stop()
		require.NoError(t, f.clock.BlockUntilContext(ctx, 2))
		f.clock.Advance(24 * time.Hour)

		assert.Eventually(t, func() bool {
			return len(f.events(auditDomain.EventPurge)) == 1
		}, time.Second, time.Millisecond)
		purge := f.events(auditDomain.EventPurge)[0]
		assert.Equal(t, auditDomain.OutcomeSuccess, purge.Outcome)
		assert.Equal(t, "epoch=1", purge.Detail)

		cancel()
		require.NoError(t, <-done)
	})

	t.Run("IncidentRotationOnAnomalyTrips", func(t *testing.T) {
		f := newRotationFixture(t)
		f.clock.Advance(time.Minute)
		for range 11 {
			f.ledger.Record(auditDomain.Event{
				Type:     auditDomain.EventGate,
				Outcome:  auditDomain.OutcomeAnomalyTrip,
				Provider: "render",
			})
		}

		cancel, done := f.start(t)

		assert.Eventually(t, func() bool {
			return len(f.events(auditDomain.EventRotate)) == 1
		}, time.Second, time.Millisecond)
		assert.Contains(t, f.events(auditDomain.EventRotate)[0].Detail, "trigger=incident")

		cancel()
		require.NoError(t, <-done)
	})

	t.Run("StopsOnCancel", func(t *testing.T) {
		f := newRotationFixture(t)
		cancel, done := f.start(t)

		ctx, stop := context.WithTimeout(context.Background(), time.Second)
		defer stop()
		require.NoError(t, f.clock.BlockUntilContext(ctx, 1))

		cancel()
		require.NoError(t, <-done)
		assert.Empty(t, f.events(auditDomain.EventRotate))
	})
}

func TestRotationManager_DueRotation(t *testing.T) {
	f := newRotationFixture(t)
	status, err := f.keys.Status(context.Background())
	require.NoError(t, err)

	recordTrips := func(n int) {
		for range n {
			f.ledger.Record(auditDomain.Event{Type: auditDomain.EventGate, Outcome: auditDomain.OutcomeAnomalyTrip})
		}
	}

	t.Run("nothing due", func(t *testing.T) {
		assert.Nil(t, f.manager.dueRotation(status, f.clock.Now()))
	})

	t.Run("threshold is exclusive", func(t *testing.T) {
		recordTrips(10)
		assert.Nil(t, f.manager.dueRotation(status, f.clock.Now()))

		recordTrips(1)
		input := f.manager.dueRotation(status, f.clock.Now())
		require.NotNil(t, input)
		assert.Equal(t, rotationDomain.TriggerIncident, input.Trigger)
		assert.True(t, strings.HasPrefix(input.Reason, "anomaly trips 11"))
	})

	t.Run("trips before the current key are ignored", func(t *testing.T) {
		later := status
		later.CurrentCreatedAt = f.clock.Now().Add(time.Second)
		assert.Nil(t, f.manager.dueRotation(later, f.clock.Now().Add(time.Minute)))
	})

	t.Run("age wins", func(t *testing.T) {
		input := f.manager.dueRotation(status, status.CurrentCreatedAt.Add(30*24*time.Hour))
		require.NotNil(t, input)
		assert.Equal(t, rotationDomain.TriggerScheduled, input.Trigger)
	})
}

func TestRotationManager_Status(t *testing.T) {
	ctx := context.Background()
	f := newRotationFixture(t)

	status, err := f.manager.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), status.CurrentEpoch)
	assert.False(t, status.RotationDue)
	assert.Equal(t, 30*24*time.Hour, status.MaxKeyAge)

	f.clock.Advance(31 * 24 * time.Hour)
	status, err = f.manager.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.RotationDue)
	assert.Equal(t, 31*24*time.Hour, status.KeyAge)
}
