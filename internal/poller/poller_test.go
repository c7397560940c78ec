package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NekoSenseii/casio-watch-notifier/internal/fetch"
	"github.com/NekoSenseii/casio-watch-notifier/internal/stock"
)

type fakeFetcher struct {
	calls   atomic.Int64
	err     error
	body    []byte
	blockOn chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (fetch.Result, error) {
	f.calls.Add(1)
	if f.blockOn != nil {
		<-f.blockOn
	}
	if f.err != nil {
		return fetch.Result{}, f.err
	}
	return fetch.Result{Body: f.body, Size: len(f.body), Early: stock.StatusIndeterminate}, nil
}

// scriptedClassifier returns a fixed sequence of statuses, one per call.
type scriptedClassifier struct {
	sequence []stock.Status
	index    int
}

func (s *scriptedClassifier) Classify(markup []byte) stock.Status {
	if s.index >= len(s.sequence) {
		return stock.StatusSoldOut
	}
	status := s.sequence[s.index]
	s.index++
	return status
}

type countingNotifier struct {
	sent atomic.Int64
	err  error
}

func (n *countingNotifier) Notify(ctx context.Context, text string) error {
	n.sent.Add(1)
	return n.err
}

func newTestPoller(classifier stock.Classifier, fetcher Fetcher, notifier Notifier) *Poller {
	return New(fetcher, classifier, notifier, "https://shop.example/watch", time.Minute)
}

func TestRunOnceTransitions(t *testing.T) {
	t.Run("exactly one notification per transition into available", func(t *testing.T) {
		classifier := &scriptedClassifier{sequence: []stock.Status{
			stock.StatusSoldOut,
			stock.StatusAvailable,
			stock.StatusAvailable,
			stock.StatusSoldOut,
			stock.StatusAvailable,
		}}
		notifier := &countingNotifier{}
		p := newTestPoller(classifier, &fakeFetcher{body: []byte("page")}, notifier)

		for i := 0; i < 5; i++ {
			_, err := p.RunOnce(context.Background())
			require.NoError(t, err)
		}

		assert.Equal(t, int64(2), notifier.sent.Load())
		assert.Equal(t, stock.StatusAvailable, p.Snapshot().Status)
		assert.Equal(t, uint64(5), p.Snapshot().Checks)
	})

	t.Run("initial unknown to available notifies", func(t *testing.T) {
		classifier := &scriptedClassifier{sequence: []stock.Status{stock.StatusAvailable}}
		notifier := &countingNotifier{}
		p := newTestPoller(classifier, &fakeFetcher{body: []byte("page")}, notifier)

		status, err := p.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, stock.StatusAvailable, status)
		assert.Equal(t, int64(1), notifier.sent.Load())
	})

	t.Run("sold out stores silently", func(t *testing.T) {
		classifier := &scriptedClassifier{sequence: []stock.Status{stock.StatusSoldOut}}
		notifier := &countingNotifier{}
		p := newTestPoller(classifier, &fakeFetcher{body: []byte("page")}, notifier)

		_, err := p.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, stock.StatusSoldOut, p.Snapshot().Status)
		assert.Zero(t, notifier.sent.Load())
	})

	t.Run("fetch error leaves state untouched and sends nothing", func(t *testing.T) {
		notifier := &countingNotifier{}
		fetcher := &fakeFetcher{err: fetch.ErrTimeout}
		p := newTestPoller(&scriptedClassifier{}, fetcher, notifier)

		before := p.Snapshot()
		_, err := p.RunOnce(context.Background())
		assert.ErrorIs(t, err, fetch.ErrTimeout)

		after := p.Snapshot()
		assert.Equal(t, before.Status, after.Status)
		assert.Equal(t, before.LastCheck, after.LastCheck)
		assert.Equal(t, before.Checks, after.Checks)
		assert.Zero(t, notifier.sent.Load())
	})

	t.Run("indeterminate never persists", func(t *testing.T) {
		classifier := &scriptedClassifier{sequence: []stock.Status{stock.StatusIndeterminate}}
		p := newTestPoller(classifier, &fakeFetcher{body: []byte("page")}, &countingNotifier{})

		status, err := p.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, stock.StatusIndeterminate, status)
		assert.Equal(t, stock.StatusUnknown, p.Snapshot().Status)
		assert.Zero(t, p.Snapshot().Checks)
	})

	t.Run("notify failure still records the transition", func(t *testing.T) {
		classifier := &scriptedClassifier{sequence: []stock.Status{
			stock.StatusAvailable,
			stock.StatusAvailable,
		}}
		notifier := &countingNotifier{err: errors.New("telegram down")}
		p := newTestPoller(classifier, &fakeFetcher{body: []byte("page")}, notifier)

		_, err := p.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, stock.StatusAvailable, p.Snapshot().Status)

		// Second available poll must not re-notify even though the first
		// send failed; sends are one-shot per transition.
		_, err = p.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(1), notifier.sent.Load())
	})

	t.Run("early fetch classification bypasses the full-body classifier", func(t *testing.T) {
		earlyFetcher := &earlyResultFetcher{status: stock.StatusSoldOut}
		classifier := &scriptedClassifier{sequence: []stock.Status{stock.StatusAvailable}}
		p := newTestPoller(classifier, earlyFetcher, &countingNotifier{})

		status, err := p.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, stock.StatusSoldOut, status)
		assert.Zero(t, classifier.index, "full-body classifier should not run")
	})
}

type earlyResultFetcher struct {
	status stock.Status
}

func (f *earlyResultFetcher) Fetch(ctx context.Context, url string) (fetch.Result, error) {
	return fetch.Result{Body: []byte("partial"), Size: 7, Early: f.status}, nil
}

func TestRunOnceReentrancy(t *testing.T) {
	release := make(chan struct{})
	fetcher := &fakeFetcher{body: []byte("page"), blockOn: release}
	classifier := &scriptedClassifier{sequence: []stock.Status{stock.StatusSoldOut}}
	p := newTestPoller(classifier, fetcher, &countingNotifier{})

	firstDone := make(chan error, 1)
	go func() {
		_, err := p.RunOnce(context.Background())
		firstDone <- err
	}()

	// Wait for the first cycle to be inside its fetch.
	require.Eventually(t, func() bool {
		return fetcher.calls.Load() == 1
	}, time.Second, 5*time.Millisecond)

	_, err := p.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrCheckInProgress)
	assert.Equal(t, int64(1), fetcher.calls.Load(), "second tick must not start a concurrent fetch")

	close(release)
	require.NoError(t, <-firstDone)

	// Guard releases once the cycle finishes.
	_, err = p.RunOnce(context.Background())
	require.NoError(t, err)
}

func TestStateSnapshot(t *testing.T) {
	t.Run("last change tracks transitions only", func(t *testing.T) {
		classifier := &scriptedClassifier{sequence: []stock.Status{
			stock.StatusSoldOut,
			stock.StatusSoldOut,
		}}
		p := newTestPoller(classifier, &fakeFetcher{body: []byte("page")}, &countingNotifier{})

		_, err := p.RunOnce(context.Background())
		require.NoError(t, err)
		firstChange := p.Snapshot().LastChange
		assert.False(t, firstChange.IsZero())

		_, err = p.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, firstChange, p.Snapshot().LastChange)
		assert.True(t, p.Snapshot().LastCheck.After(firstChange) || p.Snapshot().LastCheck.Equal(firstChange))
	})

	t.Run("recordCheck returns the prior status", func(t *testing.T) {
		cell := newStateCell(time.Now())
		assert.Equal(t, stock.StatusUnknown, cell.recordCheck(stock.StatusSoldOut, time.Now()))
		assert.Equal(t, stock.StatusSoldOut, cell.recordCheck(stock.StatusAvailable, time.Now()))
		assert.Equal(t, stock.StatusAvailable, cell.recordCheck(stock.StatusAvailable, time.Now()))
	})

	t.Run("uptime derives from start time", func(t *testing.T) {
		p := newTestPoller(&scriptedClassifier{}, &fakeFetcher{}, &countingNotifier{})
		state := p.Snapshot()
		assert.Equal(t, time.Minute, state.Uptime(state.StartedAt.Add(time.Minute)))
	})
}
