// Package poller drives the fetch/classify/notify cycle on a fixed period
// and owns the last-known stock status. The one piece of business logic
// lives here: a notification fires exactly when the status moves into
// available from anything that was not available.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/NekoSenseii/casio-watch-notifier/internal/fetch"
	"github.com/NekoSenseii/casio-watch-notifier/internal/stock"
)

// ErrCheckInProgress is returned when a cycle is requested while the
// previous one has not finished. The request is dropped, not queued.
var ErrCheckInProgress = errors.New("stock check already in progress")

// Fetcher is the page retrieval collaborator.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (fetch.Result, error)
}

// Notifier is the outbound alert collaborator. Failures are logged by the
// poller and never retried.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Poller runs the check cycle and owns the state cell.
type Poller struct {
	fetcher    Fetcher
	classifier stock.Classifier
	notifier   Notifier

	productURL string
	interval   time.Duration

	cell *stateCell
	busy atomic.Bool
	now  func() time.Time
}

func New(fetcher Fetcher, classifier stock.Classifier, notifier Notifier, productURL string, interval time.Duration) *Poller {
	now := time.Now
	return &Poller{
		fetcher:    fetcher,
		classifier: classifier,
		notifier:   notifier,
		productURL: productURL,
		interval:   interval,
		cell:       newStateCell(now()),
		now:        now,
	}
}

// Snapshot returns a consistent copy of the current state for read-only
// collaborators.
func (p *Poller) Snapshot() State {
	return p.cell.Snapshot()
}

// ProductURL returns the watched page.
func (p *Poller) ProductURL() string {
	return p.productURL
}

// RunOnce executes one fetch/classify/notify cycle. At most one cycle runs
// at a time; a call that arrives mid-cycle fails fast with
// ErrCheckInProgress. Fetch failures leave the stored state untouched.
func (p *Poller) RunOnce(ctx context.Context) (stock.Status, error) {
	if !p.busy.CompareAndSwap(false, true) {
		return stock.StatusUnknown, ErrCheckInProgress
	}
	defer p.busy.Store(false)

	result, err := p.fetcher.Fetch(ctx, p.productURL)
	if err != nil {
		return stock.StatusUnknown, fmt.Errorf("fetching %s: %w", p.productURL, err)
	}

	status := result.Early
	if !status.Decisive() {
		status = p.classifier.Classify(result.Body)
	}
	if !status.Decisive() {
		// Indeterminate never persists; treat as no classification.
		return status, nil
	}

	previous := p.cell.recordCheck(status, p.now())

	if status == stock.StatusAvailable && previous != stock.StatusAvailable {
		p.sendRestockAlert(ctx)
	}
	return status, nil
}

func (p *Poller) sendRestockAlert(ctx context.Context) {
	text := fmt.Sprintf(
		"✅ <b>Stock Alert!</b>\n\nThe watch is <b>IN STOCK</b>!\n\n🔗 <a href=\"%s\">Open product page</a>",
		p.productURL)

	if err := p.notifier.Notify(ctx, text); err != nil {
		// Not retried and not fatal; the transition is already recorded so
		// the next available poll does not re-alert.
		log.Printf("Error sending restock notification: %v", err)
	} else {
		log.Println("Restock notification sent.")
	}
}

// Run performs an immediate first check, then one per interval until ctx is
// cancelled. Errors are logged and the loop waits for the next tick; a tick
// that fires while a cycle is still in flight is skipped.
func (p *Poller) Run(ctx context.Context) {
	log.Printf("Polling %s every %s", p.productURL, p.interval)

	p.runAndLog(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Poller stopping:", ctx.Err())
			return
		case <-ticker.C:
			p.runAndLog(ctx)
		}
	}
}

func (p *Poller) runAndLog(ctx context.Context) {
	status, err := p.RunOnce(ctx)
	switch {
	case errors.Is(err, ErrCheckInProgress):
		log.Println("Tick skipped: previous check still running.")
	case err != nil:
		log.Printf("Check failed: %v", err)
	default:
		log.Printf("Check complete: %s", status)
	}
}
