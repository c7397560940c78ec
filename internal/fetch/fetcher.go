// Package fetch issues the bounded product-page GET. One fetch per poll
// cycle, one Result per fetch; the Result is classified and dropped, never
// retained across cycles.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/NekoSenseii/casio-watch-notifier/internal/stock"
)

const (
	DefaultTimeout  = 10 * time.Second
	DefaultMaxBytes = 2 << 20 // 2 MiB

	readChunkSize = 32 << 10

	// Shop front ends reject default Go client signatures, so fetch as a
	// desktop browser.
	browserUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:137.0) Gecko/20100101 Firefox/137.0"
)

// Result is the outcome of one successful fetch.
type Result struct {
	Body []byte
	Size int

	// Early is the prefix classification that stopped the read short, when
	// an early classifier is configured and fired. StatusIndeterminate
	// means the full body was read and the caller classifies it.
	Early stock.Status
}

// Fetcher performs bounded GETs against the product page.
type Fetcher struct {
	client   *http.Client
	timeout  time.Duration
	maxBytes int64
	early    stock.PrefixClassifier
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the wall-clock ceiling for the whole request.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithMaxBytes sets the response-size ceiling.
func WithMaxBytes(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// WithEarlyClassifier lets the read stop as soon as the classifier can give
// a decisive answer from the body prefix. Purely an optimization; the
// decisive answer must match what the full body would classify as.
func WithEarlyClassifier(pc stock.PrefixClassifier) Option {
	return func(f *Fetcher) { f.early = pc }
}

// WithHTTPClient swaps the underlying client (tests).
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:   &http.Client{},
		timeout:  DefaultTimeout,
		maxBytes: DefaultMaxBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch GETs url and returns its body, bounded in both time and size.
// Errors are one of ErrTimeout, ErrTooLarge, *StatusError, or a wrapped
// transport error; all of them mean "no markup this cycle".
func (f *Fetcher) Fetch(ctx context.Context, url string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return Result{}, f.classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, &StatusError{Code: resp.StatusCode}
	}

	body, early, err := f.readBounded(resp.Body)
	if err != nil {
		return Result{}, err
	}
	return Result{Body: body, Size: len(body), Early: early}, nil
}

// readBounded reads the body incrementally so the size ceiling is enforced
// while data arrives, not after an unbounded buffer already exists.
func (f *Fetcher) readBounded(r io.Reader) ([]byte, stock.Status, error) {
	body := make([]byte, 0, readChunkSize)
	chunk := make([]byte, readChunkSize)

	for {
		n, err := r.Read(chunk)
		if n > 0 {
			body = append(body, chunk[:n]...)
			if int64(len(body)) > f.maxBytes {
				return nil, stock.StatusIndeterminate,
					fmt.Errorf("%w (limit %d bytes)", ErrTooLarge, f.maxBytes)
			}
			if f.early != nil {
				if s := f.early.ClassifyPrefix(body); s.Decisive() {
					return body, s, nil
				}
			}
		}
		if err == io.EOF {
			return body, stock.StatusIndeterminate, nil
		}
		if err != nil {
			return nil, stock.StatusIndeterminate, f.classifyTransportError(err)
		}
	}
}

func (f *Fetcher) classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimeout, f.timeout)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w after %s", ErrTimeout, f.timeout)
	}
	return fmt.Errorf("network error: %w", err)
}
