// Package health exposes the poller state over HTTP and keeps the hosting
// platform from idling the process.
package health

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/NekoSenseii/casio-watch-notifier/internal/poller"
)

const DefaultCooldown = 10 * time.Second

// StateSource is the read-only view of the poller the endpoint needs.
type StateSource interface {
	Snapshot() poller.State
	ProductURL() string
}

// statusResponse is the /health success body.
type statusResponse struct {
	Product    string `json:"product"`
	Status     string `json:"status"`
	LastCheck  string `json:"last_check,omitempty"`
	LastChange string `json:"last_change,omitempty"`
	Checks     uint64 `json:"checks"`
	Uptime     string `json:"uptime"`
}

// Server serves the secret-gated status endpoint and a plain root page for
// keep-alive pings.
type Server struct {
	source  StateSource
	secret  string
	limiter *rate.Limiter
	now     func() time.Time
}

// NewServer builds the handler set. cooldown is the minimum spacing between
// accepted /health calls; requests inside it get 429.
func NewServer(source StateSource, secret string, cooldown time.Duration) *Server {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Server{
		source:  source,
		secret:  secret,
		limiter: rate.NewLimiter(rate.Every(cooldown), 1),
		now:     time.Now,
	}
}

// Handler returns the route mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("casio-watch-notifier is running\n"))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	// Auth before the limiter so an unauthenticated prober cannot burn the
	// cooldown window for the real caller.
	if r.URL.Query().Get("key") != s.secret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	if !s.limiter.Allow() {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many requests"})
		return
	}

	state := s.source.Snapshot()
	resp := statusResponse{
		Product: s.source.ProductURL(),
		Status:  state.Status.String(),
		Checks:  state.Checks,
		Uptime:  state.Uptime(s.now()).Round(time.Second).String(),
	}
	if !state.LastCheck.IsZero() {
		resp.LastCheck = state.LastCheck.UTC().Format(time.RFC3339)
	}
	if !state.LastChange.IsZero() {
		resp.LastChange = state.LastChange.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Error writing health response: %v", err)
	}
}

// SelfPing GETs baseURL every interval so free-tier hosts do not put the
// process to sleep between polls. Failures are logged and ignored.
func SelfPing(ctx context.Context, baseURL string, interval time.Duration) {
	if baseURL == "" {
		return
	}
	if interval <= 0 {
		interval = 14 * time.Minute
	}
	client := &http.Client{Timeout: 10 * time.Second}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("Self-ping enabled: %s every %s", baseURL, interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
			if err != nil {
				log.Printf("Self-ping request error: %v", err)
				continue
			}
			resp, err := client.Do(req)
			if err != nil {
				log.Printf("Self-ping failed: %v", err)
				continue
			}
			resp.Body.Close()
		}
	}
}
