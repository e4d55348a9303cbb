package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"wallet-signal-lab/internal/domain"
	"wallet-signal-lab/internal/observability"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status    string                   `json:"status"`
	Uptime    string                   `json:"uptime"`
	Started   time.Time                `json:"started"`
	Processor Status                   `json:"processor"`
	Recent    []domain.StateTransition `json:"recent_transitions,omitempty"`
}

// NewHTTPHandler serves /health, /metrics, /status and /wallets for p.
// Every named health check must pass for /health to return 200.
func NewHTTPHandler(p *Processor, started time.Time, checks map[string]HealthCheck) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		failed := make(map[string]string)
		for name, check := range checks {
			if err := check(ctx); err != nil {
				failed[name] = err.Error()
			}
		}
		if len(failed) > 0 {
			writeJSON(w, http.StatusServiceUnavailable, failed)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", observability.Handler())

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		transitions := p.Transitions()
		if len(transitions) > 10 {
			transitions = transitions[len(transitions)-10:]
		}
		writeJSON(w, http.StatusOK, StatusResponse{
			Status:    "running",
			Uptime:    time.Since(started).Round(time.Second).String(),
			Started:   started,
			Processor: p.Status(),
			Recent:    transitions,
		})
	})

	mux.HandleFunc("/wallets", func(w http.ResponseWriter, r *http.Request) {
		statuses := p.SilenceStatuses()
		if wallet := r.URL.Query().Get("wallet"); wallet != "" {
			st, ok := statuses[wallet]
			if !ok {
				http.Error(w, "wallet not tracked", http.StatusNotFound)
				return
			}
			writeJSON(w, http.StatusOK, st)
			return
		}
		writeJSON(w, http.StatusOK, statuses)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
