package middleware

import (
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"time"
)

type faults struct {
	latency     time.Duration
	failureRate float64 // 0.0 to 1.0
	random      func() float64
}

type FaultOption func(*faults)

func WithLatency(d time.Duration) FaultOption {
	return func(f *faults) { f.latency = d }
}

func WithFailureRate(rate float64) FaultOption {
	return func(f *faults) { f.failureRate = rate }
}

// WithRandom replaces the source deciding which requests fail.
func WithRandom(fn func() float64) FaultOption {
	return func(f *faults) { f.random = fn }
}

// FaultInjection delays every request and fails a share of them with 503 so
// clients can exercise their retry paths against the stand-in bank.
func FaultInjection(opts ...FaultOption) func(http.Handler) http.Handler {
	f := &faults{random: rand.Float64}
	for _, o := range opts {
		o(f)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if f.latency > 0 {
				select {
				case <-time.After(f.latency):
				case <-r.Context().Done():
					return
				}
			}

			if f.failureRate > 0 && f.random() < f.failureRate {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{
					"error": "simulated upstream failure",
					"code":  "unavailable",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
