package fetch

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// DoerConfig controls the shared HTTP client used by all provider adapters.
type DoerConfig struct {
	Timeout          time.Duration
	RequestsPerSec   float64
	Burst            int
	BreakerName      string
	FailureThreshold uint32
	BreakerCooldown  time.Duration
}

// DefaultDoerConfig paces provider calls at one request every two seconds,
// replacing the fixed sleeps the data sources would otherwise require.
func DefaultDoerConfig(name string) DoerConfig {
	return DoerConfig{
		Timeout:          15 * time.Second,
		RequestsPerSec:   0.5,
		Burst:            1,
		BreakerName:      name,
		FailureThreshold: 5,
		BreakerCooldown:  60 * time.Second,
	}
}

// Doer wraps an HTTP client with a rate limiter and a circuit breaker.
// Provider adapters share one Doer per upstream host.
type Doer struct {
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

func NewDoer(cfg DoerConfig) *Doer {
	settings := gobreaker.Settings{
		Name:    cfg.BreakerName,
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).
				Str("to", to.String()).Msg("Circuit breaker state change")
		},
	}

	return &Doer{
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.Burst),
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Do executes the request once rate-limit admission is granted. Server-side
// errors count against the breaker; 4xx responses do not trip it.
func (d *Doer) Do(req *http.Request) (*http.Response, error) {
	if err := d.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}

	resp, err := d.breaker.Execute(func() (interface{}, error) {
		resp, err := d.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			resp.Body.Close()
			return nil, fmt.Errorf("upstream status %d", resp.StatusCode)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return resp.(*http.Response), nil
}
