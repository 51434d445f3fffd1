// Package okprobe implements the secondary liveness probe: it pings
// another monitor's /ok endpoint and fails the probe contract (triggering
// the Scheduler's generic monitor_exception alert) if that endpoint does
// not answer with 2xx inside the same 10-second budget every other
// outbound call in this system uses.
package okprobe

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const fetchTimeout = 10 * time.Second

// Probe pings a configured health URL once per cycle.
type Probe struct {
	healthURL  string
	httpClient *http.Client
}

// New builds an OK probe targeting healthURL.
func New(healthURL string) *Probe {
	return &Probe{healthURL: healthURL, httpClient: &http.Client{Timeout: fetchTimeout}}
}

// Run returns an error whenever the health URL fails to answer 2xx; the
// Scheduler converts that into a monitor_exception alert the same way it
// would for any other probe.
func (p *Probe) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.healthURL, nil)
	if err != nil {
		return fmt.Errorf("ok probe: building request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ok probe: %s is unreachable: %w", p.healthURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ok probe: %s returned status %d", p.healthURL, resp.StatusCode)
	}
	return nil
}
