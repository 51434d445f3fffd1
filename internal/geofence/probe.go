// Package geofence implements the geofence-checking probe: fetch one
// status document per monitored id, classify fetch/parse failures, test
// point-in-polygon containment, throttle per-id request starts, and batch
// results into up to two alerts per cycle.
package geofence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/skurt/geofence-monitor/internal/alertbus"
	"github.com/skurt/geofence-monitor/internal/clock"
	"github.com/skurt/geofence-monitor/internal/config"
	"github.com/skurt/geofence-monitor/internal/logging"
)

// Error kinds recorded per car.
const (
	FetchTimedOut        = "FETCH_TIMED_OUT"
	InvalidFetchResponse = "INVALID_FETCH_RESPONSE"
	NoCarCoords          = "NO_CAR_COORDS"
)

// fetchTimeout bounds every outbound HTTP GET.
const fetchTimeout = 10 * time.Second

// CarCoord names a single out-of-bounds entity and its position; field
// names match what geofence_monitor_geofence_alert.tmpl expects.
type CarCoord struct {
	ID  int
	Lat float64
	Lng float64
}

// CarError names a single per-entity failure; field names match what
// geofence_monitor_errors_alert.tmpl expects.
type CarError struct {
	ID   int
	Kind string
}

// Probe checks every monitored car against its geofences once per cycle.
type Probe struct {
	ids              []int
	endpointTemplate string
	minPeriod        float64 // minimum seconds between request starts, 1 / max_query_qps
	googleMapsAPIKey string

	clk        clock.Clock
	httpClient *http.Client
	timeout    time.Duration
	alertBus   *alertbus.AlertBus
	logger     logging.Logger
}

// New flattens cfg.IDRanges once, cached for the probe's lifetime, and
// builds a ready-to-run Probe.
func New(cfg config.GeofenceProbeConfig, clk clock.Clock, bus *alertbus.AlertBus, logger logging.Logger) (*Probe, error) {
	ids, err := FlattenRanges(cfg.IDRanges)
	if err != nil {
		return nil, fmt.Errorf("geofence probe: %w", err)
	}
	if cfg.MaxQueryQPS <= 0 {
		return nil, fmt.Errorf("geofence probe: max_query_qps must be > 0")
	}
	return &Probe{
		ids:              ids,
		endpointTemplate: cfg.StatusEndpoint,
		minPeriod:        1.0 / cfg.MaxQueryQPS,
		googleMapsAPIKey: cfg.GoogleMapsAPIKey,
		clk:              clk,
		httpClient:       &http.Client{Timeout: fetchTimeout},
		timeout:          fetchTimeout,
		alertBus:         bus,
		logger:           logger,
	}, nil
}

// Run executes one cycle: fetch, classify, contain-test, throttle, per id
// in ascending order; then dispatch zero, one, or two alerts depending on
// what was accumulated.
func (p *Probe) Run() error {
	var outOfBounds []CarCoord
	var fetchErrors []CarError

	for _, id := range p.ids {
		tReq := p.clk.Now()

		coord, kind, inBounds := p.checkOne(id)
		switch {
		case kind != "":
			fetchErrors = append(fetchErrors, CarError{ID: id, Kind: kind})
		case !inBounds:
			outOfBounds = append(outOfBounds, *coord)
		}

		elapsed := p.clk.Now() - tReq
		if elapsed < p.minPeriod {
			p.clk.Sleep(p.minPeriod - elapsed)
		}
	}

	if len(outOfBounds) > 0 {
		p.alertBus.Alert("Cars outside of geofences", "geofence_monitor_geofence", map[string]any{
			"car_coords":          outOfBounds,
			"google_maps_api_key": p.googleMapsAPIKey,
		})
	}
	if len(fetchErrors) > 0 {
		p.alertBus.Alert("Geofence monitor errors", "geofence_monitor_errors", map[string]any{
			"car_errors": fetchErrors,
		})
	}
	return nil
}

// checkOne fetches and classifies a single id. kind is non-empty iff the id
// must be recorded as an error; otherwise coord and inBounds describe the
// containment result.
func (p *Probe) checkOne(id int) (coord *CarCoord, kind string, inBounds bool) {
	p.logger.Debug("fetching car status", "id", id)

	endpoint := fmt.Sprintf(p.endpointTemplate, strconv.Itoa(id))

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, InvalidFetchResponse, false
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			p.logger.Error("fetch timed out", "id", id, "error", err)
			return nil, FetchTimedOut, false
		}
		p.logger.Error("fetch failed", "id", id, "error", err)
		return nil, InvalidFetchResponse, false
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, InvalidFetchResponse, false
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.logger.Error("non-2xx status for car", "id", id, "status", resp.StatusCode, "body", string(body))
		return nil, InvalidFetchResponse, false
	}

	point, polygons, err := firstPointAndPolygons(body)
	if err != nil || point == nil {
		p.logger.Error("no car coordinates in status response", "id", id)
		return nil, NoCarCoords, false
	}

	if anyPolygonContains(polygons, *point) {
		return nil, "", true
	}

	p.logger.Info("car found outside of its geofences", "id", id)
	return &CarCoord{ID: id, Lat: point.Lat, Lng: point.Lng}, "", false
}

func isTimeout(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}
