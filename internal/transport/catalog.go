package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"climate_hub/internal/models"
)

// Radiator command bounds used when the catalog has no per-device entry.
const (
	DefaultMinTemp  = 7.0
	DefaultMaxTemp  = 40.0
	DefaultTempStep = 0.5
)

const (
	catalogCacheTTL   = 30 * time.Minute
	catalogCacheSweep = 10 * time.Minute
)

// DefaultCapabilities returns the stock radiator bounds.
func DefaultCapabilities() models.Capabilities {
	return models.Capabilities{
		MinTemp: DefaultMinTemp,
		MaxTemp: DefaultMaxTemp,
		Step:    DefaultTempStep,
		Modes:   []models.Mode{models.ModeHeat, models.ModeAuto, models.ModeOff, models.ModeManual},
		Presets: []models.Preset{models.PresetEco, models.PresetComfort, models.PresetNone},
	}
}

// CachedCatalog fetches capability bounds over REST and caches them with
// a TTL; capability data changes rarely and the dispatcher reads it on
// every command.
type CachedCatalog struct {
	baseURL string
	client  *http.Client
	cache   *gocache.Cache
}

// NewCachedCatalog builds a catalog client for the given base URL.
func NewCachedCatalog(baseURL string, timeout time.Duration) *CachedCatalog {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &CachedCatalog{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		cache:   gocache.New(catalogCacheTTL, catalogCacheSweep),
	}
}

type capabilitiesJSON struct {
	MinTemp float64  `json:"min_temp_c"`
	MaxTemp float64  `json:"max_temp_c"`
	Step    float64  `json:"step_c"`
	Modes   []string `json:"modes"`
	Presets []string `json:"presets"`
}

// Capabilities returns the bounds for a device, from cache when fresh.
// A catalog outage is ErrUpstreamUnavailable: the dispatcher cannot
// validate without it.
func (c *CachedCatalog) Capabilities(ctx context.Context, deviceID string) (models.Capabilities, error) {
	if v, ok := c.cache.Get(deviceID); ok {
		return v.(models.Capabilities), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v1/catalog/"+deviceID+"/capabilities", nil)
	if err != nil {
		return models.Capabilities{}, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return models.Capabilities{}, fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		caps := DefaultCapabilities()
		c.cache.SetDefault(deviceID, caps)
		return caps, nil
	}
	if resp.StatusCode >= 400 {
		return models.Capabilities{}, fmt.Errorf("%w: catalog status %d", models.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var dto capabilitiesJSON
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		return models.Capabilities{}, fmt.Errorf("decode capabilities: %w", err)
	}

	caps := capsFromJSON(dto)
	c.cache.SetDefault(deviceID, caps)
	return caps, nil
}

func capsFromJSON(dto capabilitiesJSON) models.Capabilities {
	caps := DefaultCapabilities()
	if dto.MinTemp != 0 {
		caps.MinTemp = dto.MinTemp
	}
	if dto.MaxTemp != 0 {
		caps.MaxTemp = dto.MaxTemp
	}
	if dto.Step != 0 {
		caps.Step = dto.Step
	}
	if len(dto.Modes) > 0 {
		caps.Modes = caps.Modes[:0]
		for _, m := range dto.Modes {
			caps.Modes = append(caps.Modes, models.Mode(m))
		}
	}
	if len(dto.Presets) > 0 {
		caps.Presets = caps.Presets[:0]
		for _, p := range dto.Presets {
			caps.Presets = append(caps.Presets, models.Preset(p))
		}
	}
	return caps
}
