package service

import (
	"fmt"
	"sort"
	"time"

	"climate_hub/internal/availability"
	"climate_hub/internal/climate"
	"climate_hub/internal/models"
	"climate_hub/internal/push"
	"climate_hub/internal/store"
)

// MonitoringService reads the store and derives display state against
// the current clock. Derivation happens on every read, never on write,
// so targets flip exactly at schedule boundaries.
type MonitoringService struct {
	store   *store.DeviceStore
	tracker *availability.Tracker
	pushCh  *push.Channel

	now func() time.Time // injected clock for tests
}

func NewMonitoringService(st *store.DeviceStore, tracker *availability.Tracker, pushCh *push.Channel) *MonitoringService {
	return &MonitoringService{
		store:   st,
		tracker: tracker,
		pushCh:  pushCh,
		now:     time.Now,
	}
}

// ListDevices returns every known device, ordered by ID for stable output.
func (s *MonitoringService) ListDevices() []models.Device {
	devs := s.store.All()
	sort.Slice(devs, func(i, j int) bool { return devs[i].ID < devs[j].ID })
	return devs
}

// GetDevice returns the raw canonical record.
func (s *MonitoringService) GetDevice(id string) (models.Device, error) {
	dev, ok := s.store.Read(id)
	if !ok {
		return models.Device{}, fmt.Errorf("%w: %s", models.ErrDeviceNotFound, id)
	}
	return dev, nil
}

// DisplayState composes schedule resolution, heating derivation and
// availability for one device.
func (s *MonitoringService) DisplayState(id string) (models.DisplayState, error) {
	dev, ok := s.store.Read(id)
	if !ok {
		return models.DisplayState{}, fmt.Errorf("%w: %s", models.ErrDeviceNotFound, id)
	}
	now := s.now()
	return climate.DisplayState(dev, now, s.tracker.Available(dev, now)), nil
}

// Subscribe forwards to the store's subscription list.
func (s *MonitoringService) Subscribe(fn func(models.Device)) func() {
	return s.store.Subscribe(fn)
}

// ConnectionState reports the push channel's state for health output.
func (s *MonitoringService) ConnectionState() push.State {
	if s.pushCh == nil {
		return push.StateDisconnected
	}
	return s.pushCh.State()
}
