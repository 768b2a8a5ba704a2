// Package store holds the canonical in-memory device table. It is the
// single source of truth: the push channel, the poll channel and the
// command dispatcher all submit merge proposals here and hold no device
// state of their own.
package store

import (
	"sync"
	"time"

	"climate_hub/internal/models"
)

// Callback receives a copy of the device record after an accepted merge.
type Callback func(dev models.Device)

// DeviceStore is safe for concurrent writers and readers. Merges replace
// the whole record under the write lock, so a reader never observes a
// partially applied update.
type DeviceStore struct {
	mu      sync.RWMutex
	devices map[string]models.Device

	subMu   sync.Mutex
	subs    map[int]Callback
	nextSub int
}

// New returns an empty store.
func New() *DeviceStore {
	return &DeviceStore{
		devices: make(map[string]models.Device),
		subs:    make(map[int]Callback),
	}
}

// Merge applies a partial update if its timestamp is not older than the
// device's record clock (last-writer-wins by timestamp, not by arrival
// order). A first write for an unknown device creates the record. Stale
// or duplicate data is a silent no-op returning false; callers may log
// it but must not treat it as fatal.
func (s *DeviceStore) Merge(deviceID string, upd models.PartialUpdate, source models.Source, ts time.Time) bool {
	if deviceID == "" {
		return false
	}
	ts = ts.UTC()

	s.mu.Lock()
	dev, ok := s.devices[deviceID]
	if ok && ts.Before(dev.LastUpdated) {
		s.mu.Unlock()
		return false
	}
	if !ok {
		dev = models.Device{ID: deviceID}
	}

	applyUpdate(&dev, upd)
	dev.ConnectionSource = source
	dev.LastUpdated = ts
	s.devices[deviceID] = dev
	s.mu.Unlock()

	s.notify(dev)
	return true
}

// Read returns a copy of the device record.
func (s *DeviceStore) Read(deviceID string) (models.Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dev, ok := s.devices[deviceID]
	if !ok {
		return models.Device{}, false
	}
	return dev.Clone(), true
}

// All returns copies of every known device record.
func (s *DeviceStore) All() []models.Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Device, 0, len(s.devices))
	for _, dev := range s.devices {
		out = append(out, dev.Clone())
	}
	return out
}

// Subscribe registers a callback invoked after every accepted merge.
// The returned function cancels the subscription. Callbacks run on the
// writer's goroutine and must not block.
func (s *DeviceStore) Subscribe(fn Callback) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *DeviceStore) notify(dev models.Device) {
	s.subMu.Lock()
	cbs := make([]Callback, 0, len(s.subs))
	for _, fn := range s.subs {
		cbs = append(cbs, fn)
	}
	s.subMu.Unlock()

	for _, fn := range cbs {
		fn(dev.Clone())
	}
}

// applyUpdate copies every set field of the proposal onto the record.
func applyUpdate(dev *models.Device, upd models.PartialUpdate) {
	if upd.Name != nil {
		dev.Name = *upd.Name
	}
	if upd.Class != nil {
		dev.Class = *upd.Class
	}
	if upd.Power != nil {
		dev.Power = *upd.Power
	}
	if upd.CurrentTemperature != nil {
		dev.CurrentTemperature = *upd.CurrentTemperature
	}
	if upd.TargetTemperature != nil {
		dev.TargetTemperature = *upd.TargetTemperature
	}
	if upd.Mode != nil {
		dev.Mode = *upd.Mode
	}
	if upd.Preset != nil {
		dev.Preset = *upd.Preset
	}
	if upd.EcoTemp != nil {
		dev.EcoTemp = *upd.EcoTemp
	}
	if upd.ComfortTemp != nil {
		dev.ComfortTemp = *upd.ComfortTemp
	}
	if upd.IceTemp != nil {
		dev.IceTemp = *upd.IceTemp
	}
	if upd.Schedule != nil {
		dev.Schedule = upd.Schedule.Clone()
	}
	if upd.FirmwareVersion != nil {
		dev.FirmwareVersion = *upd.FirmwareVersion
	}
	if upd.FirmwareUpdateAvailable != nil {
		dev.FirmwareUpdateAvailable = *upd.FirmwareUpdateAvailable
	}
	if upd.EnergyTotalKWh != nil {
		dev.EnergyTotalKWh = *upd.EnergyTotalKWh
	}
	if upd.PowerInstantW != nil {
		dev.PowerInstantW = *upd.PowerInstantW
	}
}
