package server

import (
	"sort"
	"sync"
	"time"

	"github.com/maxepunk/aln-orchestrator/internal/game"
)

// Registry tracks station identities and their session binding. A station id
// maps to exactly one device record for its whole life: re-identification
// updates the record in place and rebinds it to the current session, so a
// station returning after end→create never reports an archived session.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]*game.Device
}

func NewRegistry() *Registry {
	return &Registry{devices: make(map[string]*game.Device)}
}

// Identify registers a station or refreshes a known one. Returns a copy of
// the record and whether it was newly created.
func (r *Registry) Identify(stationID string, typ game.DeviceType, version, sessionID string) (game.Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[stationID]
	if !ok {
		d = &game.Device{
			StationID: stationID,
			Type:      typ,
			SessionID: sessionID,
		}
		r.devices[stationID] = d
	}
	d.Version = version
	d.Connected = true
	d.LastSeen = time.Now().UTC()
	if typ != "" {
		d.Type = typ
	}
	if sessionID != "" {
		d.SessionID = sessionID
	}
	return *d, !ok
}

// Disconnect marks a station disconnected. The record survives for
// re-identification.
func (r *Registry) Disconnect(stationID string) (game.Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[stationID]
	if !ok {
		return game.Device{}, false
	}
	d.Connected = false
	d.LastSeen = time.Now().UTC()
	return *d, true
}

// Touch refreshes a station's liveness timestamp.
func (r *Registry) Touch(stationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.devices[stationID]; ok {
		d.LastSeen = time.Now().UTC()
	}
}

// Get returns a copy of the device record for a station id.
func (r *Registry) Get(stationID string) (game.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[stationID]
	if !ok {
		return game.Device{}, false
	}
	return *d, true
}

// List returns copies of all known devices, sorted by station id.
func (r *Registry) List() []game.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]game.Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StationID < out[j].StationID })
	return out
}
