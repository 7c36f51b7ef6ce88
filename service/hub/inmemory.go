package hub

import (
	"log/slog"
	"sync"

	"github.com/khaledhikmat/cctv-bridge/model"
	"github.com/khaledhikmat/cctv-bridge/service/lgr"
)

type inMemoryService struct {
	mu          sync.RWMutex
	available   map[string]bool
	subscribed  map[string]bool
	attrs       map[string]map[string]interface{}
	pending     map[string]map[string]interface{}
	deviceState model.DeviceState
}

func NewInMemory() IService {
	return &inMemoryService{
		available:   map[string]bool{},
		subscribed:  map[string]bool{},
		attrs:       map[string]map[string]interface{}{},
		pending:     map[string]map[string]interface{}{},
		deviceState: model.DeviceDisconnected,
	}
}

func (svc *inMemoryService) AddEntity(id string, attrs map[string]interface{}) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	svc.available[id] = true
	svc.attrs[id] = map[string]interface{}{}
	for key, value := range attrs {
		svc.attrs[id][key] = value
	}
}

func (svc *inMemoryService) RemoveEntity(id string) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	delete(svc.available, id)
	delete(svc.subscribed, id)
	delete(svc.attrs, id)
	delete(svc.pending, id)
}

func (svc *inMemoryService) Contains(id string) bool {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	return svc.subscribed[id]
}

func (svc *inMemoryService) Subscribe(id string) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if !svc.available[id] {
		lgr.Logger.Warn(
			"subscribe for unknown entity",
			slog.String("entityID", id),
		)
		return
	}

	svc.subscribed[id] = true

	// Flush updates that were published before the remote subscribed.
	if deferred, ok := svc.pending[id]; ok {
		for key, value := range deferred {
			svc.attrs[id][key] = value
		}
		delete(svc.pending, id)
	}
}

func (svc *inMemoryService) Unsubscribe(id string) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	delete(svc.subscribed, id)
}

func (svc *inMemoryService) UpdateAttributes(id string, attrs map[string]interface{}) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if !svc.available[id] {
		lgr.Logger.Warn(
			"attribute update for unknown entity",
			slog.String("entityID", id),
		)
		return
	}

	if !svc.subscribed[id] {
		if svc.pending[id] == nil {
			svc.pending[id] = map[string]interface{}{}
		}
		for key, value := range attrs {
			svc.pending[id][key] = value
		}
		return
	}

	for key, value := range attrs {
		svc.attrs[id][key] = value
	}
}

func (svc *inMemoryService) Attributes(id string) map[string]interface{} {
	svc.mu.RLock()
	defer svc.mu.RUnlock()

	out := map[string]interface{}{}
	for key, value := range svc.attrs[id] {
		out[key] = value
	}
	return out
}

func (svc *inMemoryService) SetDeviceState(state model.DeviceState) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.deviceState = state
}

func (svc *inMemoryService) GetDeviceState() model.DeviceState {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	return svc.deviceState
}
