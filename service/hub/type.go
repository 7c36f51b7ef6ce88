package hub

import "github.com/khaledhikmat/cctv-bridge/model"

// IService is the surface of the remote-hub SDK this integration consumes.
// The real SDK speaks a wire protocol to the remote; that transport is an
// external collaborator, so the integration only depends on this interface.
type IService interface {
	// AddEntity registers an entity as available with its initial attributes.
	AddEntity(id string, attrs map[string]interface{})
	// RemoveEntity removes an entity from both available and configured sets.
	RemoveEntity(id string)
	// Contains reports whether the entity has been configured (subscribed)
	// on the remote.
	Contains(id string) bool
	// Subscribe marks an entity configured and flushes any deferred updates.
	Subscribe(id string)
	Unsubscribe(id string)
	// UpdateAttributes publishes attribute changes for a subscribed entity.
	// Updates for unsubscribed entities are queued and flushed on subscribe,
	// so callers never need their own "is it subscribed yet" guards.
	UpdateAttributes(id string, attrs map[string]interface{})
	// Attributes returns a copy of the entity's last published attributes.
	Attributes(id string) map[string]interface{}
	SetDeviceState(state model.DeviceState)
	GetDeviceState() model.DeviceState
}
