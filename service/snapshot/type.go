package snapshot

import (
	"context"

	"github.com/khaledhikmat/cctv-bridge/model"
)

// IService fetches and transcodes still snapshots from one camera. Each
// camera gets its own instance owning its own connection pool; instances are
// never shared across cameras.
type IService interface {
	// Fetch issues one GET against the camera's snapshot URL and returns the
	// raw image bytes. Bodies that are not a plausible JPEG/PNG are rejected.
	Fetch(ctx context.Context) ([]byte, error)
	// Transcode downscales the image to the remote's display canvas and
	// re-encodes it as base64 JPEG under the given size budget.
	Transcode(data []byte, maxKB int) (string, error)
	// Probe reports whether the camera currently serves a valid snapshot.
	// Connections are released afterward.
	Probe(ctx context.Context) bool
	Camera() model.Camera
	// Close releases the connection pool.
	Close()
}

// Factory builds a snapshot client for a camera. Entities take a factory so
// tests can substitute fakes.
type Factory func(camera model.Camera) IService
