package entity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/khaledhikmat/cctv-bridge/model"
	"github.com/khaledhikmat/cctv-bridge/service/config"
	"github.com/khaledhikmat/cctv-bridge/service/hub"
	"github.com/khaledhikmat/cctv-bridge/service/snapshot"
)

// ValidateCameras checks a camera list independently of whatever validation
// the setup flow already did. Pure function, no state.
func ValidateCameras(cameras []model.Camera) error {
	if len(cameras) == 0 {
		return errors.New("at least one camera must be configured")
	}

	seen := map[string]bool{}
	for i, camera := range cameras {
		if strings.TrimSpace(camera.Name) == "" {
			return fmt.Errorf("camera %d: missing required field 'name'", i+1)
		}
		if seen[camera.Name] {
			return fmt.Errorf("camera %d: duplicate name %q", i+1, camera.Name)
		}
		seen[camera.Name] = true

		if !strings.HasPrefix(camera.SnapshotURL, "http://") && !strings.HasPrefix(camera.SnapshotURL, "https://") {
			return fmt.Errorf("camera %d (%s): invalid URL format", i+1, camera.Name)
		}
	}

	return nil
}

// NewMediaPlayer validates the camera list and constructs the media player
// with one snapshot client per camera.
func NewMediaPlayer(canxCtx context.Context, cfgsvc config.IService, hubsvc hub.IService, cameras []model.Camera, factory snapshot.Factory) (*MediaPlayer, error) {
	if err := ValidateCameras(cameras); err != nil {
		return nil, err
	}

	return newMediaPlayer(canxCtx, cfgsvc, hubsvc, cameras, factory), nil
}

// NewSelector constructs the selector view over the same camera set.
func NewSelector(hubsvc hub.IService, cameras []model.Camera, player SourceSwitcher) (*Selector, error) {
	if err := ValidateCameras(cameras); err != nil {
		return nil, err
	}

	return newSelector(hubsvc, cameras, player), nil
}
