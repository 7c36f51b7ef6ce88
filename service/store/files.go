package store

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/khaledhikmat/cctv-bridge/model"
	"github.com/khaledhikmat/cctv-bridge/service/config"
)

// configFile is the on-disk shape of the camera configuration.
type configFile struct {
	Cameras     []model.Camera `json:"cameras"`
	EntityID    string         `json:"entity_id"`
	EntityName  string         `json:"entity_name"`
	RefreshRate int            `json:"refresh_rate"`
}

type filesStoreService struct {
	CfgSvc config.IService
}

func NewFilesStore(cfgsvc config.IService) IService {
	return &filesStoreService{
		CfgSvc: cfgsvc,
	}
}

func (svc *filesStoreService) RetrieveCameras() ([]model.Camera, error) {
	cameras := []model.Camera{}

	input := svc.CfgSvc.GetConfigFile()
	data, err := os.ReadFile(input)
	if err != nil {
		// A missing config file means the integration has not been set up
		// yet; that is not an error.
		if errors.Is(err, fs.ErrNotExist) {
			return cameras, nil
		}
		return cameras, err
	}

	var file configFile
	err = json.Unmarshal(data, &file)
	if err != nil {
		return cameras, err
	}

	for _, camera := range file.Cameras {
		if camera.RefreshRate <= 0 {
			camera.RefreshRate = svc.CfgSvc.GetDefaultRefreshRate()
		}
		cameras = append(cameras, camera)
	}

	return cameras, nil
}

func (svc *filesStoreService) RetrieveCameraByName(name string) (model.Camera, bool, error) {
	cameras, err := svc.RetrieveCameras()
	if err != nil {
		return model.Camera{}, false, err
	}

	for _, camera := range cameras {
		if camera.Name == name {
			return camera, true, nil
		}
	}

	return model.Camera{}, false, nil
}

func (svc *filesStoreService) SaveCameras(cameras []model.Camera) error {
	file := configFile{
		Cameras:     cameras,
		EntityID:    "security_cameras",
		EntityName:  "Security Cameras",
		RefreshRate: svc.CfgSvc.GetDefaultRefreshRate(),
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}

	output := svc.CfgSvc.GetConfigFile()
	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return err
	}

	// Write the JSON data to the file (with truncation)
	return os.WriteFile(output, data, 0644)
}
