package store

import "github.com/khaledhikmat/cctv-bridge/model"

type IService interface {
	RetrieveCameras() ([]model.Camera, error)
	RetrieveCameraByName(name string) (model.Camera, bool, error)
	SaveCameras(cameras []model.Camera) error
}
