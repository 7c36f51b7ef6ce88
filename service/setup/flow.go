package setup

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/khaledhikmat/cctv-bridge/entity"
	"github.com/khaledhikmat/cctv-bridge/model"
	"github.com/khaledhikmat/cctv-bridge/service/config"
	"github.com/khaledhikmat/cctv-bridge/service/lgr"
	"github.com/khaledhikmat/cctv-bridge/service/snapshot"
	"github.com/khaledhikmat/cctv-bridge/service/store"
)

const (
	minCameraCount = 1
	maxCameraCount = 50
)

type flowService struct {
	cfgSvc        config.IService
	storeSvc      store.IService
	clientFactory snapshot.Factory

	mu          sync.Mutex
	sessionID   string
	cameraCount int
	cameras     []model.Camera
	probeErrors map[string]string
}

func NewFlow(cfgsvc config.IService, storesvc store.IService, factory snapshot.Factory) IService {
	return &flowService{
		cfgSvc:        cfgsvc,
		storeSvc:      storesvc,
		clientFactory: factory,
	}
}

func (svc *flowService) HandleSetup(ctx context.Context, msg Message) Action {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	switch msg := msg.(type) {
	case DriverSetupRequest:
		return svc.handleDriverSetupRequest(msg)
	case UserDataResponse:
		return svc.handleUserDataResponse(ctx, msg)
	case UserConfirmationResponse:
		return svc.handleUserConfirmationResponse(msg)
	case AbortSetup:
		lgr.Logger.Info(
			"setup aborted by user or system",
			slog.String("code", string(msg.Code)),
		)
		return Error{Code: msg.Code}
	}

	lgr.Logger.Error(
		"unknown setup message type",
		slog.String("type", fmt.Sprintf("%T", msg)),
	)
	return Error{Code: ErrorOther}
}

func (svc *flowService) handleDriverSetupRequest(msg DriverSetupRequest) Action {
	svc.sessionID = uuid.NewString()

	lgr.Logger.Info(
		"starting camera setup",
		slog.String("sessionID", svc.sessionID),
		slog.Bool("reconfigure", msg.Reconfigure),
	)

	countValue, ok := msg.SetupData["camera_count"]
	if !ok {
		lgr.Logger.Error("camera_count field missing from setup data")
		return Error{Code: ErrorOther}
	}

	count, err := strconv.Atoi(countValue)
	if err != nil {
		lgr.Logger.Error(
			"invalid camera_count value",
			slog.String("value", countValue),
		)
		return Error{Code: ErrorOther}
	}

	if count < minCameraCount || count > maxCameraCount {
		lgr.Logger.Error(
			"camera count out of range",
			slog.Int("count", count),
		)
		return Error{Code: ErrorOther}
	}

	svc.cameraCount = count
	return svc.buildCameraInputForm()
}

// buildCameraInputForm builds the dynamic name/URL form for the requested
// camera count.
func (svc *flowService) buildCameraInputForm() RequestUserInput {
	settings := make([]Setting, 0, svc.cameraCount*2)

	for i := 0; i < svc.cameraCount; i++ {
		settings = append(settings,
			Setting{
				ID:    fmt.Sprintf("camera_%d_name", i),
				Label: fmt.Sprintf("Camera %d Name", i+1),
				Value: fmt.Sprintf("Camera %d", i+1),
			},
			Setting{
				ID:    fmt.Sprintf("camera_%d_url", i),
				Label: fmt.Sprintf("Camera %d Snapshot URL", i+1),
				Value: "",
			},
		)
	}

	return RequestUserInput{
		Title:    "Configure Cameras",
		Settings: settings,
	}
}

func (svc *flowService) handleUserDataResponse(ctx context.Context, msg UserDataResponse) Action {
	svc.cameras = nil
	svc.probeErrors = map[string]string{}

	for i := 0; i < svc.cameraCount; i++ {
		name := strings.TrimSpace(msg.InputValues[fmt.Sprintf("camera_%d_name", i)])
		url := strings.TrimSpace(msg.InputValues[fmt.Sprintf("camera_%d_url", i)])

		if name == "" || url == "" {
			lgr.Logger.Error(
				"camera missing name or URL",
				slog.Int("camera", i+1),
			)
			return Error{Code: ErrorOther}
		}

		svc.cameras = append(svc.cameras, model.Camera{
			Name:        name,
			SnapshotURL: url,
			RefreshRate: svc.cfgSvc.GetDefaultRefreshRate(),
		})
	}

	// The entities re-validate on construction regardless; validating here
	// keeps bad input from ever reaching the config file.
	if err := entity.ValidateCameras(svc.cameras); err != nil {
		lgr.Logger.Error(
			"invalid camera configuration",
			lgr.Err(err),
		)
		return Error{Code: ErrorOther}
	}

	for _, camera := range svc.cameras {
		client := svc.clientFactory(camera)
		if !client.Probe(ctx) {
			svc.probeErrors[camera.Name] = "connection test failed"
		}
		client.Close()
	}

	return svc.buildSetupSummary()
}

// buildSetupSummary lists per-camera connectivity. Cameras with connection
// issues are still configured; the user just gets told.
func (svc *flowService) buildSetupSummary() RequestUserConfirmation {
	lines := make([]string, 0, len(svc.cameras)+2)

	for _, camera := range svc.cameras {
		if reason, failed := svc.probeErrors[camera.Name]; failed {
			lines = append(lines, fmt.Sprintf("%s: %s", camera.Name, reason))
		} else {
			lines = append(lines, fmt.Sprintf("%s: connected", camera.Name))
		}
	}

	lines = append(lines,
		"",
		"Configuration will be saved and camera entities created.",
		"Cameras with connection issues will still be configured.",
	)

	return RequestUserConfirmation{
		Title:  "Confirm Camera Setup",
		Header: "Setup Complete",
		Footer: strings.Join(lines, "\n"),
	}
}

func (svc *flowService) handleUserConfirmationResponse(msg UserConfirmationResponse) Action {
	if !msg.Confirm {
		return Error{Code: ErrorUserAbort}
	}

	if err := svc.storeSvc.SaveCameras(svc.cameras); err != nil {
		lgr.Logger.Error(
			"failed to save configuration",
			lgr.Err(model.GenError("setup",
				err,
				map[string]interface{}{"sessionID": svc.sessionID},
				"error saving camera configuration")),
		)
		return Error{Code: ErrorOther}
	}

	lgr.Logger.Info(
		"configuration saved",
		slog.String("sessionID", svc.sessionID),
		slog.Int("cameras", len(svc.cameras)),
	)
	return Complete{}
}
