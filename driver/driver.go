package driver

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/khaledhikmat/cctv-bridge/entity"
	"github.com/khaledhikmat/cctv-bridge/model"
	"github.com/khaledhikmat/cctv-bridge/service/config"
	"github.com/khaledhikmat/cctv-bridge/service/hub"
	"github.com/khaledhikmat/cctv-bridge/service/lgr"
	"github.com/khaledhikmat/cctv-bridge/service/setup"
	"github.com/khaledhikmat/cctv-bridge/service/snapshot"
	"github.com/khaledhikmat/cctv-bridge/service/store"
)

// teardownSettle gives the hub time to process entity removal before the
// replacement entities are registered.
const teardownSettle = 500 * time.Millisecond

// Driver is the application context owning the config store, hub surface and
// both entities. There is no global state; everything hangs off this struct.
type Driver struct {
	canxCtx       context.Context
	cfgSvc        config.IService
	storeSvc      store.IService
	hubSvc        hub.IService
	clientFactory snapshot.Factory

	mu          sync.Mutex
	mediaPlayer *entity.MediaPlayer
	selector    *entity.Selector
}

func New(canxCtx context.Context, cfgsvc config.IService, storesvc store.IService, hubsvc hub.IService, factory snapshot.Factory) *Driver {
	return &Driver{
		canxCtx:       canxCtx,
		cfgSvc:        cfgsvc,
		storeSvc:      storesvc,
		hubSvc:        hubsvc,
		clientFactory: factory,
	}
}

// Init builds both entities from the stored camera list. With forceRecreate
// the existing entities are fully torn down first; there is no incremental
// diffing on reconfiguration.
func (d *Driver) Init(ctx context.Context, forceRecreate bool) error {
	lgr.Logger.Info(
		"initializing camera integration",
		slog.Bool("forceRecreate", forceRecreate),
	)

	cameras, err := d.storeSvc.RetrieveCameras()
	if err != nil {
		return model.GenError("driver",
			err,
			map[string]interface{}{"forceRecreate": forceRecreate},
			"error retrieving cameras")
	}

	if len(cameras) == 0 {
		lgr.Logger.Warn("no cameras configured, waiting for setup")
		return nil
	}

	if err := entity.ValidateCameras(cameras); err != nil {
		return model.GenError("driver",
			err,
			map[string]interface{}{},
			"error validating camera configuration")
	}

	if forceRecreate {
		d.teardown()
	}

	d.mu.Lock()

	if d.mediaPlayer != nil {
		d.mu.Unlock()
		lgr.Logger.Info("integration already initialized")
		return nil
	}

	mediaPlayer, err := entity.NewMediaPlayer(d.canxCtx, d.cfgSvc, d.hubSvc, cameras, d.clientFactory)
	if err != nil {
		d.mu.Unlock()
		return model.GenError("driver", err, map[string]interface{}{}, "error creating media player")
	}

	selector, err := entity.NewSelector(d.hubSvc, cameras, mediaPlayer)
	if err != nil {
		d.mu.Unlock()
		mediaPlayer.Disconnect()
		return model.GenError("driver", err, map[string]interface{}{}, "error creating selector")
	}

	mediaPlayer.SetOnSourceChanged(selector.UpdateFromMediaPlayer)

	d.hubSvc.AddEntity(mediaPlayer.ID(), mediaPlayer.Attributes())
	d.hubSvc.AddEntity(selector.ID(), selector.Attributes())

	d.mediaPlayer = mediaPlayer
	d.selector = selector

	d.mu.Unlock()

	lgr.Logger.Info(
		"camera entities created",
		slog.Int("cameras", len(cameras)),
		slog.Any("names", mediaPlayer.SourceList()),
	)

	// Probing uses throwaway clients and touches no driver state, so the lock
	// is not held here and command dispatch stays responsive.
	d.probeAll(ctx, cameras)

	return nil
}

// teardown removes the current entities completely: stop streaming, release
// connections, deregister from the hub. The lock covers only the handle swap;
// accessors never wait behind the settle sleep.
func (d *Driver) teardown() {
	d.mu.Lock()
	mediaPlayer := d.mediaPlayer
	selector := d.selector
	d.mediaPlayer = nil
	d.selector = nil
	d.mu.Unlock()

	if mediaPlayer == nil {
		return
	}

	lgr.Logger.Info("removing entities for reconfiguration")

	mediaPlayer.Disconnect()

	d.hubSvc.RemoveEntity(mediaPlayer.ID())
	d.hubSvc.RemoveEntity(selector.ID())

	// Give the hub time to process the removals before replacements register.
	time.Sleep(teardownSettle)
}

// probeAll checks connectivity of every camera concurrently. Probes are
// independent; individual failures never abort the batch.
func (d *Driver) probeAll(ctx context.Context, cameras []model.Camera) {
	lgr.Logger.Info("testing connections to all cameras")

	results := make(chan bool, len(cameras))

	var wg sync.WaitGroup
	for _, camera := range cameras {
		wg.Add(1)
		go func(camera model.Camera) {
			defer wg.Done()

			client := d.clientFactory(camera)
			defer client.Close()

			results <- client.Probe(ctx)
		}(camera)
	}

	wg.Wait()
	close(results)

	online := 0
	for ok := range results {
		if ok {
			online++
		}
	}

	lgr.Logger.Info(
		"camera connectivity check complete",
		slog.Int("online", online),
		slog.Int("total", len(cameras)),
	)
}

func (d *Driver) MediaPlayer() *entity.MediaPlayer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mediaPlayer
}

func (d *Driver) Selector() *entity.Selector {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selector
}

// HandleMediaPlayerCommand routes a hub command to the media player.
func (d *Driver) HandleMediaPlayerCommand(ctx context.Context, cmd model.MediaPlayerCommand) model.StatusCode {
	mediaPlayer := d.MediaPlayer()
	if mediaPlayer == nil {
		lgr.Logger.Error("media player command before initialization")
		return model.StatusServerError
	}

	lgr.WithTrace(ctx, lgr.Logger).Debug(
		"dispatching media player command",
		slog.String("command", cmd.Type.String()),
	)
	return mediaPlayer.HandleCommand(ctx, cmd)
}

// HandleSelectorCommand routes a hub command to the selector.
func (d *Driver) HandleSelectorCommand(ctx context.Context, cmd model.SelectorCommand) model.StatusCode {
	selector := d.Selector()
	if selector == nil {
		lgr.Logger.Error("selector command before initialization")
		return model.StatusServerError
	}

	lgr.WithTrace(ctx, lgr.Logger).Debug(
		"dispatching selector command",
		slog.String("command", cmd.Type.String()),
	)
	return selector.HandleCommand(ctx, cmd)
}

// OnConnect handles the remote connecting.
func (d *Driver) OnConnect() {
	lgr.Logger.Info("remote connected")
	d.hubSvc.SetDeviceState(model.DeviceConnected)
}

// OnDisconnect stops streaming; there is nobody to stream to.
func (d *Driver) OnDisconnect() {
	lgr.Logger.Info("remote disconnected")
	d.hubSvc.SetDeviceState(model.DeviceDisconnected)

	if mediaPlayer := d.MediaPlayer(); mediaPlayer != nil && mediaPlayer.IsStreaming() {
		lgr.Logger.Info("stopping camera snapshot streaming")
		mediaPlayer.StopStreaming()
	}
}

// OnSubscribeEntities marks entities configured and pushes initial state.
func (d *Driver) OnSubscribeEntities(entityIDs []string) {
	lgr.Logger.Info(
		"entities subscribed",
		slog.Any("entityIDs", entityIDs),
	)

	mediaPlayer := d.MediaPlayer()
	selector := d.Selector()

	for _, id := range entityIDs {
		d.hubSvc.Subscribe(id)

		if mediaPlayer != nil && id == mediaPlayer.ID() {
			mediaPlayer.PushInitialState()
		}
		if selector != nil && id == selector.ID() {
			selector.PushInitialState()
		}
	}
}

// OnSetupComplete reinitializes the integration with the freshly saved
// configuration.
func (d *Driver) OnSetupComplete(ctx context.Context) error {
	lgr.Logger.Info("setup complete, reinitializing integration with new config")

	if err := d.Init(ctx, true); err != nil {
		lgr.Logger.Error(
			"failed to reinitialize integration after setup",
			lgr.Err(err),
		)
		return err
	}

	return nil
}

// HandleSetup runs one step of the onboarding flow and, on completion,
// reinitializes the integration with the new configuration.
func (d *Driver) HandleSetup(ctx context.Context, setupSvc setup.IService, msg setup.Message) setup.Action {
	action := setupSvc.HandleSetup(ctx, msg)

	if _, completed := action.(setup.Complete); completed {
		if err := d.OnSetupComplete(ctx); err != nil {
			return setup.Error{Code: setup.ErrorOther}
		}
	}

	return action
}

// CameraStatus is one camera's row in the status report.
type CameraStatus struct {
	Name        string `json:"name"`
	SnapshotURL string `json:"snapshotUrl"`
	RefreshRate int    `json:"refreshRate"`
	Selected    bool   `json:"selected"`
}

// Status is the operational snapshot served by the status server.
type Status struct {
	DeviceState model.DeviceState `json:"deviceState"`
	Initialized bool              `json:"initialized"`
	State       model.EntityState `json:"state,omitempty"`
	Source      string            `json:"source,omitempty"`
	Streaming   bool              `json:"streaming"`
	Cameras     []CameraStatus    `json:"cameras"`
}

func (d *Driver) Status() Status {
	status := Status{
		DeviceState: d.hubSvc.GetDeviceState(),
		Cameras:     []CameraStatus{},
	}

	cameras, err := d.storeSvc.RetrieveCameras()
	if err != nil {
		lgr.Logger.Error(
			"failed to retrieve cameras for status",
			lgr.Err(err),
		)
	}

	mediaPlayer := d.MediaPlayer()
	if mediaPlayer != nil {
		status.Initialized = true
		status.State = mediaPlayer.State()
		status.Source = mediaPlayer.Source()
		status.Streaming = mediaPlayer.IsStreaming()
	}

	for _, camera := range cameras {
		status.Cameras = append(status.Cameras, CameraStatus{
			Name:        camera.Name,
			SnapshotURL: camera.SnapshotURL,
			RefreshRate: camera.RefreshRate,
			Selected:    camera.Name == status.Source,
		})
	}

	return status
}

// CameraByName resolves a single camera's status row for the status server.
func (d *Driver) CameraByName(name string) (CameraStatus, bool) {
	camera, found, err := d.storeSvc.RetrieveCameraByName(name)
	if err != nil {
		lgr.Logger.Error(
			"failed to retrieve camera",
			slog.String("camera", name),
			lgr.Err(err),
		)
		return CameraStatus{}, false
	}
	if !found {
		return CameraStatus{}, false
	}

	selected := false
	if mediaPlayer := d.MediaPlayer(); mediaPlayer != nil {
		selected = mediaPlayer.Source() == camera.Name
	}

	return CameraStatus{
		Name:        camera.Name,
		SnapshotURL: camera.SnapshotURL,
		RefreshRate: camera.RefreshRate,
		Selected:    selected,
	}, true
}
