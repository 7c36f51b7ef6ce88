package driver

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khaledhikmat/cctv-bridge/entity"
	"github.com/khaledhikmat/cctv-bridge/model"
	"github.com/khaledhikmat/cctv-bridge/service/hub"
	"github.com/khaledhikmat/cctv-bridge/service/setup"
	"github.com/khaledhikmat/cctv-bridge/service/snapshot"
	"github.com/khaledhikmat/cctv-bridge/service/store"
)

type testConfig struct {
	configFile string
}

func (c testConfig) GetConfigFolder() string          { return filepath.Dir(c.configFile) }
func (c testConfig) GetConfigFile() string            { return c.configFile }
func (c testConfig) GetDefaultRefreshRate() int       { return 0 }
func (c testConfig) GetMaxConsecutiveFailures() int   { return 3 }
func (c testConfig) GetSettleDelay() time.Duration    { return time.Millisecond }
func (c testConfig) GetErrorBackoff() time.Duration   { return time.Millisecond }
func (c testConfig) GetConnectTimeout() time.Duration { return time.Second }
func (c testConfig) GetRequestTimeout() time.Duration { return time.Second }
func (c testConfig) GetMinImageBytes() int            { return 1000 }
func (c testConfig) GetMaxImageKB() int               { return 80 }
func (c testConfig) GetStatusServerAddress() string   { return ":0" }
func (c testConfig) GetMaxShutdownTime() int          { return 1 }

type fakeClient struct {
	camera model.Camera

	// probeGate, when set, blocks Probe until the channel is closed.
	probeGate chan struct{}

	mu     sync.Mutex
	online bool
}

func (f *fakeClient) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.online {
		return nil, snapshot.ErrNotAvailable
	}
	return []byte(f.camera.Name), nil
}

func (f *fakeClient) Transcode(data []byte, maxKB int) (string, error) {
	return "IMG:" + string(data), nil
}

func (f *fakeClient) Probe(ctx context.Context) bool {
	if f.probeGate != nil {
		<-f.probeGate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online
}

func (f *fakeClient) Camera() model.Camera { return f.camera }
func (f *fakeClient) Close()               {}

type driverFixture struct {
	drv      *Driver
	cfg      testConfig
	storeSvc store.IService
	hubSvc   hub.IService
	setupSvc setup.IService
}

func newDriverFixture(t *testing.T) *driverFixture {
	t.Helper()

	cfg := testConfig{configFile: filepath.Join(t.TempDir(), "config.json")}
	storeSvc := store.NewFilesStore(cfg)
	hubSvc := hub.NewInMemory()

	factory := func(camera model.Camera) snapshot.IService {
		return &fakeClient{camera: camera, online: true}
	}

	drv := New(context.Background(), cfg, storeSvc, hubSvc, factory)

	t.Cleanup(func() {
		if mediaPlayer := drv.MediaPlayer(); mediaPlayer != nil {
			mediaPlayer.Disconnect()
		}
	})

	return &driverFixture{
		drv:      drv,
		cfg:      cfg,
		storeSvc: storeSvc,
		hubSvc:   hubSvc,
		setupSvc: setup.NewFlow(cfg, storeSvc, factory),
	}
}

func (fx *driverFixture) saveCameras(t *testing.T, names ...string) {
	t.Helper()

	cameras := make([]model.Camera, 0, len(names))
	for _, name := range names {
		cameras = append(cameras, model.Camera{
			Name:        name,
			SnapshotURL: "http://example.local/" + name + ".jpg",
		})
	}
	require.NoError(t, fx.storeSvc.SaveCameras(cameras))
}

func TestInitWithoutConfiguration(t *testing.T) {
	fx := newDriverFixture(t)

	// No cameras stored yet; the driver waits for setup instead of failing.
	require.NoError(t, fx.drv.Init(context.Background(), false))
	assert.Nil(t, fx.drv.MediaPlayer())
	assert.Nil(t, fx.drv.Selector())
}

func TestInitCreatesEntities(t *testing.T) {
	fx := newDriverFixture(t)
	fx.saveCameras(t, "Front Door", "Backyard")

	require.NoError(t, fx.drv.Init(context.Background(), false))

	mediaPlayer := fx.drv.MediaPlayer()
	require.NotNil(t, mediaPlayer)
	assert.Equal(t, []string{"Front Door", "Backyard"}, mediaPlayer.SourceList())

	selector := fx.drv.Selector()
	require.NotNil(t, selector)
	assert.Equal(t, "Front Door", selector.CurrentOption())
}

func TestInitIsIdempotentWithoutForce(t *testing.T) {
	fx := newDriverFixture(t)
	fx.saveCameras(t, "Front Door")

	require.NoError(t, fx.drv.Init(context.Background(), false))
	mediaPlayer := fx.drv.MediaPlayer()

	require.NoError(t, fx.drv.Init(context.Background(), false))
	assert.Same(t, mediaPlayer, fx.drv.MediaPlayer())
}

func TestInitForceRecreateReplacesEntities(t *testing.T) {
	fx := newDriverFixture(t)
	fx.saveCameras(t, "Front Door")

	require.NoError(t, fx.drv.Init(context.Background(), false))
	oldPlayer := fx.drv.MediaPlayer()

	fx.saveCameras(t, "Garage", "Driveway")
	require.NoError(t, fx.drv.Init(context.Background(), true))

	newPlayer := fx.drv.MediaPlayer()
	require.NotNil(t, newPlayer)
	assert.NotSame(t, oldPlayer, newPlayer)
	assert.Equal(t, []string{"Garage", "Driveway"}, newPlayer.SourceList())
	assert.Equal(t, "Garage", fx.drv.Selector().CurrentOption())
}

func TestCommandsBeforeInitialization(t *testing.T) {
	fx := newDriverFixture(t)

	code := fx.drv.HandleMediaPlayerCommand(context.Background(), model.MediaPlayerCommand{Type: model.MediaPlayerOn})
	assert.Equal(t, model.StatusServerError, code)

	code = fx.drv.HandleSelectorCommand(context.Background(), model.SelectorCommand{Type: model.SelectorSelectNext})
	assert.Equal(t, model.StatusServerError, code)
}

func TestSelectorCommandKeepsEntitiesInSync(t *testing.T) {
	fx := newDriverFixture(t)
	fx.saveCameras(t, "Front Door", "Backyard")
	require.NoError(t, fx.drv.Init(context.Background(), false))

	code := fx.drv.HandleSelectorCommand(context.Background(), model.SelectorCommand{
		Type:   model.SelectorSelectOption,
		Option: "Backyard",
	})

	require.Equal(t, model.StatusOK, code)
	assert.Equal(t, "Backyard", fx.drv.Selector().CurrentOption())
	assert.Equal(t, "Backyard", fx.drv.MediaPlayer().Source())
}

func TestMediaPlayerSwitchMirrorsIntoSelector(t *testing.T) {
	fx := newDriverFixture(t)
	fx.saveCameras(t, "Front Door", "Backyard")
	require.NoError(t, fx.drv.Init(context.Background(), false))

	code := fx.drv.HandleMediaPlayerCommand(context.Background(), model.MediaPlayerCommand{
		Type:   model.MediaPlayerSelectSource,
		Source: "Backyard",
	})

	require.Equal(t, model.StatusOK, code)
	assert.Equal(t, "Backyard", fx.drv.Selector().CurrentOption())
}

func TestOnSubscribeEntitiesPushesInitialState(t *testing.T) {
	fx := newDriverFixture(t)
	fx.saveCameras(t, "Front Door")
	require.NoError(t, fx.drv.Init(context.Background(), false))

	fx.drv.OnSubscribeEntities([]string{entity.MediaPlayerEntityID, entity.SelectorEntityID})

	playerAttrs := fx.hubSvc.Attributes(entity.MediaPlayerEntityID)
	assert.Equal(t, model.StateOff, playerAttrs[model.AttrState])
	assert.Equal(t, "Front Door", playerAttrs[model.AttrSource])

	selectorAttrs := fx.hubSvc.Attributes(entity.SelectorEntityID)
	assert.Equal(t, "Front Door", selectorAttrs[model.AttrCurrentOption])
}

func TestOnDisconnectStopsStreaming(t *testing.T) {
	fx := newDriverFixture(t)
	fx.saveCameras(t, "Front Door")
	require.NoError(t, fx.drv.Init(context.Background(), false))

	fx.drv.OnConnect()
	assert.Equal(t, model.DeviceConnected, fx.hubSvc.GetDeviceState())

	require.Equal(t, model.StatusOK, fx.drv.HandleMediaPlayerCommand(context.Background(), model.MediaPlayerCommand{Type: model.MediaPlayerOn}))
	require.True(t, fx.drv.MediaPlayer().IsStreaming())

	fx.drv.OnDisconnect()
	assert.Equal(t, model.DeviceDisconnected, fx.hubSvc.GetDeviceState())
	assert.False(t, fx.drv.MediaPlayer().IsStreaming())
}

func TestHandleSetupCompletionReinitializes(t *testing.T) {
	fx := newDriverFixture(t)
	ctx := context.Background()

	action := fx.drv.HandleSetup(ctx, fx.setupSvc, setup.DriverSetupRequest{
		SetupData: map[string]string{"camera_count": "1"},
	})
	require.IsType(t, setup.RequestUserInput{}, action)

	action = fx.drv.HandleSetup(ctx, fx.setupSvc, setup.UserDataResponse{InputValues: map[string]string{
		"camera_0_name": "Front Door",
		"camera_0_url":  "http://cam1.local/snap.jpg",
	}})
	require.IsType(t, setup.RequestUserConfirmation{}, action)

	action = fx.drv.HandleSetup(ctx, fx.setupSvc, setup.UserConfirmationResponse{Confirm: true})
	require.IsType(t, setup.Complete{}, action)

	// Completion reinitialized the integration with the saved cameras.
	mediaPlayer := fx.drv.MediaPlayer()
	require.NotNil(t, mediaPlayer)
	assert.Equal(t, []string{"Front Door"}, mediaPlayer.SourceList())
}

func TestInitCorruptConfigReturnsComponentError(t *testing.T) {
	fx := newDriverFixture(t)
	require.NoError(t, os.WriteFile(fx.cfg.configFile, []byte("{not json"), 0644))

	err := fx.drv.Init(context.Background(), false)
	require.Error(t, err)

	var custom model.CustomError
	require.ErrorAs(t, err, &custom)
	assert.Equal(t, "driver", custom.Processor)
}

func TestInitDoesNotBlockAccessorsDuringProbing(t *testing.T) {
	cfg := testConfig{configFile: filepath.Join(t.TempDir(), "config.json")}
	storeSvc := store.NewFilesStore(cfg)
	hubSvc := hub.NewInMemory()

	release := make(chan struct{})
	factory := func(camera model.Camera) snapshot.IService {
		return &fakeClient{camera: camera, online: true, probeGate: release}
	}

	drv := New(context.Background(), cfg, storeSvc, hubSvc, factory)
	require.NoError(t, storeSvc.SaveCameras([]model.Camera{
		{Name: "Front Door", SnapshotURL: "http://cam1.local/snap.jpg"},
		{Name: "Backyard", SnapshotURL: "http://cam2.local/snap.jpg"},
	}))

	initResult := make(chan error, 1)
	go func() {
		initResult <- drv.Init(context.Background(), false)
	}()

	// Entities are reachable and commands dispatch while the boot probes are
	// still in flight.
	require.Eventually(t, func() bool {
		return drv.MediaPlayer() != nil
	}, 2*time.Second, 5*time.Millisecond)

	code := drv.HandleSelectorCommand(context.Background(), model.SelectorCommand{
		Type:   model.SelectorSelectOption,
		Option: "Backyard",
	})
	assert.Equal(t, model.StatusOK, code)

	close(release)
	require.NoError(t, <-initResult)

	drv.MediaPlayer().Disconnect()
}

func TestCameraByName(t *testing.T) {
	fx := newDriverFixture(t)
	fx.saveCameras(t, "Front Door", "Backyard")
	require.NoError(t, fx.drv.Init(context.Background(), false))

	camera, found := fx.drv.CameraByName("Front Door")
	require.True(t, found)
	assert.Equal(t, "http://example.local/Front Door.jpg", camera.SnapshotURL)
	assert.True(t, camera.Selected)

	camera, found = fx.drv.CameraByName("Backyard")
	require.True(t, found)
	assert.False(t, camera.Selected)

	_, found = fx.drv.CameraByName("Garage")
	assert.False(t, found)
}

func TestStatusReport(t *testing.T) {
	fx := newDriverFixture(t)

	status := fx.drv.Status()
	assert.False(t, status.Initialized)
	assert.Empty(t, status.Cameras)
	assert.Equal(t, model.DeviceDisconnected, status.DeviceState)

	fx.saveCameras(t, "Front Door", "Backyard")
	require.NoError(t, fx.drv.Init(context.Background(), false))
	fx.drv.OnSubscribeEntities([]string{entity.MediaPlayerEntityID})
	require.Equal(t, model.StatusOK, fx.drv.HandleMediaPlayerCommand(context.Background(), model.MediaPlayerCommand{Type: model.MediaPlayerOn}))

	require.Eventually(t, func() bool {
		uri, _ := fx.hubSvc.Attributes(entity.MediaPlayerEntityID)[model.AttrMediaImageURL].(string)
		return strings.HasSuffix(uri, "IMG:Front Door")
	}, 2*time.Second, 5*time.Millisecond)

	status = fx.drv.Status()
	assert.True(t, status.Initialized)
	assert.Equal(t, model.StatePlaying, status.State)
	assert.Equal(t, "Front Door", status.Source)
	assert.True(t, status.Streaming)
	require.Len(t, status.Cameras, 2)
	assert.True(t, status.Cameras[0].Selected)
	assert.False(t, status.Cameras[1].Selected)
}
