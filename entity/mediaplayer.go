package entity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/khaledhikmat/cctv-bridge/model"
	"github.com/khaledhikmat/cctv-bridge/service/config"
	"github.com/khaledhikmat/cctv-bridge/service/hub"
	"github.com/khaledhikmat/cctv-bridge/service/lgr"
	"github.com/khaledhikmat/cctv-bridge/service/snapshot"
)

const (
	MediaPlayerEntityID   = "security_cameras"
	MediaPlayerEntityName = "Security Cameras"

	artistOnline  = "Camera View"
	artistOffline = "Camera Offline"

	dataURIPrefix = "data:image/jpeg;base64,"
)

// MediaPlayer holds the authoritative "which camera is selected, is it
// streaming" state and owns the stream loop lifecycle.
type MediaPlayer struct {
	id      string
	name    string
	canxCtx context.Context
	cfgSvc  config.IService
	hubSvc  hub.IService

	cameras []model.Camera
	clients map[string]snapshot.IService

	mu       sync.Mutex
	state    model.EntityState
	source   string
	imageURI string
	artist   string

	loop *streamLoop

	// onSourceChanged mirrors a confirmed switch into the selector entity.
	onSourceChanged func(name string)
}

func newMediaPlayer(canxCtx context.Context, cfgsvc config.IService, hubsvc hub.IService, cameras []model.Camera, factory snapshot.Factory) *MediaPlayer {
	clients := map[string]snapshot.IService{}
	for _, camera := range cameras {
		clients[camera.Name] = factory(camera)
	}

	source := ""
	if len(cameras) > 0 {
		source = cameras[0].Name
	}

	mp := &MediaPlayer{
		id:      MediaPlayerEntityID,
		name:    MediaPlayerEntityName,
		canxCtx: canxCtx,
		cfgSvc:  cfgsvc,
		hubSvc:  hubsvc,
		cameras: cameras,
		clients: clients,
		state:   model.StateOff,
		source:  source,
		artist:  artistOnline,
	}

	mp.loop = newStreamLoop(
		cfgsvc.GetMaxConsecutiveFailures(),
		cfgsvc.GetErrorBackoff(),
		loopCallbacks{
			powered:       mp.IsOn,
			tick:          mp.streamTick,
			refresh:       mp.refreshInterval,
			onUnavailable: mp.handleStreamFailure,
		},
	)

	return mp
}

func (mp *MediaPlayer) ID() string {
	return mp.id
}

func (mp *MediaPlayer) Name() string {
	return mp.name
}

// SetOnSourceChanged registers the selector-sync hook. Must be set before
// commands start flowing; the driver wires it at construction time.
func (mp *MediaPlayer) SetOnSourceChanged(fn func(name string)) {
	mp.onSourceChanged = fn
}

func (mp *MediaPlayer) IsOn() bool {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.state == model.StateOn || mp.state == model.StatePlaying
}

func (mp *MediaPlayer) IsStreaming() bool {
	return mp.loop.isRunning()
}

func (mp *MediaPlayer) State() model.EntityState {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.state
}

func (mp *MediaPlayer) Source() string {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.source
}

// SourceList returns camera names in configuration order.
func (mp *MediaPlayer) SourceList() []string {
	names := make([]string, 0, len(mp.cameras))
	for _, camera := range mp.cameras {
		names = append(names, camera.Name)
	}
	return names
}

// Attributes returns the full hub-facing attribute set.
func (mp *MediaPlayer) Attributes() map[string]interface{} {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	return map[string]interface{}{
		model.AttrState:         mp.state,
		model.AttrMediaType:     model.MediaTypeVideo,
		model.AttrSourceList:    mp.SourceList(),
		model.AttrSource:        mp.source,
		model.AttrMediaImageURL: mp.imageURI,
		model.AttrMediaTitle:    mp.source,
		model.AttrMediaArtist:   mp.artist,
	}
}

// PushInitialState publishes the full attribute set. The hub defers it if
// the entity is not subscribed yet.
func (mp *MediaPlayer) PushInitialState() {
	mp.hubSvc.UpdateAttributes(mp.id, mp.Attributes())
}

// HandleCommand dispatches a media player command. Panics in handlers are
// recovered and surfaced as SERVER_ERROR with entity state left as-is.
func (mp *MediaPlayer) HandleCommand(ctx context.Context, cmd model.MediaPlayerCommand) (code model.StatusCode) {
	defer func() {
		if r := recover(); r != nil {
			lgr.Logger.Error(
				"media player command panicked",
				slog.String("command", cmd.Type.String()),
				lgr.Err(fmt.Errorf("panic: %v", r)),
			)
			code = model.StatusServerError
		}
	}()

	lgr.Logger.Info(
		"media player command received",
		slog.String("command", cmd.Type.String()),
		slog.String("source", cmd.Source),
	)

	switch cmd.Type {
	case model.MediaPlayerOn:
		return mp.turnOn()
	case model.MediaPlayerOff:
		return mp.turnOff()
	case model.MediaPlayerSelectSource:
		return mp.SelectSource(ctx, cmd.Source)
	}

	lgr.Logger.Warn(
		"unsupported media player command",
		slog.String("command", cmd.Type.String()),
	)
	return model.StatusBadRequest
}

func (mp *MediaPlayer) turnOn() model.StatusCode {
	mp.mu.Lock()
	if mp.source == "" || mp.clients[mp.source] == nil {
		mp.mu.Unlock()
		lgr.Logger.Error("no camera selected, cannot turn on")
		return model.StatusBadRequest
	}
	mp.state = model.StatePlaying
	mp.artist = artistOnline
	mp.mu.Unlock()

	mp.publish()
	mp.startStreaming()

	return model.StatusOK
}

func (mp *MediaPlayer) turnOff() model.StatusCode {
	// Idempotent even when the loop is not running.
	mp.loop.stop()

	mp.mu.Lock()
	mp.state = model.StateOff
	mp.imageURI = ""
	mp.artist = artistOnline
	mp.mu.Unlock()

	mp.publish()

	return model.StatusOK
}

// SelectSource switches the active camera. If streaming, the loop is fully
// stopped (cancel + await) before the active client swaps, so a stale tick
// can never publish the old camera's image after the switch.
func (mp *MediaPlayer) SelectSource(ctx context.Context, name string) model.StatusCode {
	mp.mu.Lock()
	if name == "" || mp.clients[name] == nil {
		mp.mu.Unlock()
		lgr.Logger.Error(
			"invalid camera source",
			slog.String("source", name),
		)
		return model.StatusBadRequest
	}
	mp.mu.Unlock()

	lgr.Logger.Info(
		"switching camera source",
		slog.String("source", name),
	)

	mp.loop.stop()

	mp.mu.Lock()
	mp.source = name
	resume := false
	switch mp.state {
	case model.StateOn, model.StatePlaying:
		resume = true
	case model.StateUnavailable:
		// A fresh selection clears the offline flag and resumes polling.
		mp.state = model.StatePlaying
		mp.artist = artistOnline
		resume = true
	}
	mp.mu.Unlock()

	mp.publish()

	// Settle before restarting polling; a tunable, not a correctness
	// guarantee. The stop above is what prevents the stale-image race.
	if !sleepCtx(ctx, mp.cfgSvc.GetSettleDelay()) {
		return model.StatusOK
	}

	if resume {
		mp.startStreaming()
	}

	if mp.onSourceChanged != nil {
		mp.onSourceChanged(name)
	}

	return model.StatusOK
}

// Disconnect stops streaming and releases every camera's connections.
func (mp *MediaPlayer) Disconnect() {
	mp.loop.stop()

	for _, client := range mp.clients {
		client.Close()
	}

	lgr.Logger.Info("disconnected all cameras")
}

// StopStreaming halts polling without flipping power; used when the remote
// disconnects.
func (mp *MediaPlayer) StopStreaming() {
	mp.loop.stop()
}

func (mp *MediaPlayer) startStreaming() {
	if mp.currentClient() == nil {
		lgr.Logger.Error("no active camera client, cannot start streaming")
		return
	}
	mp.loop.start(mp.canxCtx)
}

func (mp *MediaPlayer) currentClient() snapshot.IService {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.clients[mp.source]
}

func (mp *MediaPlayer) refreshInterval() time.Duration {
	client := mp.currentClient()
	if client == nil {
		return time.Duration(mp.cfgSvc.GetDefaultRefreshRate()) * time.Second
	}

	rate := client.Camera().RefreshRate
	if rate <= 0 {
		rate = mp.cfgSvc.GetDefaultRefreshRate()
	}
	return time.Duration(rate) * time.Second
}

// streamTick performs one fetch/transcode/publish cycle for the active
// camera.
func (mp *MediaPlayer) streamTick(ctx context.Context) error {
	client := mp.currentClient()
	if client == nil {
		return errors.New("no active camera client")
	}

	data, err := client.Fetch(ctx)
	if err != nil {
		// Cancellation passes through untouched so the loop can tell a stop
		// signal from a camera failure.
		if ctx.Err() != nil {
			return err
		}
		return model.GenError("media_player",
			err,
			map[string]interface{}{"camera": client.Camera().Name},
			"error fetching snapshot")
	}

	payload, err := client.Transcode(data, mp.cfgSvc.GetMaxImageKB())
	if err != nil {
		return model.GenError("media_player",
			fmt.Errorf("%w: %v", errTranscode, err),
			map[string]interface{}{"camera": client.Camera().Name},
			"error transcoding snapshot")
	}

	mp.mu.Lock()
	mp.imageURI = dataURIPrefix + payload
	mp.mu.Unlock()

	mp.publish()

	lgr.Logger.Debug(
		"snapshot published",
		slog.String("camera", client.Camera().Name),
		slog.Int("base64Chars", len(payload)),
	)
	return nil
}

// handleStreamFailure flips the entity to UNAVAILABLE after the failure
// threshold. The rest of the integration keeps running.
func (mp *MediaPlayer) handleStreamFailure() {
	mp.mu.Lock()
	source := mp.source
	mp.state = model.StateUnavailable
	mp.artist = artistOffline
	mp.imageURI = ""
	mp.mu.Unlock()

	lgr.Logger.Error(
		"camera marked unavailable",
		slog.String("camera", source),
	)

	mp.publish()
}

func (mp *MediaPlayer) publish() {
	mp.mu.Lock()
	attrs := map[string]interface{}{
		model.AttrState:         mp.state,
		model.AttrSource:        mp.source,
		model.AttrMediaTitle:    mp.source,
		model.AttrMediaImageURL: mp.imageURI,
		model.AttrMediaArtist:   mp.artist,
	}
	mp.mu.Unlock()

	mp.hubSvc.UpdateAttributes(mp.id, attrs)
}
