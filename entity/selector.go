package entity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/khaledhikmat/cctv-bridge/model"
	"github.com/khaledhikmat/cctv-bridge/service/hub"
	"github.com/khaledhikmat/cctv-bridge/service/lgr"
)

const (
	SelectorEntityID   = "camera_selector"
	SelectorEntityName = "Camera Selector"
)

// SourceSwitcher is the slice of the media player the selector needs.
type SourceSwitcher interface {
	SelectSource(ctx context.Context, name string) model.StatusCode
}

// Selector is a list-cursor view over the camera set. Every selection is
// routed through the media player; the selector's own state only changes
// after the player confirms the switch.
type Selector struct {
	id     string
	name   string
	hubSvc hub.IService
	player SourceSwitcher

	mu      sync.Mutex
	options []string
	current string
}

func newSelector(hubsvc hub.IService, cameras []model.Camera, player SourceSwitcher) *Selector {
	options := make([]string, 0, len(cameras))
	for _, camera := range cameras {
		options = append(options, camera.Name)
	}

	current := ""
	if len(options) > 0 {
		current = options[0]
	}

	return &Selector{
		id:      SelectorEntityID,
		name:    SelectorEntityName,
		hubSvc:  hubsvc,
		player:  player,
		options: options,
		current: current,
	}
}

func (s *Selector) ID() string {
	return s.id
}

func (s *Selector) Name() string {
	return s.name
}

func (s *Selector) CurrentOption() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Selector) Options() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.options...)
}

func (s *Selector) Attributes() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	return map[string]interface{}{
		model.AttrState:         model.StateOn,
		model.AttrOptions:       append([]string{}, s.options...),
		model.AttrCurrentOption: s.current,
	}
}

func (s *Selector) PushInitialState() {
	s.hubSvc.UpdateAttributes(s.id, s.Attributes())
}

// HandleCommand dispatches a selector command. Panics are recovered and
// surfaced as SERVER_ERROR with state left as-is.
func (s *Selector) HandleCommand(ctx context.Context, cmd model.SelectorCommand) (code model.StatusCode) {
	defer func() {
		if r := recover(); r != nil {
			lgr.Logger.Error(
				"selector command panicked",
				slog.String("command", cmd.Type.String()),
				lgr.Err(fmt.Errorf("panic: %v", r)),
			)
			code = model.StatusServerError
		}
	}()

	lgr.Logger.Info(
		"selector command received",
		slog.String("command", cmd.Type.String()),
		slog.String("option", cmd.Option),
	)

	switch cmd.Type {
	case model.SelectorSelectOption:
		return s.selectCamera(ctx, cmd.Option)
	case model.SelectorSelectNext:
		return s.selectRelative(ctx, 1)
	case model.SelectorSelectPrevious:
		return s.selectRelative(ctx, -1)
	case model.SelectorSelectFirst:
		return s.selectEdge(ctx, true)
	case model.SelectorSelectLast:
		return s.selectEdge(ctx, false)
	}

	lgr.Logger.Warn(
		"unsupported selector command",
		slog.String("command", cmd.Type.String()),
	)
	return model.StatusBadRequest
}

// selectCamera routes the target through the media player, and mirrors the
// name into the selector's state only after the switch succeeds. On failure
// the displayed state is left untouched.
func (s *Selector) selectCamera(ctx context.Context, name string) model.StatusCode {
	s.mu.Lock()
	valid := name != "" && indexOf(s.options, name) >= 0
	s.mu.Unlock()

	if !valid {
		lgr.Logger.Error(
			"invalid camera option",
			slog.String("option", name),
		)
		return model.StatusBadRequest
	}

	if s.player == nil {
		lgr.Logger.Error("no media player reference available")
		return model.StatusServerError
	}

	result := s.player.SelectSource(ctx, name)
	if result != model.StatusOK {
		lgr.Logger.Error(
			"media player refused camera switch",
			slog.String("option", name),
			slog.String("status", result.String()),
		)
		return result
	}

	s.mu.Lock()
	s.current = name
	s.mu.Unlock()

	s.publish()
	return model.StatusOK
}

// selectRelative moves the cursor by step, wrapping in both directions.
func (s *Selector) selectRelative(ctx context.Context, step int) model.StatusCode {
	s.mu.Lock()
	index := indexOf(s.options, s.current)
	count := len(s.options)
	var target string
	if index >= 0 && count > 0 {
		target = s.options[((index+step)%count+count)%count]
	}
	s.mu.Unlock()

	// The sync invariant keeps current inside options, but a missing cursor
	// must be handled, not assumed away.
	if target == "" {
		lgr.Logger.Error(
			"current option missing from option list",
			slog.String("current", s.CurrentOption()),
		)
		return model.StatusServerError
	}

	return s.selectCamera(ctx, target)
}

func (s *Selector) selectEdge(ctx context.Context, first bool) model.StatusCode {
	s.mu.Lock()
	var target string
	if len(s.options) > 0 {
		if first {
			target = s.options[0]
		} else {
			target = s.options[len(s.options)-1]
		}
	}
	s.mu.Unlock()

	if target == "" {
		lgr.Logger.Error("no cameras available")
		return model.StatusServerError
	}

	return s.selectCamera(ctx, target)
}

// UpdateFromMediaPlayer mirrors a source change that happened through any
// other path. Unrecognized names are logged and ignored so they can never
// corrupt the cursor.
func (s *Selector) UpdateFromMediaPlayer(name string) {
	s.mu.Lock()
	known := indexOf(s.options, name) >= 0
	if known {
		s.current = name
	}
	s.mu.Unlock()

	if !known {
		lgr.Logger.Warn(
			"camera not in selector options",
			slog.String("camera", name),
		)
		return
	}

	s.publish()
}

func (s *Selector) publish() {
	s.mu.Lock()
	attrs := map[string]interface{}{
		model.AttrState:         model.StateOn,
		model.AttrCurrentOption: s.current,
	}
	s.mu.Unlock()

	s.hubSvc.UpdateAttributes(s.id, attrs)
}

func indexOf(options []string, name string) int {
	for i, option := range options {
		if option == name {
			return i
		}
	}
	return -1
}
