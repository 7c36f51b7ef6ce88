package model

import (
	"fmt"
	"runtime/debug"
)

type CustomError struct {
	Processor  string                 `json:"processor"`
	Inner      error                  `json:"innerError"`
	Message    string                 `json:"message"`
	StackTrace string                 `json:"stackTrace"`
	Misc       map[string]interface{} `json:"misc"`
}

func (e CustomError) Error() string {
	return e.Message
}

func (e CustomError) Unwrap() error {
	return e.Inner
}

func GenError(proc string, err error, misc map[string]interface{}, messagef string, args ...interface{}) CustomError {
	return CustomError{
		Processor:  proc,
		Inner:      err,
		Message:    fmt.Sprintf(messagef, args...),
		StackTrace: string(debug.Stack()),
		Misc:       misc,
	}
}

// Camera describes one configured snapshot camera. Identity is by name;
// there are no numeric IDs.
type Camera struct {
	Name        string `json:"name"`
	SnapshotURL string `json:"snapshot_url"`
	RefreshRate int    `json:"refresh_rate"` // seconds between snapshot fetches
}

// StatusCode is the outcome of a command handler, reported back to the hub.
type StatusCode int

const (
	StatusOK          StatusCode = 200
	StatusBadRequest  StatusCode = 400
	StatusServerError StatusCode = 500
)

func (s StatusCode) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusBadRequest:
		return "BAD_REQUEST"
	case StatusServerError:
		return "SERVER_ERROR"
	}
	return fmt.Sprintf("STATUS_%d", int(s))
}

// EntityState is the hub-visible state of an entity.
type EntityState string

const (
	StateOn          EntityState = "ON"
	StateOff         EntityState = "OFF"
	StatePlaying     EntityState = "PLAYING"
	StateUnavailable EntityState = "UNAVAILABLE"
)

// DeviceState is the hub-visible state of the integration itself.
type DeviceState string

const (
	DeviceConnected    DeviceState = "CONNECTED"
	DeviceDisconnected DeviceState = "DISCONNECTED"
)

// Attribute keys pushed to the hub entity registry.
const (
	AttrState         = "state"
	AttrMediaType     = "media_type"
	AttrSourceList    = "source_list"
	AttrSource        = "source"
	AttrMediaImageURL = "media_image_url"
	AttrMediaTitle    = "media_title"
	AttrMediaArtist   = "media_artist"
	AttrOptions       = "options"
	AttrCurrentOption = "current_option"
)

const MediaTypeVideo = "video"

// MediaPlayerCommandType enumerates the closed set of media player commands.
type MediaPlayerCommandType int

const (
	MediaPlayerOn MediaPlayerCommandType = iota
	MediaPlayerOff
	MediaPlayerSelectSource
)

func (t MediaPlayerCommandType) String() string {
	switch t {
	case MediaPlayerOn:
		return "on"
	case MediaPlayerOff:
		return "off"
	case MediaPlayerSelectSource:
		return "select_source"
	}
	return fmt.Sprintf("media_player_command_%d", int(t))
}

// MediaPlayerCommand is a tagged command variant. Source is only meaningful
// for MediaPlayerSelectSource.
type MediaPlayerCommand struct {
	Type   MediaPlayerCommandType
	Source string
}

// SelectorCommandType enumerates the closed set of selector commands.
type SelectorCommandType int

const (
	SelectorSelectOption SelectorCommandType = iota
	SelectorSelectNext
	SelectorSelectPrevious
	SelectorSelectFirst
	SelectorSelectLast
)

func (t SelectorCommandType) String() string {
	switch t {
	case SelectorSelectOption:
		return "select_option"
	case SelectorSelectNext:
		return "select_next"
	case SelectorSelectPrevious:
		return "select_previous"
	case SelectorSelectFirst:
		return "select_first"
	case SelectorSelectLast:
		return "select_last"
	}
	return fmt.Sprintf("selector_command_%d", int(t))
}

// SelectorCommand is a tagged command variant. Option is only meaningful for
// SelectorSelectOption.
type SelectorCommand struct {
	Type   SelectorCommandType
	Option string
}
