package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khaledhikmat/cctv-bridge/driver"
	"github.com/khaledhikmat/cctv-bridge/model"
)

type testConfig struct{}

func (testConfig) GetConfigFolder() string          { return "." }
func (testConfig) GetConfigFile() string            { return filepath.Join(".", "config.json") }
func (testConfig) GetDefaultRefreshRate() int       { return 10 }
func (testConfig) GetMaxConsecutiveFailures() int   { return 5 }
func (testConfig) GetSettleDelay() time.Duration    { return time.Millisecond }
func (testConfig) GetErrorBackoff() time.Duration   { return time.Millisecond }
func (testConfig) GetConnectTimeout() time.Duration { return time.Second }
func (testConfig) GetRequestTimeout() time.Duration { return time.Second }
func (testConfig) GetMinImageBytes() int            { return 1000 }
func (testConfig) GetMaxImageKB() int               { return 80 }
func (testConfig) GetStatusServerAddress() string   { return "127.0.0.1:0" }
func (testConfig) GetMaxShutdownTime() int          { return 1 }

type fakeProvider struct {
	status driver.Status
}

func (f fakeProvider) Status() driver.Status {
	return f.status
}

func (f fakeProvider) CameraByName(name string) (driver.CameraStatus, bool) {
	for _, camera := range f.status.Cameras {
		if camera.Name == name {
			return camera, true
		}
	}
	return driver.CameraStatus{}, false
}

func newTestServer(status driver.Status) *Server {
	return New(testConfig{}, fakeProvider{status: status})
}

func get(t *testing.T, handler http.Handler, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	body := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(driver.Status{})

	rec, body := get(t, srv.Handler(), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(driver.Status{
		DeviceState: model.DeviceConnected,
		Initialized: true,
		State:       model.StatePlaying,
		Source:      "Front Door",
		Streaming:   true,
		Cameras: []driver.CameraStatus{
			{Name: "Front Door", SnapshotURL: "http://cam1.local/snap.jpg", RefreshRate: 10, Selected: true},
			{Name: "Backyard", SnapshotURL: "http://cam2.local/snap.jpg", RefreshRate: 30},
		},
	})

	rec, body := get(t, srv.Handler(), "/api/status")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(model.DeviceConnected), body["deviceState"])
	assert.Equal(t, true, body["initialized"])
	assert.Equal(t, string(model.StatePlaying), body["state"])
	assert.Equal(t, "Front Door", body["source"])
	assert.Equal(t, true, body["streaming"])
	assert.EqualValues(t, 2, body["cameras"])
}

func TestStatusEndpointUninitialized(t *testing.T) {
	srv := newTestServer(driver.Status{
		DeviceState: model.DeviceDisconnected,
		Cameras:     []driver.CameraStatus{},
	})

	rec, body := get(t, srv.Handler(), "/api/status")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["initialized"])
	assert.EqualValues(t, 0, body["cameras"])
}

func TestCamerasEndpoint(t *testing.T) {
	srv := newTestServer(driver.Status{
		Cameras: []driver.CameraStatus{
			{Name: "Front Door", SnapshotURL: "http://cam1.local/snap.jpg", RefreshRate: 10, Selected: true},
		},
	})

	rec, body := get(t, srv.Handler(), "/api/cameras")
	assert.Equal(t, http.StatusOK, rec.Code)

	cameras, ok := body["cameras"].([]interface{})
	require.True(t, ok)
	require.Len(t, cameras, 1)

	camera, ok := cameras[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Front Door", camera["name"])
	assert.Equal(t, true, camera["selected"])
}

func TestCameraByNameEndpoint(t *testing.T) {
	srv := newTestServer(driver.Status{
		Cameras: []driver.CameraStatus{
			{Name: "Front Door", SnapshotURL: "http://cam1.local/snap.jpg", RefreshRate: 10, Selected: true},
			{Name: "Backyard", SnapshotURL: "http://cam2.local/snap.jpg", RefreshRate: 30},
		},
	})

	rec, body := get(t, srv.Handler(), "/api/cameras/Backyard")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Backyard", body["name"])
	assert.Equal(t, "http://cam2.local/snap.jpg", body["snapshotUrl"])
	assert.Equal(t, false, body["selected"])
}

func TestCameraByNameEndpointNotFound(t *testing.T) {
	srv := newTestServer(driver.Status{})

	rec, body := get(t, srv.Handler(), "/api/cameras/Garage")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "camera not found", body["error"])
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(driver.Status{})

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
