package snapshot

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/khaledhikmat/cctv-bridge/model"
	"github.com/khaledhikmat/cctv-bridge/service/config"
	"github.com/khaledhikmat/cctv-bridge/service/lgr"
)

// ErrNotAvailable marks a fetch that failed for a transient reason: bad
// status, unreachable camera or an implausible body. Callers count these
// against the failure threshold.
var ErrNotAvailable = errors.New("snapshot not available")

var (
	jpegSOI      = []byte{0xFF, 0xD8, 0xFF}
	pngSignature = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
)

// Cameras occasionally misbehave; cap the body so a broken endpoint cannot
// exhaust memory.
const maxBodyBytes = 32 << 20

type httpService struct {
	camera model.Camera
	cfgSvc config.IService
	client *http.Client
}

// NewHTTP builds a snapshot client for one camera. Certificate validation is
// disabled: cameras on the local network serve self-signed certificates.
func NewHTTP(camera model.Camera, cfgsvc config.IService) IService {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: cfgsvc.GetConnectTimeout(),
		}).DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true,
		},
		MaxIdleConns:        5,
		MaxIdleConnsPerHost: 2,
		MaxConnsPerHost:     5,
		IdleConnTimeout:     30 * time.Second,
	}

	return &httpService{
		camera: camera,
		cfgSvc: cfgsvc,
		client: &http.Client{
			Timeout:   cfgsvc.GetRequestTimeout(),
			Transport: transport,
		},
	}
}

func (svc *httpService) Camera() model.Camera {
	return svc.camera
}

func (svc *httpService) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, svc.camera.SnapshotURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building snapshot request for %s: %w", svc.camera.Name, err)
	}

	resp, err := svc.client.Do(req)
	if err != nil {
		// Cancellation is a stop signal, not a camera failure; hand it back
		// undisguised so callers can tell the two apart.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrNotAvailable, svc.camera.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: %s: HTTP %d", ErrNotAvailable, svc.camera.Name, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s: reading body: %v", ErrNotAvailable, svc.camera.Name, err)
	}

	if !svc.isPlausibleImage(data) {
		return nil, fmt.Errorf("%w: %s: body is not a valid image (%d bytes)", ErrNotAvailable, svc.camera.Name, len(data))
	}

	return data, nil
}

// isPlausibleImage accepts only bodies that carry a JPEG SOI marker or PNG
// signature and exceed the minimum plausible size. Servers sometimes return
// HTML error pages or truncated placeholders with a 200 status.
func (svc *httpService) isPlausibleImage(data []byte) bool {
	if len(data) <= svc.cfgSvc.GetMinImageBytes() {
		return false
	}
	return bytes.HasPrefix(data, jpegSOI) || bytes.HasPrefix(data, pngSignature)
}

func (svc *httpService) Probe(ctx context.Context) bool {
	defer svc.client.CloseIdleConnections()

	data, err := svc.Fetch(ctx)
	if err != nil {
		lgr.Logger.Warn(
			"camera probe failed",
			slog.String("camera", svc.camera.Name),
			lgr.Err(err),
		)
		return false
	}

	lgr.Logger.Info(
		"camera probe successful",
		slog.String("camera", svc.camera.Name),
		slog.Int("bytes", len(data)),
	)
	return true
}

func (svc *httpService) Close() {
	svc.client.CloseIdleConnections()
}
