package snapshot

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"log/slog"

	"golang.org/x/image/draw"

	"github.com/khaledhikmat/cctv-bridge/service/lgr"
)

// Target canvas of the remote's display.
const (
	targetWidth  = 320
	targetHeight = 240

	startQuality = 85
	qualityStep  = 10
	minQuality   = 20
)

// Transcode decodes the snapshot, resizes it to fit within the target canvas
// preserving aspect ratio (letterboxed, never cropped), and re-encodes as
// JPEG. Quality starts at 85 and steps down by 10 while the output exceeds
// maxKB, bottoming out at 20: at the floor an oversize image is accepted
// rather than degraded further. The result is base64 for data-URI embedding.
func (svc *httpService) Transcode(data []byte, maxKB int) (string, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decoding snapshot from %s: %w", svc.camera.Name, err)
	}

	width, height := fitWithin(src.Bounds().Dx(), src.Bounds().Dy())
	if width <= 0 || height <= 0 {
		return "", fmt.Errorf("snapshot from %s has degenerate dimensions %dx%d",
			svc.camera.Name, src.Bounds().Dx(), src.Bounds().Dy())
	}

	// RGBA destination forces 3-channel color on encode; JPEG has no alpha.
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	quality := startQuality
	var buf bytes.Buffer
	for {
		buf.Reset()
		if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
			return "", fmt.Errorf("encoding snapshot from %s: %w", svc.camera.Name, err)
		}

		if buf.Len() <= maxKB*1024 || quality <= minQuality {
			break
		}

		quality -= qualityStep
		if quality < minQuality {
			quality = minQuality
		}
	}

	lgr.Logger.Debug(
		"snapshot transcoded",
		slog.String("camera", svc.camera.Name),
		slog.Int("quality", quality),
		slog.Int("kb", buf.Len()/1024),
	)

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// fitWithin computes the largest dimensions that fit the target canvas while
// preserving the source aspect ratio.
func fitWithin(srcWidth, srcHeight int) (int, int) {
	if srcWidth <= 0 || srcHeight <= 0 {
		return 0, 0
	}

	imgRatio := float64(srcWidth) / float64(srcHeight)
	screenRatio := float64(targetWidth) / float64(targetHeight)

	if imgRatio > screenRatio {
		return targetWidth, int(float64(targetWidth) / imgRatio)
	}
	return int(float64(targetHeight) * imgRatio), targetHeight
}
