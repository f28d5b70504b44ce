package process

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"

	"github.com/disintegration/gift"
)

const (
	MaxImageWidth  = 4000
	MaxImageHeight = 4000
	MaxLongSide    = 1080
	JPEGQuality    = 90
)

// NormalizeJPEG decodes a captured photo, rejects oversized frames,
// downscales the longest side to 1080px and re-encodes as JPEG. Keeps
// storage and inference payloads predictable regardless of the camera.
func NormalizeJPEG(r io.Reader) ([]byte, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %v", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > MaxImageWidth || bounds.Dy() > MaxImageHeight {
		return nil, fmt.Errorf("image too large (max %dx%d)", MaxImageWidth, MaxImageHeight)
	}

	if bounds.Dx() > MaxLongSide || bounds.Dy() > MaxLongSide {
		var g *gift.GIFT
		if bounds.Dx() >= bounds.Dy() {
			g = gift.New(gift.Resize(MaxLongSide, 0, gift.LanczosResampling))
		} else {
			g = gift.New(gift.Resize(0, MaxLongSide, gift.LanczosResampling))
		}

		dst := image.NewRGBA(g.Bounds(bounds))
		g.Draw(dst, img)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %v", err)
	}

	return buf.Bytes(), nil
}
