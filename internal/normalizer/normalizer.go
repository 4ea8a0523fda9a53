package normalizer

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"go-herbal-inspector/pkg/models"
)

// MaxDimension is the largest side a normalized image may have
const MaxDimension = 1024

// ErrInvalidImage is returned for bytes that cannot be decoded as an image
var ErrInvalidImage = errors.New("invalid image")

// Normalized is a decoded, 3-channel, size-bounded image
type Normalized struct {
	Image      *image.NRGBA
	Properties models.ImageProperties
}

// Normalize decodes raw bytes into an opaque RGB image no larger than
// MaxDimension on its longer side.
func Normalize(data []byte) (*Normalized, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: zero-sized image", ErrInvalidImage)
	}

	props := models.ImageProperties{
		OriginalWidth:   b.Dx(),
		OriginalHeight:  b.Dy(),
		Format:          format,
		Channels:        3,
		HasTransparency: hasTransparency(src),
	}

	rgb := toRGB(src)
	if w, h, ok := targetSize(b.Dx(), b.Dy()); ok {
		rgb = imaging.Resize(rgb, w, h, imaging.Box)
		props.Resized = true
	}

	props.Width = rgb.Bounds().Dx()
	props.Height = rgb.Bounds().Dy()

	return &Normalized{Image: rgb, Properties: props}, nil
}

// DecodeBase64 decodes a base64 image string, accepting an optional
// data URI prefix such as "data:image/png;base64,".
func DecodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		idx := strings.Index(s, ",")
		if idx < 0 {
			return nil, fmt.Errorf("%w: malformed data URI", ErrInvalidImage)
		}
		s = s[idx+1:]
	}
	if s == "" {
		return nil, fmt.Errorf("%w: empty base64 payload", ErrInvalidImage)
	}

	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if data, err := enc.DecodeString(s); err == nil {
			return data, nil
		}
	}
	return nil, fmt.Errorf("%w: payload is not valid base64", ErrInvalidImage)
}

// targetSize returns the downscaled size when the image exceeds MaxDimension
func targetSize(w, h int) (int, int, bool) {
	longest := w
	if h > longest {
		longest = h
	}
	if longest <= MaxDimension {
		return w, h, false
	}

	scale := float64(MaxDimension) / float64(longest)
	if w >= h {
		return MaxDimension, maxInt(1, int(math.Round(float64(h)*scale))), true
	}
	return maxInt(1, int(math.Round(float64(w)*scale))), MaxDimension, true
}

// toRGB drops alpha and expands grayscale so every pixel carries three
// color channels with an opaque alpha.
func toRGB(src image.Image) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			i := dst.PixOffset(x-b.Min.X, y-b.Min.Y)
			dst.Pix[i+0] = c.R
			dst.Pix[i+1] = c.G
			dst.Pix[i+2] = c.B
			dst.Pix[i+3] = 0xff
		}
	}
	return dst
}

func hasTransparency(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	return false
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
