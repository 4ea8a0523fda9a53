package analyzer

import (
	"image"
	"math"
	"runtime"
	"sync"

	"go-herbal-inspector/pkg/models"

	"gonum.org/v1/gonum/stat"
)

// Pixel classification thresholds used by the color statistics
const (
	chromaMinSaturation = 0.10
	chromaMinValue      = 0.10
	darkValue           = 0.20
	brightValue         = 0.95
	brightMaxSaturation = 0.10
	brownHueMin         = 10.0
	brownHueMax         = 40.0
	brownMinSaturation  = 0.30
	brownMaxValue       = 0.60
	foregroundMinSat    = 0.15
	foregroundMinValue  = 0.15
)

// colorStats summarizes the HSV distribution of an image
type colorStats struct {
	meanHue     float64 // circular mean, degrees
	hueSpread   float64 // 1 - mean resultant length, in [0,1]
	meanSat     float64
	stdSat      float64
	meanVal     float64
	stdVal      float64
	darkRatio   float64
	brightRatio float64
	brownRatio  float64
	foreground  float64
	pixels      int
}

// metricsCalculator computes image statistics with Gonum
type metricsCalculator struct {
	slicePool sync.Pool
}

// NewMetricsCalculator creates a new metrics calculator using Gonum
func NewMetricsCalculator() MetricsCalculator {
	return &metricsCalculator{
		slicePool: sync.Pool{
			New: func() interface{} {
				return make([]float64, 0, 1024)
			},
		},
	}
}

// CalculateColorStats converts every pixel to HSV in parallel horizontal
// strips and aggregates the channels with Gonum.
func (mc *metricsCalculator) CalculateColorStats(img *image.NRGBA) colorStats {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	n := width * height
	if n == 0 {
		return colorStats{hueSpread: 1}
	}

	hues := make([]float64, n)
	weights := make([]float64, n)
	sats := make([]float64, n)
	vals := make([]float64, n)

	type stripCounts struct {
		dark, bright, brown, fg int
	}

	numWorkers := runtime.NumCPU()
	if height < numWorkers {
		numWorkers = height
	}
	if numWorkers <= 0 {
		numWorkers = 1
	}
	rowsPerWorker := (height + numWorkers - 1) / numWorkers // ceil division

	results := make(chan stripCounts, numWorkers)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		startY := i * rowsPerWorker
		endY := startY + rowsPerWorker
		if endY > height {
			endY = height
		}
		if startY >= endY {
			continue
		}

		wg.Add(1)
		go func(startY, endY int) {
			defer wg.Done()
			var c stripCounts

			for y := startY; y < endY; y++ {
				for x := 0; x < width; x++ {
					off := img.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)
					r := float64(img.Pix[off]) / 255.0
					g := float64(img.Pix[off+1]) / 255.0
					b := float64(img.Pix[off+2]) / 255.0

					h, s, v := rgbToHSV(r, g, b)
					idx := y*width + x
					hues[idx] = h * math.Pi / 180
					sats[idx] = s
					vals[idx] = v
					if s >= chromaMinSaturation && v >= chromaMinValue {
						weights[idx] = s
					}

					switch {
					case v < darkValue:
						c.dark++
					case v > brightValue && s < brightMaxSaturation:
						c.bright++
					}
					if h >= brownHueMin && h <= brownHueMax && s >= brownMinSaturation && v <= brownMaxValue && v >= darkValue {
						c.brown++
					}
					if s >= foregroundMinSat && v >= foregroundMinValue {
						c.fg++
					}
				}
			}
			results <- c
		}(startY, endY)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var total stripCounts
	for c := range results {
		total.dark += c.dark
		total.bright += c.bright
		total.brown += c.brown
		total.fg += c.fg
	}

	cs := colorStats{pixels: n}
	cs.meanSat, cs.stdSat = stat.MeanStdDev(sats, nil)
	cs.meanVal, cs.stdVal = stat.MeanStdDev(vals, nil)
	cs.meanHue, cs.hueSpread = circularHueStats(hues, weights)

	fn := float64(n)
	cs.darkRatio = float64(total.dark) / fn
	cs.brightRatio = float64(total.bright) / fn
	cs.brownRatio = float64(total.brown) / fn
	cs.foreground = float64(total.fg) / fn
	if n == 1 {
		cs.stdSat, cs.stdVal = 0, 0
	}
	return cs
}

// circularHueStats returns the weighted circular mean hue in degrees and
// the circular spread. Achromatic images report full spread.
func circularHueStats(radians, weights []float64) (float64, float64) {
	var sumW, sumSin, sumCos float64
	for i, w := range weights {
		if w == 0 {
			continue
		}
		sumW += w
		sumSin += w * math.Sin(radians[i])
		sumCos += w * math.Cos(radians[i])
	}
	if sumW == 0 {
		return 0, 1
	}

	mean := stat.CircularMean(radians, weights) * 180 / math.Pi
	if mean < 0 {
		mean += 360
	}
	resultant := math.Hypot(sumSin, sumCos) / sumW
	return mean, models.Clamp01(1 - resultant)
}

// CalculateLaplacianVariance computes Laplacian variance using Gonum operations
func (mc *metricsCalculator) CalculateLaplacianVariance(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < 3 || height < 3 {
		return 0
	}

	// Get reusable slice from pool
	data := mc.slicePool.Get().([]float64)[:0]
	defer func() { mc.slicePool.Put(data[:0]) }()

	if cap(data) < (width-2)*(height-2) {
		data = make([]float64, 0, (width-2)*(height-2))
	}

	// Laplacian kernel: [0, 1, 0; 1, -4, 1; 0, 1, 0]
	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y++ {
		for x := bounds.Min.X + 1; x < bounds.Max.X-1; x++ {
			center := float64(gray.GrayAt(x, y).Y)
			top := float64(gray.GrayAt(x, y-1).Y)
			bottom := float64(gray.GrayAt(x, y+1).Y)
			left := float64(gray.GrayAt(x-1, y).Y)
			right := float64(gray.GrayAt(x+1, y).Y)

			data = append(data, -4*center+top+bottom+left+right)
		}
	}

	return stat.Variance(data, nil)
}

// SobelGradient returns the horizontal and vertical Sobel responses at
// (x, y); the caller keeps (x, y) at least one pixel away from the border.
func SobelGradient(gray *image.Gray, x, y int) (gx, gy int) {
	p := func(dx, dy int) int { return int(gray.GrayAt(x+dx, y+dy).Y) }

	gx = -p(-1, -1) + p(1, -1) - 2*p(-1, 0) + 2*p(1, 0) - p(-1, 1) + p(1, 1)
	gy = -p(-1, -1) - 2*p(0, -1) - p(1, -1) + p(-1, 1) + 2*p(0, 1) + p(1, 1)
	return gx, gy
}

// SobelMagnitude returns the Sobel gradient magnitude at (x, y)
func SobelMagnitude(gray *image.Gray, x, y int) float64 {
	gx, gy := SobelGradient(gray, x, y)
	return math.Sqrt(float64(gx*gx + gy*gy))
}

// ToGray converts an RGB image to 8-bit luma (ITU-R 601 weights)
func ToGray(img *image.NRGBA) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			off := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			r, g, bl := float64(img.Pix[off]), float64(img.Pix[off+1]), float64(img.Pix[off+2])
			gray.Pix[y*gray.Stride+x] = uint8(math.Round(0.299*r + 0.587*g + 0.114*bl))
		}
	}
	return gray
}

// rgbToHSV converts normalized RGB into hue degrees, saturation and value
func rgbToHSV(r, g, b float64) (h, s, v float64) {
	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	delta := max - min

	v = max

	if max == 0 {
		s = 0
	} else {
		s = delta / max
	}

	if delta == 0 {
		h = 0
	} else if max == r {
		h = 60 * (((g - b) / delta) + 0)
	} else if max == g {
		h = 60 * (((b - r) / delta) + 2)
	} else {
		h = 60 * (((r - g) / delta) + 4)
	}

	if h < 0 {
		h += 360
	}

	return h, s, v
}
