package inference

import (
	"context"
	"image"
	"image/color"
	"math"
	"testing"
)

func TestSoftmax(t *testing.T) {
	probs := Softmax([]float32{1, 2, 3})

	var sum float64
	for _, p := range probs {
		sum += p
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("Expected probabilities to sum to 1, got %f", sum)
	}

	idx, val := ArgMax(probs)
	if idx != 2 {
		t.Errorf("Expected argmax 2, got %d", idx)
	}
	if math.Abs(val-0.6652409557748219) > 1e-9 {
		t.Errorf("Unexpected top probability %f", val)
	}

	if Softmax(nil) != nil {
		t.Error("Expected nil for empty scores")
	}
}

func TestSoftmaxLargeLogitsStable(t *testing.T) {
	probs := Softmax([]float32{1000, 1000})
	if math.IsNaN(probs[0]) || math.Abs(probs[0]-0.5) > 1e-9 {
		t.Errorf("Expected 0.5 for equal large logits, got %f", probs[0])
	}
}

// plainModel is a ClassificationModel without ProbabilityOutput
type plainModel struct{}

func (plainModel) Labels() []string {
	return []string{"a", "b"}
}

func (plainModel) Predict(context.Context, image.Image) ([]float32, error) {
	return nil, nil
}

func (plainModel) Close() error {
	return nil
}

// flaggedModel reports its output mode through ProbabilityOutput
type flaggedModel struct {
	plainModel
	probs bool
}

func (m flaggedModel) OutputsProbabilities() bool {
	return m.probs
}

func TestProbabilities(t *testing.T) {
	scores := []float32{0.7, 0.3}

	tests := []struct {
		name  string
		model ClassificationModel
		want  []float64
	}{
		{name: "model without flag gets softmax", model: plainModel{}, want: Softmax(scores)},
		{name: "logits are normalized", model: flaggedModel{probs: false}, want: Softmax(scores)},
		{name: "probabilities pass through", model: flaggedModel{probs: true}, want: []float64{0.7, 0.3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Probabilities(tt.model, scores)
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %d values, got %d", len(tt.want), len(got))
			}
			for i := range got {
				if math.Abs(got[i]-tt.want[i]) > 1e-6 {
					t.Errorf("Expected %f at %d, got %f", tt.want[i], i, got[i])
				}
			}
		})
	}
}

func TestProbabilitiesClampsOutOfRange(t *testing.T) {
	got := Probabilities(flaggedModel{probs: true}, []float32{1.2, -0.1})
	if got[0] != 1 || got[1] != 0 {
		t.Errorf("Expected [1 0], got %v", got)
	}
	if Probabilities(flaggedModel{probs: true}, nil) != nil {
		t.Error("Expected nil for empty scores")
	}
}

func TestArgMaxEmpty(t *testing.T) {
	if idx, _ := ArgMax(nil); idx != -1 {
		t.Errorf("Expected -1 for empty input, got %d", idx)
	}
}

func TestFillCHW(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, G: 0, B: 51, A: 255})
		}
	}

	dst := make([]float32, 3*4*4)
	FillCHW(img, 4, 4, UnitMean, UnitStd, dst)

	if math.Abs(float64(dst[0])-1.0) > 1e-3 {
		t.Errorf("Expected red plane ~1.0, got %f", dst[0])
	}
	if math.Abs(float64(dst[16])) > 1e-3 {
		t.Errorf("Expected green plane ~0, got %f", dst[16])
	}
	if math.Abs(float64(dst[32])-0.2) > 1e-3 {
		t.Errorf("Expected blue plane ~0.2, got %f", dst[32])
	}
}

func TestParseYOLO(t *testing.T) {
	const anchors = 3
	labels := []string{"leaf", "stem"}
	// layout: cx, cy, w, h, class0, class1 planes
	output := []float32{
		10, 50, 90, // cx
		10, 50, 90, // cy
		4, 20, 10, // w
		4, 20, 10, // h
		0.9, 0.1, 0.2, // leaf
		0.05, 0.8, 0.1, // stem
	}

	dets := ParseYOLO(output, labels, anchors, 0.25, 2, 2)
	if len(dets) != 2 {
		t.Fatalf("Expected 2 detections above threshold, got %d", len(dets))
	}

	first := dets[0]
	if first.Label != "leaf" || math.Abs(first.Score-0.9) > 1e-6 {
		t.Errorf("Unexpected first detection %+v", first)
	}
	if first.Box.X != 16 || first.Box.Y != 16 || first.Box.W != 8 || first.Box.H != 8 {
		t.Errorf("Expected rescaled box {16 16 8 8}, got %+v", first.Box)
	}
	if dets[1].Label != "stem" {
		t.Errorf("Expected second detection to be stem, got %s", dets[1].Label)
	}
}

func TestParseYOLOShortOutput(t *testing.T) {
	if dets := ParseYOLO([]float32{1, 2}, []string{"a"}, 10, 0.1, 1, 1); dets != nil {
		t.Errorf("Expected nil for truncated output, got %v", dets)
	}
}

func TestNMS(t *testing.T) {
	dets := []Detection{
		{ClassID: 0, Score: 0.6, Box: Box{X: 1, Y: 1, W: 10, H: 10}},
		{ClassID: 0, Score: 0.9, Box: Box{X: 0, Y: 0, W: 10, H: 10}},
		{ClassID: 1, Score: 0.7, Box: Box{X: 0, Y: 0, W: 10, H: 10}},
		{ClassID: 0, Score: 0.5, Box: Box{X: 50, Y: 50, W: 10, H: 10}},
	}

	kept := NMS(dets, 0.45)
	if len(kept) != 3 {
		t.Fatalf("Expected 3 detections after NMS, got %d", len(kept))
	}
	if kept[0].Score != 0.9 || kept[1].Score != 0.7 || kept[2].Score != 0.5 {
		t.Errorf("Expected descending scores 0.9, 0.7, 0.5; got %v, %v, %v", kept[0].Score, kept[1].Score, kept[2].Score)
	}
}

func TestIoU(t *testing.T) {
	a := Box{X: 0, Y: 0, W: 10, H: 10}
	if got := IoU(a, a); math.Abs(got-1) > 1e-9 {
		t.Errorf("Expected IoU 1 for identical boxes, got %f", got)
	}
	if got := IoU(a, Box{X: 20, Y: 20, W: 5, H: 5}); got != 0 {
		t.Errorf("Expected IoU 0 for disjoint boxes, got %f", got)
	}
	if got := IoU(a, Box{X: 5, Y: 0, W: 10, H: 10}); math.Abs(got-1.0/3.0) > 1e-9 {
		t.Errorf("Expected IoU 1/3, got %f", got)
	}
}
