package analyzer

// QualityWeights combines the four sub-scores into the overall score.
// The weights sum to 1.
type QualityWeights struct {
	Freshness float64
	Color     float64
	Texture   float64
	Size      float64
}

// Sum returns the total weight
func (w QualityWeights) Sum() float64 {
	return w.Freshness + w.Color + w.Texture + w.Size
}

// DefaultQualityWeights favors the visual freshness and color cues that
// inspectors weigh most heavily.
var DefaultQualityWeights = QualityWeights{
	Freshness: 0.30,
	Color:     0.30,
	Texture:   0.20,
	Size:      0.20,
}

// Options configures the analyzers
type Options struct {
	// ObjectThreshold discards object detections scoring below it
	ObjectThreshold float64
	// DiseaseThreshold keeps disease detections scoring strictly above it
	DiseaseThreshold float64
	Weights          QualityWeights
	// DefectPenalty is subtracted from the overall score per defect
	DefectPenalty float64
}

// DefaultOptions returns the production analyzer configuration
func DefaultOptions() Options {
	return Options{
		ObjectThreshold:  0.25,
		DiseaseThreshold: 0.5,
		Weights:          DefaultQualityWeights,
		DefectPenalty:    0.05,
	}
}

// WithThresholds returns options with custom detection thresholds
func (opts Options) WithThresholds(object, disease float64) Options {
	opts.ObjectThreshold = object
	opts.DiseaseThreshold = disease
	return opts
}

// WithWeights returns options with custom quality weights. Weights that
// do not sum to a positive value are ignored.
func (opts Options) WithWeights(w QualityWeights) Options {
	if w.Sum() > 0 {
		opts.Weights = w
	}
	return opts
}

// WithDefectPenalty returns options with a custom per-defect penalty
func (opts Options) WithDefectPenalty(p float64) Options {
	if p >= 0 {
		opts.DefectPenalty = p
	}
	return opts
}
