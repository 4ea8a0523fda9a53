package modelrepo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go-herbal-inspector/pkg/models"
)

// ManifestFile is the optional model manifest inside the model directory
const ManifestFile = "models.json"

// Model slot names reported by /models and used as version keys
const (
	SlotHerbClassifier     = "herb_classifier"
	SlotObjectDetection    = "object_detection"
	SlotDocumentClassifier = "document_classifier"
	slotDiseasePrefix      = "disease_"
)

// DiseaseSlot returns the slot name of a herb's disease model
func DiseaseSlot(herbType string) string {
	return slotDiseasePrefix + herbType
}

// ModelSpec describes one model file and how to feed it
type ModelSpec struct {
	File       string   `json:"file"`
	Version    string   `json:"version"`
	Labels     []string `json:"labels"`
	InputSize  int      `json:"input_size"`
	InputName  string   `json:"input_name"`
	OutputName string   `json:"output_name"`
	// Anchors is the YOLO candidate count; only used by detectors
	Anchors int `json:"anchors,omitempty"`
	// OutputsProbabilities marks classifiers whose graph already ends in a
	// softmax. Without it the output is treated as logits.
	OutputsProbabilities bool `json:"outputs_probabilities,omitempty"`
}

// Manifest lists every model the repository should try to load
type Manifest struct {
	HerbClassifier     *ModelSpec           `json:"herb_classifier,omitempty"`
	ObjectDetection    *ModelSpec           `json:"object_detection,omitempty"`
	DocumentClassifier *ModelSpec           `json:"document_classifier,omitempty"`
	Disease            map[string]ModelSpec `json:"disease,omitempty"`
}

// DefaultObjectLabels is used when no manifest overrides the detector labels
var DefaultObjectLabels = []string{"herb_sample", "leaf", "flower", "root", "rhizome", "foreign_matter"}

// DefaultManifest uses the conventional file names of the model directory
func DefaultManifest() Manifest {
	return Manifest{
		HerbClassifier: &ModelSpec{
			File:       "herb_classifier.onnx",
			Version:    "unversioned",
			Labels:     append([]string(nil), models.SupportedHerbs...),
			InputSize:  224,
			InputName:  "input",
			OutputName: "output",
		},
		ObjectDetection: &ModelSpec{
			File:       "object_detection.onnx",
			Version:    "unversioned",
			Labels:     append([]string(nil), DefaultObjectLabels...),
			InputSize:  640,
			InputName:  "images",
			OutputName: "output0",
			Anchors:    8400,
		},
		DocumentClassifier: &ModelSpec{
			File:       "document_classifier.onnx",
			Version:    "unversioned",
			Labels:     append([]string(nil), models.DocumentTypes...),
			InputSize:  224,
			InputName:  "input",
			OutputName: "output",
		},
	}
}

// LoadManifest reads dir/models.json, falling back to DefaultManifest when
// the file does not exist. Missing fields are filled from the defaults.
func LoadManifest(dir string) (Manifest, error) {
	def := DefaultManifest()

	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if errors.Is(err, fs.ErrNotExist) {
		return def, nil
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest: %w", err)
	}

	m.HerbClassifier = mergeSpec(m.HerbClassifier, def.HerbClassifier)
	m.ObjectDetection = mergeSpec(m.ObjectDetection, def.ObjectDetection)
	m.DocumentClassifier = mergeSpec(m.DocumentClassifier, def.DocumentClassifier)
	for herb, spec := range m.Disease {
		merged := mergeSpec(&spec, &ModelSpec{
			File:       DiseaseSlot(herb) + ".onnx",
			Version:    "unversioned",
			InputSize:  640,
			InputName:  "images",
			OutputName: "output0",
			Anchors:    8400,
		})
		m.Disease[herb] = *merged
	}
	return m, nil
}

// Validate reports specs that cannot be turned into a session
func (s ModelSpec) Validate(detector bool) error {
	switch {
	case s.File == "":
		return errors.New("model file is required")
	case len(s.Labels) == 0:
		return errors.New("model labels are required")
	case s.InputSize <= 0:
		return fmt.Errorf("invalid input size %d", s.InputSize)
	case detector && s.Anchors <= 0:
		return fmt.Errorf("invalid anchor count %d", s.Anchors)
	}
	return nil
}

func mergeSpec(spec, def *ModelSpec) *ModelSpec {
	if spec == nil {
		cp := *def
		return &cp
	}
	out := *spec
	if out.File == "" {
		out.File = def.File
	}
	if out.Version == "" {
		out.Version = def.Version
	}
	if len(out.Labels) == 0 {
		out.Labels = def.Labels
	}
	if out.InputSize == 0 {
		out.InputSize = def.InputSize
	}
	if out.InputName == "" {
		out.InputName = def.InputName
	}
	if out.OutputName == "" {
		out.OutputName = def.OutputName
	}
	if out.Anchors == 0 {
		out.Anchors = def.Anchors
	}
	return &out
}
