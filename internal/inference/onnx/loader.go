package onnx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go-herbal-inspector/internal/inference"
	"go-herbal-inspector/internal/logger"
	"go-herbal-inspector/internal/modelrepo"
	"go-herbal-inspector/pkg/models"

	"github.com/sirupsen/logrus"
)

// Loader builds model snapshots from a model directory
type Loader struct {
	dir      string
	libPath  string
	poolSize int
	// slots restricts which models are loaded; empty loads everything
	slots map[string]bool
}

// NewLoader creates a loader. When slots is non-empty only those model
// slots (and disease models, if SlotDisease is listed) are loaded.
func NewLoader(dir, libPath string, poolSize int, slots ...string) *Loader {
	l := &Loader{dir: dir, libPath: libPath, poolSize: poolSize}
	if len(slots) > 0 {
		l.slots = make(map[string]bool, len(slots))
		for _, s := range slots {
			l.slots[s] = true
		}
	}
	return l
}

// SlotDisease selects all disease models in NewLoader
const SlotDisease = "disease"

func (l *Loader) wants(slot string) bool {
	return l.slots == nil || l.slots[slot]
}

// Load implements modelrepo.Loader. Individual model failures are recorded
// in the snapshot statuses and joined into the returned error.
func (l *Loader) Load(ctx context.Context) (*modelrepo.Snapshot, error) {
	manifest, err := modelrepo.LoadManifest(l.dir)
	if err != nil {
		return nil, err
	}

	snap := &modelrepo.Snapshot{
		DiseaseDetectors: map[string]inference.DetectionModel{},
		LoadedAt:         time.Now().UTC(),
	}

	if err := Initialize(l.libPath); err != nil {
		for _, slot := range l.requestedSlots(manifest) {
			snap.Statuses = append(snap.Statuses, models.ModelStatus{Name: slot, LoadError: err.Error()})
		}
		return snap, err
	}

	var errs []error
	record := func(slot string, spec *modelrepo.ModelSpec, loadErr error) {
		status := models.ModelStatus{Name: slot, Version: spec.Version, Path: filepath.Join(l.dir, spec.File)}
		if loadErr != nil {
			status.LoadError = loadErr.Error()
			errs = append(errs, fmt.Errorf("%s: %w", slot, loadErr))
			logger.WithError(loadErr).WithField("model", slot).Warn("Model not loaded")
		} else {
			status.Loaded = true
			logger.WithFields(logrus.Fields{"model": slot, "version": spec.Version}).Info("Model loaded")
		}
		snap.Statuses = append(snap.Statuses, status)
	}

	if l.wants(modelrepo.SlotHerbClassifier) {
		c, err := l.classifier(manifest.HerbClassifier)
		if err == nil {
			snap.HerbClassifier = c
		}
		record(modelrepo.SlotHerbClassifier, manifest.HerbClassifier, err)
	}
	if l.wants(modelrepo.SlotObjectDetection) {
		d, err := l.detector(manifest.ObjectDetection)
		if err == nil {
			snap.ObjectDetector = d
		}
		record(modelrepo.SlotObjectDetection, manifest.ObjectDetection, err)
	}
	if l.wants(modelrepo.SlotDocumentClassifier) {
		c, err := l.classifier(manifest.DocumentClassifier)
		if err == nil {
			snap.DocumentClassifier = c
		}
		record(modelrepo.SlotDocumentClassifier, manifest.DocumentClassifier, err)
	}
	if l.wants(SlotDisease) {
		for _, herb := range sortedKeys(manifest.Disease) {
			if ctx.Err() != nil {
				errs = append(errs, ctx.Err())
				break
			}
			spec := manifest.Disease[herb]
			d, err := l.detector(&spec)
			if err == nil {
				snap.DiseaseDetectors[herb] = d
			}
			record(modelrepo.DiseaseSlot(herb), &spec, err)
		}
	}

	return snap, errors.Join(errs...)
}

func (l *Loader) requestedSlots(m modelrepo.Manifest) []string {
	var slots []string
	for _, s := range []string{modelrepo.SlotHerbClassifier, modelrepo.SlotObjectDetection, modelrepo.SlotDocumentClassifier} {
		if l.wants(s) {
			slots = append(slots, s)
		}
	}
	if l.wants(SlotDisease) {
		for _, herb := range sortedKeys(m.Disease) {
			slots = append(slots, modelrepo.DiseaseSlot(herb))
		}
	}
	return slots
}

func (l *Loader) modelPath(spec *modelrepo.ModelSpec) (string, error) {
	path := filepath.Join(l.dir, spec.File)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("model file: %w", err)
	}
	return path, nil
}

func (l *Loader) classifier(spec *modelrepo.ModelSpec) (*Classifier, error) {
	if err := spec.Validate(false); err != nil {
		return nil, err
	}
	path, err := l.modelPath(spec)
	if err != nil {
		return nil, err
	}
	return NewClassifier(path, spec.InputName, spec.OutputName, spec.Labels, spec.InputSize, l.poolSize, spec.OutputsProbabilities)
}

func (l *Loader) detector(spec *modelrepo.ModelSpec) (*Detector, error) {
	if err := spec.Validate(true); err != nil {
		return nil, err
	}
	path, err := l.modelPath(spec)
	if err != nil {
		return nil, err
	}
	return NewDetector(path, spec.InputName, spec.OutputName, spec.Labels, spec.InputSize, spec.Anchors, l.poolSize)
}

func sortedKeys(m map[string]modelrepo.ModelSpec) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
