package modelrepo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go-herbal-inspector/internal/inference"
	"go-herbal-inspector/internal/logger"
	"go-herbal-inspector/pkg/models"

	"github.com/sirupsen/logrus"
)

// ErrModelUnavailable is returned when a requested model is not loaded
var ErrModelUnavailable = errors.New("model unavailable")

// Snapshot is an immutable set of loaded model handles. It is shared
// read-only by all requests and replaced wholesale on reload.
type Snapshot struct {
	HerbClassifier     inference.ClassificationModel
	ObjectDetector     inference.DetectionModel
	DiseaseDetectors   map[string]inference.DetectionModel
	DocumentClassifier inference.ClassificationModel
	Statuses           []models.ModelStatus
	LoadedAt           time.Time
}

// DemoMode reports whether the herb classifier is missing
func (s *Snapshot) DemoMode() bool {
	return s.HerbClassifier == nil
}

// Versions returns slot -> version for every loaded model
func (s *Snapshot) Versions() map[string]string {
	versions := make(map[string]string, len(s.Statuses))
	for _, st := range s.Statuses {
		if st.Loaded {
			versions[st.Name] = st.Version
		}
	}
	return versions
}

// Availability returns slot -> loaded
func (s *Snapshot) Availability() map[string]bool {
	out := make(map[string]bool, len(s.Statuses))
	for _, st := range s.Statuses {
		out[st.Name] = st.Loaded
	}
	return out
}

// Close releases every model in the snapshot
func (s *Snapshot) Close() {
	closeModel := func(name string, c interface{ Close() error }) {
		if err := c.Close(); err != nil {
			logger.WithError(err).WithField("model", name).Warn("Failed to close model")
		}
	}
	if s.HerbClassifier != nil {
		closeModel(SlotHerbClassifier, s.HerbClassifier)
	}
	if s.ObjectDetector != nil {
		closeModel(SlotObjectDetection, s.ObjectDetector)
	}
	if s.DocumentClassifier != nil {
		closeModel(SlotDocumentClassifier, s.DocumentClassifier)
	}
	for herb, d := range s.DiseaseDetectors {
		closeModel(DiseaseSlot(herb), d)
	}
}

// SortStatuses orders statuses by slot name for stable output
func SortStatuses(statuses []models.ModelStatus) {
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
}

// Loader builds a fresh snapshot. It may return a partial snapshot
// together with an error describing the models that failed.
type Loader interface {
	Load(ctx context.Context) (*Snapshot, error)
}

// Repository publishes the current snapshot to concurrent readers
type Repository struct {
	loader      Loader
	retireGrace time.Duration
	current     atomic.Pointer[Snapshot]
	reloadMu    sync.Mutex
}

// NewRepository creates a repository with an empty snapshot. Call Load to
// populate it.
func NewRepository(loader Loader, retireGrace time.Duration) *Repository {
	r := &Repository{loader: loader, retireGrace: retireGrace}
	r.current.Store(&Snapshot{LoadedAt: time.Now().UTC()})
	return r
}

// Load performs the startup load. A failure leaves the repository usable
// in demo mode; the error is returned for logging only.
func (r *Repository) Load(ctx context.Context) error {
	_, err := r.Reload(ctx)
	return err
}

// Reload builds a new snapshot and swaps it in. When the loader yields no
// snapshot at all, the current one is kept.
func (r *Repository) Reload(ctx context.Context) (*Snapshot, error) {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	snap, err := r.loader.Load(ctx)
	if snap == nil {
		if err == nil {
			err = errors.New("loader returned no snapshot")
		}
		return r.current.Load(), fmt.Errorf("reload models: %w", err)
	}

	if snap.DiseaseDetectors == nil {
		snap.DiseaseDetectors = map[string]inference.DetectionModel{}
	}
	if snap.LoadedAt.IsZero() {
		snap.LoadedAt = time.Now().UTC()
	}
	SortStatuses(snap.Statuses)

	if old := r.current.Swap(snap); old != snap {
		r.retire(old)
	}

	logger.WithFields(logrus.Fields{
		"demo_mode": snap.DemoMode(),
		"versions":  snap.Versions(),
	}).Info("Model snapshot published")

	return snap, err
}

// retire closes a replaced snapshot after in-flight requests had time to finish
func (r *Repository) retire(old *Snapshot) {
	if old == nil {
		return
	}
	if r.retireGrace <= 0 {
		old.Close()
		return
	}
	time.AfterFunc(r.retireGrace, old.Close)
}

// Snapshot returns the current snapshot; never nil
func (r *Repository) Snapshot() *Snapshot {
	return r.current.Load()
}

func (r *Repository) HerbClassifier() (inference.ClassificationModel, error) {
	if m := r.Snapshot().HerbClassifier; m != nil {
		return m, nil
	}
	return nil, fmt.Errorf("%s: %w", SlotHerbClassifier, ErrModelUnavailable)
}

func (r *Repository) ObjectDetector() (inference.DetectionModel, error) {
	if m := r.Snapshot().ObjectDetector; m != nil {
		return m, nil
	}
	return nil, fmt.Errorf("%s: %w", SlotObjectDetection, ErrModelUnavailable)
}

// DiseaseDetector returns the disease model for a herb. A missing model is
// an expected condition, reported through the boolean.
func (r *Repository) DiseaseDetector(herbType string) (inference.DetectionModel, bool) {
	m, ok := r.Snapshot().DiseaseDetectors[herbType]
	return m, ok && m != nil
}

func (r *Repository) DocumentClassifier() (inference.ClassificationModel, error) {
	if m := r.Snapshot().DocumentClassifier; m != nil {
		return m, nil
	}
	return nil, fmt.Errorf("%s: %w", SlotDocumentClassifier, ErrModelUnavailable)
}

// Close releases the current snapshot
func (r *Repository) Close() {
	if old := r.current.Swap(&Snapshot{}); old != nil {
		old.Close()
	}
}
