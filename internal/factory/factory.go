package factory

import (
	"fmt"

	"go-herbal-inspector/internal/config"
	"go-herbal-inspector/internal/document"
	"go-herbal-inspector/internal/document/tesseract"
	"go-herbal-inspector/internal/inference/onnx"
	"go-herbal-inspector/internal/modelrepo"
	"go-herbal-inspector/internal/storage"
)

// StorageType represents different upload storage backends
type StorageType string

const (
	// LocalStorage keeps uploads in a directory on disk
	LocalStorage StorageType = "local"
	// AzureStorage keeps uploads in an Azure blob container
	AzureStorage StorageType = "azure"
)

// ServiceRole selects which models a process needs
type ServiceRole string

const (
	// AnalysisRole loads the herb classifier, object and disease detectors
	AnalysisRole ServiceRole = "analysis"
	// DocumentRole loads only the document classifier
	DocumentRole ServiceRole = "document"
)

// StorageFactory creates upload stores
type StorageFactory interface {
	CreateStorage(cfg config.UploadConfig) (storage.UploadStore, error)
}

// ModelFactory creates model loaders and text extractors
type ModelFactory interface {
	CreateLoader(role ServiceRole, dir, libPath string, poolSize int) (modelrepo.Loader, error)
	CreateTextExtractor(enabled bool, languages []string) document.TextExtractor
}

type storageFactory struct{}

// NewStorageFactory creates a new storage factory
func NewStorageFactory() StorageFactory {
	return &storageFactory{}
}

// CreateStorage creates the backend named by cfg.Backend
func (f *storageFactory) CreateStorage(cfg config.UploadConfig) (storage.UploadStore, error) {
	switch StorageType(cfg.Backend) {
	case LocalStorage, "":
		return storage.NewLocalStorage(cfg.Dir)
	case AzureStorage:
		return storage.NewAzureStorage(cfg.AzureAccount, cfg.AzureKey, cfg.AzureContainer)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Backend)
	}
}

type modelFactory struct{}

// NewModelFactory creates a new model factory
func NewModelFactory() ModelFactory {
	return &modelFactory{}
}

func (f *modelFactory) CreateLoader(role ServiceRole, dir, libPath string, poolSize int) (modelrepo.Loader, error) {
	switch role {
	case AnalysisRole:
		return onnx.NewLoader(dir, libPath, poolSize,
			modelrepo.SlotHerbClassifier,
			modelrepo.SlotObjectDetection,
			onnx.SlotDisease,
		), nil
	case DocumentRole:
		return onnx.NewLoader(dir, libPath, poolSize, modelrepo.SlotDocumentClassifier), nil
	default:
		return nil, fmt.Errorf("unsupported service role: %s", role)
	}
}

// CreateTextExtractor returns nil when OCR is disabled
func (f *modelFactory) CreateTextExtractor(enabled bool, languages []string) document.TextExtractor {
	if !enabled {
		return nil
	}
	return tesseract.New(languages)
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	StorageFactory StorageFactory
	ModelFactory   ModelFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory() *ComponentFactory {
	return &ComponentFactory{
		StorageFactory: NewStorageFactory(),
		ModelFactory:   NewModelFactory(),
	}
}
