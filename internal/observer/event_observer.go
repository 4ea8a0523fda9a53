package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// AnalysisEvent represents an analysis event
type AnalysisEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	AnalysisID     string                 `json:"analysis_id,omitempty"`
	Source         string                 `json:"source"`
	HerbType       string                 `json:"herb_type,omitempty"`
	Grade          string                 `json:"grade,omitempty"`
	ProcessingTime time.Duration          `json:"processing_time"`
	Success        bool                   `json:"success"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of analysis event
type EventType string

const (
	// AnalysisStarted when an image enters the pipeline
	AnalysisStarted EventType = "analysis_started"
	// AnalysisCompleted when the pipeline reaches complete
	AnalysisCompleted EventType = "analysis_completed"
	// AnalysisFailed when the pipeline ends in failed
	AnalysisFailed EventType = "analysis_failed"
	// StageDegraded when a stage failed and a default was substituted
	StageDegraded EventType = "stage_degraded"
	// ModelsReloaded when a new model snapshot was published
	ModelsReloaded EventType = "models_reloaded"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event AnalysisEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event AnalysisEvent)
}

// LoggingObserver logs analysis events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles analysis events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	fields := logrus.Fields{
		"event_type":         event.EventType,
		"source":             event.Source,
		"processing_time_ms": event.ProcessingTime.Milliseconds(),
		"success":            event.Success,
	}
	if event.AnalysisID != "" {
		fields["analysis_id"] = event.AnalysisID
	}
	if event.HerbType != "" {
		fields["herb_type"] = event.HerbType
	}
	if event.Grade != "" {
		fields["grade"] = event.Grade
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case AnalysisStarted:
		entry.Debug("Herb analysis started")
	case AnalysisCompleted:
		entry.Info("Herb analysis completed")
	case AnalysisFailed:
		entry.Error("Herb analysis failed")
	case StageDegraded:
		entry.Warn("Analysis stage degraded")
	case ModelsReloaded:
		entry.Info("Models reloaded")
	default:
		entry.Info("Analysis event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver collects metrics from analysis events
type MetricsObserver struct {
	mu                  sync.RWMutex
	totalAnalyses       int64
	successfulAnalyses  int64
	failedAnalyses      int64
	degradedStages      map[string]int64
	gradeCounts         map[string]int64
	totalProcessingTime time.Duration
	reloads             int64
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{
		degradedStages: make(map[string]int64),
		gradeCounts:    make(map[string]int64),
	}
}

// OnEvent handles analysis events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case AnalysisStarted:
		o.totalAnalyses++
	case AnalysisCompleted:
		o.successfulAnalyses++
		o.totalProcessingTime += event.ProcessingTime
		if event.Grade != "" {
			o.gradeCounts[event.Grade]++
		}
	case AnalysisFailed:
		o.failedAnalyses++
	case StageDegraded:
		if stage, ok := event.Metadata["stage"].(string); ok {
			o.degradedStages[stage]++
		}
	case ModelsReloaded:
		o.reloads++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() map[string]interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()

	avgProcessingTime := time.Duration(0)
	if o.successfulAnalyses > 0 {
		avgProcessingTime = o.totalProcessingTime / time.Duration(o.successfulAnalyses)
	}

	degraded := make(map[string]int64, len(o.degradedStages))
	for k, v := range o.degradedStages {
		degraded[k] = v
	}
	grades := make(map[string]int64, len(o.gradeCounts))
	for k, v := range o.gradeCounts {
		grades[k] = v
	}

	return map[string]interface{}{
		"total_analyses":          o.totalAnalyses,
		"successful_analyses":     o.successfulAnalyses,
		"failed_analyses":         o.failedAnalyses,
		"degraded_stages":         degraded,
		"grades":                  grades,
		"model_reloads":           o.reloads,
		"total_processing_time_s": o.totalProcessingTime.Seconds(),
		"avg_processing_time_s":   avgProcessingTime.Seconds(),
	}
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers notifies all observers of an event. Observers run
// concurrently and outlive the request, so they receive a detached context.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event AnalysisEvent) {
	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	ctx = context.WithoutCancel(ctx)

	for _, observer := range observers {
		go func(obs Observer) {
			defer func() {
				if r := recover(); r != nil {
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
}
