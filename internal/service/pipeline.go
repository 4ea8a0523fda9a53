package service

import (
	"fmt"
	"time"

	apperrors "go-herbal-inspector/internal/errors"
	"go-herbal-inspector/pkg/models"
)

// Stage is a state of the analysis pipeline
type Stage string

const (
	StageReceived      Stage = "received"
	StageNormalized    Stage = "normalized"
	StageClassified    Stage = "classified"
	StageQualityScored Stage = "quality_scored"
	StageDetected      Stage = "detected"
	StageRecommended   Stage = "recommended"
	StageSigned        Stage = "signed"
	StageComplete      Stage = "complete"
	StageFailed        Stage = "failed"
)

var transitions = map[Stage]Stage{
	StageReceived:      StageNormalized,
	StageNormalized:    StageClassified,
	StageClassified:    StageQualityScored,
	StageQualityScored: StageDetected,
	StageDetected:      StageRecommended,
	StageRecommended:   StageSigned,
	StageSigned:        StageComplete,
}

// pipeline tracks one request through the analysis stages. After the
// first illegal transition every further call is ignored and Err
// reports the violation.
type pipeline struct {
	stage    Stage
	started  time.Time
	lastMark time.Time
	timings  []models.StageTiming
	degraded []string
	err      error
	clock    func() time.Time
}

func newPipeline(clock func() time.Time) *pipeline {
	now := clock()
	return &pipeline{
		stage:    StageReceived,
		started:  now,
		lastMark: now,
		timings:  []models.StageTiming{},
		clock:    clock,
	}
}

// advance moves to next, recording the time spent since the previous mark
func (p *pipeline) advance(next Stage, degraded bool) {
	if p.err != nil {
		return
	}
	if next != StageFailed && transitions[p.stage] != next {
		p.err = apperrors.NewInternalError(
			"analysis pipeline error",
			fmt.Errorf("illegal transition %s -> %s", p.stage, next),
		)
		return
	}
	if p.stage == StageComplete || p.stage == StageFailed {
		p.err = apperrors.NewInternalError(
			"analysis pipeline error",
			fmt.Errorf("transition from terminal stage %s", p.stage),
		)
		return
	}

	now := p.clock()
	if next != StageFailed && next != StageComplete {
		p.timings = append(p.timings, models.StageTiming{
			Stage:      string(next),
			DurationMS: float64(now.Sub(p.lastMark).Microseconds()) / 1000,
			Degraded:   degraded,
		})
	}
	if degraded {
		p.degraded = append(p.degraded, string(next))
	}
	p.lastMark = now
	p.stage = next
}

func (p *pipeline) fail() {
	p.advance(StageFailed, false)
}

// elapsed is the time from the first stage start to the last recorded mark
func (p *pipeline) elapsed() float64 {
	return p.lastMark.Sub(p.started).Seconds()
}

func (p *pipeline) Stage() Stage { return p.stage }

func (p *pipeline) Err() error { return p.err }

// Timings returns a copy of the recorded stage timings
func (p *pipeline) Timings() []models.StageTiming {
	return append([]models.StageTiming(nil), p.timings...)
}

// Degraded returns a copy of the degraded stage names
func (p *pipeline) Degraded() []string {
	return append([]string(nil), p.degraded...)
}
