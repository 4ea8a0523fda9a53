package analyzer

import "go-herbal-inspector/pkg/models"

// Grade boundaries on the overall score, inclusive lower bounds
const (
	GradeAThreshold = 0.85
	GradeBThreshold = 0.70
	GradeCThreshold = 0.50
)

// GradeFor maps an overall score to its letter grade
func GradeFor(overall float64) models.Grade {
	switch {
	case overall >= GradeAThreshold:
		return models.GradeA
	case overall >= GradeBThreshold:
		return models.GradeB
	case overall >= GradeCThreshold:
		return models.GradeC
	default:
		return models.GradeD
	}
}
