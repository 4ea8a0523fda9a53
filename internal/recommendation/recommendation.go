// Package recommendation turns an analysis outcome into Thai-language
// advisory messages for growers.
package recommendation

import (
	"strings"

	"go-herbal-inspector/pkg/models"
)

// Rule thresholds
const (
	minOverall    = 0.7
	minFreshness  = 0.6
	minColor      = 0.6
	minHerbScore  = 0.7
	minCompliance = 0.8
)

const (
	msgLowOverall     = "คุณภาพโดยรวมต่ำกว่ามาตรฐาน ควรปรับปรุงกระบวนการผลิต"
	msgLowFreshness   = "ความสดใหม่ไม่เพียงพอ ควรปรับปรุงการเก็บรักษา"
	msgLowColor       = "สีไม่ตรงตามมาตรฐาน ตรวจสอบกระบวนการอบแห้ง"
	msgDefectsPrefix  = "พบข้อบกพร่อง: "
	msgDiseasesPrefix = "พบโรคพืช: "
	msgDiseasesSuffix = " ควรรักษาและป้องกัน"
	msgLowCompliance  = "ควรปรับปรุงให้เป็นไปตามมาตรฐาน GACP"
)

// herbRule is one herb-specific check on a quality sub-score
type herbRule struct {
	score   func(models.QualityAssessment) float64
	message string
}

func texture(q models.QualityAssessment) float64   { return q.Texture }
func color(q models.QualityAssessment) float64     { return q.Color }
func size(q models.QualityAssessment) float64      { return q.Size }
func freshness(q models.QualityAssessment) float64 { return q.Freshness }

var herbRules = map[string][]herbRule{
	models.HerbCannabis: {
		{texture, "ดอกกัญชาควรมีความแน่นเหมาะสม"},
		{color, "สีเขียวควรสม่ำเสมอ ไม่เหลืองหรือน้ำตาล"},
	},
	models.HerbTurmeric: {
		{color, "สีเหลืองของขมิ้นควรสด ไม่จืด"},
		{size, "ขนาดหัวขมิ้นควรสม่ำเสมอ"},
	},
	models.HerbGinger: {
		{texture, "เนื้อขิงควรแกร่ง ไม่อ่อนนิ่ม"},
		{freshness, "ขิงควรสด ไม่เหี่ยวแห้ง"},
	},
}

// Generate evaluates the advisory rules in a fixed order. The output depends
// only on its arguments and is never nil.
func Generate(pred models.HerbPrediction, qa models.QualityAssessment, diseases []string) []string {
	recs := []string{}

	if qa.OverallScore < minOverall {
		recs = append(recs, msgLowOverall)
	}
	if qa.Freshness < minFreshness {
		recs = append(recs, msgLowFreshness)
	}
	if qa.Color < minColor {
		recs = append(recs, msgLowColor)
	}
	if len(qa.Defects) > 0 {
		recs = append(recs, msgDefectsPrefix+strings.Join(qa.Defects, ", "))
	}
	if len(diseases) > 0 {
		recs = append(recs, msgDiseasesPrefix+strings.Join(diseases, ", ")+msgDiseasesSuffix)
	}

	for _, rule := range herbRules[pred.HerbType] {
		if rule.score(qa) < minHerbScore {
			recs = append(recs, rule.message)
		}
	}

	if qa.GACPCompliance < minCompliance {
		recs = append(recs, msgLowCompliance)
	}
	return recs
}
