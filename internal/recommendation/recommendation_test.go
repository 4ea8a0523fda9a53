package recommendation

import (
	"reflect"
	"testing"

	"go-herbal-inspector/pkg/models"
)

func perfect() models.QualityAssessment {
	return models.QualityAssessment{
		OverallScore:   0.95,
		Freshness:      0.95,
		Color:          0.95,
		Texture:        0.95,
		Size:           0.95,
		Defects:        []string{},
		Grade:          models.GradeA,
		GACPCompliance: 0.95,
	}
}

func TestGenerate(t *testing.T) {
	tests := []struct {
		name     string
		herb     string
		modify   func(*models.QualityAssessment)
		diseases []string
		want     []string
	}{
		{
			name: "nothing to report",
			herb: models.HerbCannabis,
			want: []string{},
		},
		{
			name: "low overall only",
			herb: models.HerbPlai,
			modify: func(q *models.QualityAssessment) {
				q.OverallScore = 0.69
			},
			want: []string{msgLowOverall},
		},
		{
			name: "defects and diseases keep their order",
			herb: models.HerbKratom,
			modify: func(q *models.QualityAssessment) {
				q.Defects = []string{"dark_spots", "blurry_image"}
			},
			diseases: []string{"leaf_spot", "rust"},
			want: []string{
				"พบข้อบกพร่อง: dark_spots, blurry_image",
				"พบโรคพืช: leaf_spot, rust ควรรักษาและป้องกัน",
			},
		},
		{
			name: "cannabis rules",
			herb: models.HerbCannabis,
			modify: func(q *models.QualityAssessment) {
				q.Texture = 0.5
				q.Color = 0.65
			},
			want: []string{"ดอกกัญชาควรมีความแน่นเหมาะสม", "สีเขียวควรสม่ำเสมอ ไม่เหลืองหรือน้ำตาล"},
		},
		{
			name: "turmeric rules",
			herb: models.HerbTurmeric,
			modify: func(q *models.QualityAssessment) {
				q.Size = 0.6
			},
			want: []string{"ขนาดหัวขมิ้นควรสม่ำเสมอ"},
		},
		{
			name: "ginger rules after generic ones",
			herb: models.HerbGinger,
			modify: func(q *models.QualityAssessment) {
				q.Freshness = 0.5
				q.GACPCompliance = 0.79
			},
			want: []string{msgLowFreshness, "ขิงควรสด ไม่เหี่ยวแห้ง", msgLowCompliance},
		},
		{
			name: "everything at once",
			herb: models.HerbTurmeric,
			modify: func(q *models.QualityAssessment) {
				*q = models.QualityAssessment{Defects: []string{"overexposed"}}
			},
			diseases: []string{"rot"},
			want: []string{
				msgLowOverall,
				msgLowFreshness,
				msgLowColor,
				"พบข้อบกพร่อง: overexposed",
				"พบโรคพืช: rot ควรรักษาและป้องกัน",
				"สีเหลืองของขมิ้นควรสด ไม่จืด",
				"ขนาดหัวขมิ้นควรสม่ำเสมอ",
				msgLowCompliance,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qa := perfect()
			if tt.modify != nil {
				tt.modify(&qa)
			}
			got := Generate(models.HerbPrediction{HerbType: tt.herb}, qa, tt.diseases)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	qa := models.QualityAssessment{Defects: []string{"dark_spots"}}
	pred := models.HerbPrediction{HerbType: models.HerbCannabis}

	first := Generate(pred, qa, []string{"mildew"})
	for i := 0; i < 10; i++ {
		if got := Generate(pred, qa, []string{"mildew"}); !reflect.DeepEqual(first, got) {
			t.Fatalf("Expected stable output, got %q then %q", first, got)
		}
	}
}
