package knowledge

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"go-herbal-inspector/pkg/models"
)

const sampleKB = `{
  "herbs": {
    "ginger": {"recommendations": ["ปลูกในดินร่วนซุย", "เก็บเกี่ยวเมื่ออายุ 8-10 เดือน", 3]},
    "turmeric": {"recommendations": []}
  },
  "entities": {
    "turmeric": {
      "thai_name": "ขมิ้นชัน",
      "relationships": {"requires": ["well_drained_soil"], "harvested_in": "winter"}
    },
    "gacp.v2": {"relationships": {"replaces": "gacp.v1"}},
    "empty": {}
  }
}`

func newBase(t *testing.T) *Base {
	t.Helper()
	kb, err := New([]byte(sampleKB))
	if err != nil {
		t.Fatalf("Failed to parse knowledge base: %v", err)
	}
	return kb
}

func TestNew_Invalid(t *testing.T) {
	if _, err := New([]byte(`{"herbs":`)); !errors.Is(err, ErrInvalidKnowledgeBase) {
		t.Errorf("Expected ErrInvalidKnowledgeBase, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gacp_rules.json")
	if err := os.WriteFile(path, []byte(sampleKB), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestHerbRecommendations(t *testing.T) {
	kb := newBase(t)

	tests := []struct {
		herb string
		want []string
	}{
		{"ginger", []string{"ปลูกในดินร่วนซุย", "เก็บเกี่ยวเมื่ออายุ 8-10 เดือน"}},
		{"turmeric", []string{}},
		{"unknown", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.herb, func(t *testing.T) {
			got := kb.HerbRecommendations(tt.herb)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestQuery(t *testing.T) {
	kb := newBase(t)

	resp := kb.Query(models.KnowledgeQuery{
		Entities:      []string{"turmeric", "missing", "empty", "gacp.v2"},
		Relationships: []string{"requires", "grows_with", "replaces"},
	})

	if len(resp.Results) != 2 {
		t.Fatalf("Expected 2 results, got %d: %v", len(resp.Results), resp.Results)
	}

	turmeric := resp.Results[0]
	if turmeric["entity"] != "turmeric" {
		t.Errorf("Expected turmeric first, got %v", turmeric["entity"])
	}
	if _, ok := turmeric["grows_with"]; ok {
		t.Error("Expected undefined relationship to be omitted")
	}
	if !reflect.DeepEqual(turmeric["requires"], []interface{}{"well_drained_soil"}) {
		t.Errorf("Expected requires relationship, got %v", turmeric["requires"])
	}
	data, ok := turmeric["data"].(map[string]interface{})
	if !ok || data["thai_name"] != "ขมิ้นชัน" {
		t.Errorf("Expected entity data, got %v", turmeric["data"])
	}

	if resp.Results[1]["replaces"] != "gacp.v1" {
		t.Errorf("Expected dotted entity key to resolve, got %v", resp.Results[1])
	}
}

func TestQuery_NoMatches(t *testing.T) {
	resp := newBase(t).Query(models.KnowledgeQuery{Entities: []string{"nothing"}})
	if resp.Results == nil || len(resp.Results) != 0 {
		t.Errorf("Expected empty non-nil results, got %v", resp.Results)
	}
}
