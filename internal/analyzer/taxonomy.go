package analyzer

import (
	"strings"

	"go-herbal-inspector/pkg/models"

	"github.com/arbovm/levenshtein"
)

// maxLabelDistance bounds the edit distance accepted when a model label
// does not match a taxonomy name exactly.
const maxLabelDistance = 2

// thaiHerbNames maps Thai common names onto taxonomy keys
var thaiHerbNames = map[string]string{
	"กัญชา":    models.HerbCannabis,
	"ขมิ้นชัน": models.HerbTurmeric,
	"ขมิ้น":    models.HerbTurmeric,
	"ขิง":      models.HerbGinger,
	"กระชายดำ": models.HerbBlackGalingale,
	"ไพล":      models.HerbPlai,
	"กระท่อม":  models.HerbKratom,
}

// NormalizeHerbLabel maps a raw model label onto the supported taxonomy.
// Labels may carry a subspecies suffix ("cannabis:sativa"). Anything that
// cannot be matched maps to models.UnknownHerb.
func NormalizeHerbLabel(label string) (herb, subspecies string) {
	base := label
	if i := strings.Index(label, ":"); i >= 0 {
		base, subspecies = label[:i], strings.TrimSpace(label[i+1:])
	}

	key := strings.ToLower(strings.TrimSpace(base))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	if key == "" {
		return models.UnknownHerb, ""
	}

	if isSupportedHerb(key) {
		return key, subspecies
	}
	if h, ok := thaiHerbNames[strings.TrimSpace(base)]; ok {
		return h, subspecies
	}

	best, bestDist, tie := "", maxLabelDistance+1, false
	for _, h := range models.SupportedHerbs {
		d := levenshtein.Distance(key, h)
		switch {
		case d < bestDist:
			best, bestDist, tie = h, d, false
		case d == bestDist:
			tie = true
		}
	}
	if best == "" || tie {
		return models.UnknownHerb, ""
	}
	return best, subspecies
}

func isSupportedHerb(name string) bool {
	for _, h := range models.SupportedHerbs {
		if h == name {
			return true
		}
	}
	return false
}
