package document

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"go-herbal-inspector/internal/logger"
	"go-herbal-inspector/pkg/models"

	"github.com/arbovm/levenshtein"
	"github.com/codycollier/wer"
)

// headerMatchWER is the largest word error rate at which the first text
// line still counts as the expected document header
const headerMatchWER = 0.25

type textProfile struct {
	header   []string
	keywords []string
}

var textProfiles = map[string]textProfile{
	models.DocCommercialRegistration: {
		header:   []string{"commercial", "registration", "certificate"},
		keywords: []string{"company", "registration", "ทะเบียนพาณิชย์"},
	},
	models.DocLandDocument: {
		header:   []string{"land", "title", "deed"},
		keywords: []string{"land", "title", "deed", "โฉนดที่ดิน"},
	},
	models.DocFarmMap: {
		header:   []string{"farm", "map"},
		keywords: []string{"farm", "map", "plot", "แผนผัง"},
	},
	models.DocSoilTestReport: {
		header:   []string{"soil", "test", "report"},
		keywords: []string{"soil", "report", "ph", "nitrogen", "ผลตรวจดิน"},
	},
}

// textEvidence runs OCR when enabled. Failures are logged and yield nil.
func (v *Validator) textEvidence(ctx context.Context, docType string, data []byte) *models.TextEvidence {
	if v.ocr == nil {
		return nil
	}
	profile, ok := textProfiles[docType]
	if !ok {
		return nil
	}

	text, err := v.ocr.Extract(ctx, data)
	if err != nil {
		logger.WithError(err).WithField("document_type", docType).Warn("Text extraction failed")
		return nil
	}

	ev := ScoreText(text, profile.header, profile.keywords)
	ev.Engine = v.ocr.Engine()
	return &ev
}

// ScoreText compares extracted text with the expected header and keywords.
// Keywords match tokens within a small edit distance to tolerate OCR noise.
func ScoreText(text string, header, keywords []string) models.TextEvidence {
	tokens := tokenize(text)
	lower := strings.ToLower(text)

	found := []string{}
	for _, kw := range keywords {
		// Thai is written without spaces, so non-ASCII keywords match as substrings
		if (!isASCII(kw) && strings.Contains(lower, kw)) || matchesAny(kw, tokens) {
			found = append(found, kw)
		}
	}

	rate := headerWER(header, tokenize(firstLine(text)))
	return models.TextEvidence{
		KeywordsFound: found,
		HeaderWER:     rate,
		HeaderMatched: rate <= headerMatchWER,
	}
}

func headerWER(header, line []string) float64 {
	if len(header) == 0 {
		return 0
	}
	if len(line) == 0 {
		return 1
	}
	rate, _ := wer.WER(header, line)
	return rate
}

func matchesAny(keyword string, tokens []string) bool {
	maxEdits := utf8.RuneCountInString(keyword) / 4
	for _, tok := range tokens {
		if tok == keyword {
			return true
		}
		if maxEdits > 0 && levenshtein.Distance(tok, keyword) <= maxEdits {
			return true
		}
	}
	return false
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.Is(unicode.Mn, r)
	})
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			return line
		}
	}
	return ""
}
