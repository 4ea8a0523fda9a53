package document

import (
	"bytes"
	"strings"

	"go-herbal-inspector/pkg/models"
)

const (
	pdfScanBytes        = 1000
	pdfValidConfidence  = 0.95
	pdfWeakConfidence   = 0.45
	issueNotPDF         = "รูปแบบไฟล์ไม่ถูกต้อง ควรเป็น PDF"
	issueNoRegistration = "ไม่พบข้อมูลทะเบียนพาณิชย์"
	issueNoLandTitle    = "ไม่พบข้อมูลเอกสารสิทธิ์ในที่ดิน"
)

var pdfMagic = []byte("%PDF")

// pdfKeywords: at least one keyword must appear in the scanned header
var pdfKeywords = map[string]struct {
	words []string
	issue string
}{
	models.DocCommercialRegistration: {[]string{"company", "registration"}, issueNoRegistration},
	models.DocLandDocument:           {[]string{"land", "title"}, issueNoLandTitle},
}

func validatePDF(docType string, data []byte) (bool, float64, []string) {
	if !bytes.HasPrefix(data, pdfMagic) {
		return false, 0, []string{issueNotPDF}
	}

	head := strings.ToLower(latin1(data[:min(len(data), pdfScanBytes)]))

	issues := []string{}
	if rule, ok := pdfKeywords[docType]; ok && !containsAny(head, rule.words) {
		issues = append(issues, rule.issue)
	}

	if len(issues) > 0 {
		return false, pdfWeakConfidence, issues
	}
	return true, pdfValidConfidence, issues
}

// latin1 maps every byte to the code point of the same value
func latin1(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		sb.WriteRune(rune(c))
	}
	return sb.String()
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
