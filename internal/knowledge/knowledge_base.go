// Package knowledge answers queries against the GACP knowledge base, a JSON
// document with top-level "herbs" and "entities" objects.
package knowledge

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"go-herbal-inspector/pkg/models"

	"github.com/tidwall/gjson"
)

// ErrInvalidKnowledgeBase is returned for documents that are not valid JSON
var ErrInvalidKnowledgeBase = errors.New("invalid knowledge base")

// Base is an immutable, parsed-on-demand knowledge base
type Base struct {
	raw []byte
}

// Load reads a knowledge base file
func Load(path string) (*Base, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read knowledge base: %w", err)
	}
	return New(data)
}

func New(data []byte) (*Base, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidKnowledgeBase
	}
	return &Base{raw: data}, nil
}

// HerbRecommendations lists herbs.<name>.recommendations
func (b *Base) HerbRecommendations(herb string) []string {
	recs := []string{}
	gjson.GetBytes(b.raw, "herbs."+escapeKey(herb)+".recommendations").ForEach(func(_, v gjson.Result) bool {
		if v.Type == gjson.String {
			recs = append(recs, v.String())
		}
		return true
	})
	return recs
}

// Query returns one result per entity that has data. Each result holds the
// entity, its data and one key per requested relationship it defines.
func (b *Base) Query(q models.KnowledgeQuery) models.KnowledgeResponse {
	results := []map[string]interface{}{}

	for _, entity := range q.Entities {
		data := gjson.GetBytes(b.raw, "entities."+escapeKey(entity))
		if isEmpty(data) {
			continue
		}

		result := map[string]interface{}{
			"entity": entity,
			"data":   data.Value(),
		}
		for _, rel := range q.Relationships {
			if r := data.Get("relationships." + escapeKey(rel)); r.Exists() {
				result[rel] = r.Value()
			}
		}
		results = append(results, result)
	}

	return models.KnowledgeResponse{Results: results}
}

// isEmpty treats missing, null, false, zero and empty values as no data
func isEmpty(r gjson.Result) bool {
	if !r.Exists() {
		return true
	}
	switch r.Type {
	case gjson.Null, gjson.False:
		return true
	case gjson.Number:
		return r.Num == 0
	case gjson.String:
		return r.Str == ""
	}
	if r.IsObject() {
		return len(r.Map()) == 0
	}
	if r.IsArray() {
		return len(r.Array()) == 0
	}
	return false
}

// escapeKey makes a literal object key safe to use in a gjson path
func escapeKey(key string) string {
	var sb strings.Builder
	for _, c := range key {
		switch c {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%':
			sb.WriteByte('\\')
		}
		sb.WriteRune(c)
	}
	return sb.String()
}
