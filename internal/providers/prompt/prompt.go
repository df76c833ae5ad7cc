// internal/providers/prompt/prompt.go
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"creator-match/internal/engine/style"
)

// maxTextRunes bounds how much candidate text goes into one prompt.
const maxTextRunes = 4000

const SystemMessage = "You are a JSON generator. Reply with a single JSON object and nothing else."

// Build returns the classification instruction for a creator's text.
func Build(tax *style.Taxonomy, text string) string {
	if tax == nil {
		tax = style.DefaultTaxonomy()
	}
	var sb strings.Builder
	sb.WriteString("Classify the content of the creator channel below.\n")
	sb.WriteString("Return JSON exactly in this shape, without markdown:\n")
	sb.WriteString(`{"tags": ["..."], "quality": 0, "ageBands": ["..."]}`)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "tags: food categories and content styles the channel covers. Prefer these categories: %s. Prefer these styles: %s.\n",
		strings.Join(tax.Categories(), ", "), strings.Join(tax.Styles(), ", "))
	sb.WriteString("quality: production quality and consistency from 0 to 100.\n")
	fmt.Fprintf(&sb, "ageBands: likely audience age bands, chosen from %s.\n", strings.Join(tax.AgeBands(), ", "))
	sb.WriteString("\nChannel text:\n")
	sb.WriteString(truncate(text, maxTextRunes))
	return sb.String()
}

// Parse decodes a model reply into a Classification. Code fences around
// the JSON are tolerated; anything else that is not the expected object
// is an error.
func Parse(reply string) (style.Classification, error) {
	clean := strings.TrimSpace(reply)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)

	var raw struct {
		Tags     []string `json:"tags"`
		Quality  *float64 `json:"quality"`
		AgeBands []string `json:"ageBands"`
	}
	dec := json.NewDecoder(strings.NewReader(clean))
	if err := dec.Decode(&raw); err != nil {
		return style.Classification{}, fmt.Errorf("%w: %v", style.ErrNoClassification, err)
	}
	if dec.More() {
		return style.Classification{}, fmt.Errorf("%w: trailing content after JSON object", style.ErrNoClassification)
	}
	if raw.Quality == nil {
		return style.Classification{}, fmt.Errorf("%w: quality missing", style.ErrNoClassification)
	}

	var tags []string
	for _, t := range raw.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return style.Classification{
		Tags:     tags,
		Quality:  *raw.Quality,
		AgeBands: raw.AgeBands,
	}, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
