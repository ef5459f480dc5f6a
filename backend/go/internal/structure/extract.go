package structure

import (
	"encoding/json"
	"fmt"
	"strings"

	"VoxMind/backend/go/internal/apperr"
	"VoxMind/backend/go/internal/models"
)

// ExtractStructure parses a model completion into a MemoStructure.
// Models do not always honor JSON mode, so parsing is attempted in order:
//
//  1. the whole completion as a JSON document
//  2. the contents of a fenced ```json block
//  3. the first balanced top-level {...} span
//
// The first candidate that parses wins. The parsed structure is then
// validated; a result missing title, summary or category, or carrying a
// category outside the known set, is rejected.
func ExtractStructure(completion string) (*models.MemoStructure, error) {
	completion = strings.TrimSpace(completion)
	if completion == "" {
		return nil, fmt.Errorf("%w: empty completion", apperr.ErrExtractionFailed)
	}

	for _, candidate := range extractCandidates(completion) {
		var parsed models.MemoStructure
		if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
			continue
		}
		if err := parsed.Validate(); err != nil {
			return nil, err
		}
		return &parsed, nil
	}

	return nil, fmt.Errorf("%w: no JSON object found in completion", apperr.ErrExtractionFailed)
}

func extractCandidates(completion string) []string {
	candidates := []string{completion}

	if fenced := extractFencedJSON(completion); fenced != "" {
		candidates = append(candidates, fenced)
	}
	if span := extractBalancedObject(completion); span != "" {
		candidates = append(candidates, span)
	}

	return candidates
}

// extractFencedJSON returns the body of the first ```json fenced block,
// or "" when there is none.
func extractFencedJSON(s string) string {
	start := strings.Index(s, "```json")
	if start < 0 {
		return ""
	}
	body := s[start+len("```json"):]
	end := strings.Index(body, "```")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(body[:end])
}

// extractBalancedObject returns the first top-level {...} span with balanced
// braces, skipping braces inside JSON string literals.
func extractBalancedObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
