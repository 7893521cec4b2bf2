// Package extract implements best-effort extraction of a JSON object from
// raw LLM output.
//
// Models frequently wrap their JSON answer in a fenced markdown block, add a
// language tag, or surround it with prose. The grammar accepted here is:
//
//	output   = ws [ fence ] ws object ws [ fence ] ws
//	fence    = "```" [ "json" ]
//
// When no fence is present the text between the first '{' and the last '}'
// is taken as the candidate object. The candidate must parse as a JSON
// object; anything else is an error. Callers decide what to do on failure —
// each pipeline step has its own documented fallback.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoObject is returned when raw contains nothing that parses as a JSON object.
var ErrNoObject = errors.New("extract: no JSON object found")

// fenceRe matches the first fenced code block, tolerating a "json" language tag.
var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// JSONObject extracts the JSON object from raw and returns its exact bytes.
// The returned bytes are guaranteed to unmarshal into a map.
func JSONObject(raw string) ([]byte, error) {
	candidate := strings.TrimSpace(raw)
	if m := fenceRe.FindStringSubmatch(candidate); m != nil {
		candidate = strings.TrimSpace(m[1])
	}

	// Unfenced prose around the object: cut to the outermost braces.
	if !strings.HasPrefix(candidate, "{") {
		start := strings.Index(candidate, "{")
		end := strings.LastIndex(candidate, "}")
		if start < 0 || end < start {
			return nil, ErrNoObject
		}
		candidate = candidate[start : end+1]
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &probe); err != nil {
		return nil, fmt.Errorf("extract: parse candidate object: %w", err)
	}
	return []byte(candidate), nil
}

// Unmarshal extracts the JSON object from raw and decodes it into v.
func Unmarshal(raw string, v any) error {
	data, err := JSONObject(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("extract: decode object: %w", err)
	}
	return nil
}
