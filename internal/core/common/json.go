package common

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseJSON unmarshals an LLM response into T. Generative output routinely
// arrives wrapped in markdown fences or surrounded by prose, so the first
// balanced-looking object is carved out before unmarshalling. Anything that
// still fails to parse is rejected here; nothing untyped crosses this
// boundary.
func ParseJSON[T any](response string) (T, error) {
	var zero T

	jsonStr := response
	if i := strings.Index(jsonStr, "```json"); i != -1 {
		jsonStr = jsonStr[i+len("```json"):]
		if j := strings.Index(jsonStr, "```"); j != -1 {
			jsonStr = jsonStr[:j]
		}
	} else if i := strings.Index(jsonStr, "```"); i != -1 {
		jsonStr = jsonStr[i+len("```"):]
		if j := strings.Index(jsonStr, "```"); j != -1 {
			jsonStr = jsonStr[:j]
		}
	}

	start := strings.Index(jsonStr, "{")
	end := strings.LastIndex(jsonStr, "}")
	if start == -1 || end == -1 || end < start {
		return zero, fmt.Errorf("no JSON object found in response")
	}
	jsonStr = jsonStr[start : end+1]

	var result T
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return zero, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return result, nil
}
