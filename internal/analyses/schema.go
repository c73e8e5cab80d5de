package analyses

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StructuredDetails is the schema-validated structured record derived from a
// summary. All four fields are required; partial provider output is rejected
// rather than silently stored.
type StructuredDetails struct {
	Name           string  `json:"name"`
	Date           string  `json:"date"`
	Owner          string  `json:"owner"`
	ViabilityScore float64 `json:"viabilityScore"`
}

// ParseStructuredDetails validates a raw provider payload against the
// structured-details schema and returns its canonical serialization.
func ParseStructuredDetails(raw json.RawMessage) (StructuredDetails, string, error) {
	if len(raw) == 0 {
		return StructuredDetails{}, "", fmt.Errorf("empty structured payload")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return StructuredDetails{}, "", fmt.Errorf("structured payload parse: %w", err)
	}

	var missing []string
	for _, key := range []string{"name", "date", "owner", "viabilityScore"} {
		val, ok := fields[key]
		if !ok || string(val) == "null" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return StructuredDetails{}, "", fmt.Errorf("structured payload missing required fields: %s", strings.Join(missing, ", "))
	}

	var details StructuredDetails
	if err := json.Unmarshal(raw, &details); err != nil {
		return StructuredDetails{}, "", fmt.Errorf("structured payload type mismatch: %w", err)
	}

	canonical, err := json.Marshal(details)
	if err != nil {
		return StructuredDetails{}, "", fmt.Errorf("structured payload marshal: %w", err)
	}
	return details, string(canonical), nil
}
