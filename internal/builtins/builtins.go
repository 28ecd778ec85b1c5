// ABOUTME: Shared result helpers for the builtin tool families.
// ABOUTME: Domain failures are ok:false documents, never invocation errors.

package builtins

import (
	"encoding/json"
	"fmt"
)

// fail builds an ok:false result document carrying a failure description.
// Formatting errors cannot occur for this shape.
func fail(format string, args ...any) (json.RawMessage, error) {
	doc := map[string]any{
		"ok":    false,
		"error": fmt.Sprintf(format, args...),
	}
	return json.Marshal(doc)
}

// result marshals a success document. v must already carry its ok field.
func result(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return data, nil
}
