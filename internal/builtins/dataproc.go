// ABOUTME: Data processing tool: statistical analysis, transforms, aggregation,
// ABOUTME: text processing, hashing/encoding, and rule-based validation.

package builtins

import (
	"context"
	"encoding/json"
	"regexp"

	"github.com/2389/toolgate/internal/tools"
)

// DataprocTool bundles statistical, text, and encoding operations behind a
// single action-dispatched capability. All operations are pure computation
// over the parameter document.
type DataprocTool struct{}

// NewDataprocTool creates the data processing tool.
func NewDataprocTool() *DataprocTool {
	return &DataprocTool{}
}

// Descriptor implements tools.Tool.
func (t *DataprocTool) Descriptor() tools.Descriptor {
	return tools.Descriptor{
		ID:          "dataproc",
		Title:       "Data Processing",
		Description: "Statistical analysis, data transformation, text processing, and validation utilities.",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"action":{"type":"string","enum":["analyze","transform","aggregate","text","crypto","validate"]}},"required":["action"]}`),
	}
}

type dataprocResult struct {
	OK   bool `json:"ok"`
	Data any  `json:"data"`
}

// Call implements tools.Tool.
func (t *DataprocTool) Call(_ context.Context, params json.RawMessage) (json.RawMessage, error) {
	var probe struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(params, &probe); err != nil {
		return fail("invalid params: %v", err)
	}

	var (
		data any
		err  error
	)
	switch probe.Action {
	case "analyze":
		data, err = analyzeData(params)
	case "transform":
		data, err = transformData(params)
	case "aggregate":
		data, err = aggregateData(params)
	case "text":
		data, err = processText(params)
	case "crypto":
		data, err = cryptoOperation(params)
	case "validate":
		data, err = validateData(params)
	default:
		return fail("unknown action: %s", probe.Action)
	}
	if err != nil {
		return fail("%v", err)
	}
	return result(dataprocResult{OK: true, Data: data})
}

// Validation

type validationRule struct {
	Field        string         `json:"field"`
	RuleType     string         `json:"rule_type"`
	Params       map[string]any `json:"params"`
	ErrorMessage string         `json:"error_message"`
}

type fieldResult struct {
	Field string  `json:"field"`
	Valid bool    `json:"valid"`
	Error *string `json:"error"`
}

type validateResult struct {
	Valid   bool          `json:"valid"`
	Results []fieldResult `json:"results"`
}

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	urlPattern   = regexp.MustCompile(`^https?://[^\s/$.?#].[^\s]*$`)
)

func validateData(params json.RawMessage) (any, error) {
	var in struct {
		Data  map[string]any   `json:"data"`
		Rules []validationRule `json:"rules"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, err
	}

	out := validateResult{Valid: true, Results: make([]fieldResult, 0, len(in.Rules))}
	for _, rule := range in.Rules {
		value := in.Data[rule.Field]
		valid := applyRule(rule, value)

		fr := fieldResult{Field: rule.Field, Valid: valid}
		if !valid {
			msg := rule.ErrorMessage
			fr.Error = &msg
			out.Valid = false
		}
		out.Results = append(out.Results, fr)
	}
	return out, nil
}

func applyRule(rule validationRule, value any) bool {
	switch rule.RuleType {
	case "required":
		return validateRequired(value)
	case "type":
		expected, _ := rule.Params["type"].(string)
		if expected == "" {
			expected = "string"
		}
		return validateType(value, expected)
	case "range":
		return validateRange(value, rule.Params["min"], rule.Params["max"])
	case "regex":
		pattern, _ := rule.Params["pattern"].(string)
		return validateRegex(value, pattern)
	case "email":
		s, ok := value.(string)
		return ok && emailPattern.MatchString(s)
	case "url":
		s, ok := value.(string)
		return ok && urlPattern.MatchString(s)
	default:
		return false
	}
}

func validateRequired(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case string:
		return len(v) > 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}

func validateType(value any, expected string) bool {
	switch expected {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		_, ok := value.(float64)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "list":
		_, ok := value.([]any)
		return ok
	case "dict":
		_, ok := value.(map[string]any)
		return ok
	default:
		return false
	}
}

func validateRange(value, min, max any) bool {
	v, ok := value.(float64)
	if !ok {
		return false
	}
	if lo, ok := min.(float64); ok && v < lo {
		return false
	}
	if hi, ok := max.(float64); ok && v > hi {
		return false
	}
	return true
}

func validateRegex(value any, pattern string) bool {
	s, ok := value.(string)
	if !ok || pattern == "" {
		return false
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(s)
}
