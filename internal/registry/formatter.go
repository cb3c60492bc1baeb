package registry

import (
	"strings"

	"go.uber.org/zap"

	"github.com/verity-ml/predict-cli/internal/model"
)

// BlankValue is substituted when a row carries no value for an input field.
// The scoring models were trained with this marker for missing cells.
const BlankValue = "(blank)"

// Formatter builds one model input value from a source row.
type Formatter func(row map[string]string, field model.InputField) string

var formatters = map[string]Formatter{
	"default":               defaultFormatter,
	"fullDescriptionUnique": fullDescriptionUniqueFormatter,
}

// FormatterByName returns the named formatter strategy. Unknown names fall
// back to the default formatter with a warning.
func FormatterByName(name string) Formatter {
	if name == "" {
		return defaultFormatter
	}
	f, ok := formatters[name]
	if !ok {
		zap.L().Warn("unknown formatter, using default", zap.String("formatter", name))
		return defaultFormatter
	}
	return f
}

// defaultFormatter takes the first non-empty value among the field's column
// name and its aliases.
func defaultFormatter(row map[string]string, field model.InputField) string {
	for _, col := range append([]string{field.Name}, field.Aliases...) {
		if v := lookup(row, col); v != "" {
			return v
		}
	}
	return BlankValue
}

// fullDescriptionUniqueFormatter concatenates the distinct values found
// under the field's column name and aliases, preserving first-seen order.
// Duplicate values differing only in case collapse to the first occurrence.
func fullDescriptionUniqueFormatter(row map[string]string, field model.InputField) string {
	seen := make(map[string]struct{})
	var parts []string
	for _, col := range append([]string{field.Name}, field.Aliases...) {
		v := lookup(row, col)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		parts = append(parts, v)
	}
	if len(parts) == 0 {
		return BlankValue
	}
	return strings.Join(parts, " ")
}

// lookup finds a column's value in a row, matching the column name
// case-insensitively.
func lookup(row map[string]string, col string) string {
	if v, ok := row[col]; ok {
		return strings.TrimSpace(v)
	}
	for k, v := range row {
		if strings.EqualFold(k, col) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// InputNames returns the model's input field names in declaration order.
func InputNames(m *model.AIModel) []string {
	names := make([]string, len(m.Inputs))
	for i, f := range m.Inputs {
		names[i] = f.Name
	}
	return names
}

// InputValues formats one source row into the model's input values, in
// declaration order.
func InputValues(m *model.AIModel, row map[string]string) []string {
	values := make([]string, len(m.Inputs))
	for i, f := range m.Inputs {
		values[i] = FormatterByName(f.Formatter)(row, f)
	}
	return values
}
