// Package normalization maps loosely written configuration and metadata keywords
// to enumeration values.
package normalization

import (
	"fmt"
	"sort"
	"strings"
)

// EnumNormalizer converts case-insensitive keywords to values of T. Several keywords
// may name the same value.
type EnumNormalizer[T comparable] struct {
	enumName     string
	values       map[string]T
	defaultValue T
	validKeys    []string
}

// NewEnumNormalizer creates a normalizer for the named enumeration. Keys are matched
// after trimming and lower-casing.
func NewEnumNormalizer[T comparable](enumName string, values map[string]T, defaultValue T) *EnumNormalizer[T] {
	normalized := make(map[string]T, len(values))
	keys := make([]string, 0, len(values))
	for k, v := range values {
		key := clean(k)
		normalized[key] = v
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return &EnumNormalizer[T]{
		enumName:     enumName,
		values:       normalized,
		defaultValue: defaultValue,
		validKeys:    keys,
	}
}

// Normalize returns the value for raw, or the default when raw is not recognized.
func (e *EnumNormalizer[T]) Normalize(raw string) T {
	if v, ok := e.values[clean(raw)]; ok {
		return v
	}
	return e.defaultValue
}

// NormalizeWithValidation returns the value for raw, or an error listing the
// accepted keywords.
func (e *EnumNormalizer[T]) NormalizeWithValidation(raw string) (T, error) {
	if v, ok := e.values[clean(raw)]; ok {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q, valid options: %s", e.enumName, raw, strings.Join(e.validKeys, ", "))
}

// clean collapses case and surrounding or repeated whitespace.
func clean(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
