package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Snapshot computes a stable hash of the output-affecting configuration. Logging,
// metrics and history settings are left out. Exclusion lists are order-insensitive.
func (c *Config) Snapshot() string {
	if c == nil {
		return ""
	}
	h := sha256.New()
	w := func(parts ...string) { h.Write([]byte(strings.Join(parts, "="))); h.Write([]byte{0}) }
	sorted := func(in []string) string {
		out := append([]string{}, in...)
		sort.Strings(out)
		return strings.Join(out, ",")
	}

	w("inputs.assemblies", strings.Join(c.Inputs.Assemblies, ","))
	w("inputs.references", strings.Join(c.Inputs.References, ","))
	w("output.merge_duplicates", strconv.FormatBool(c.Output.ShouldMerge()))
	w("source.base_path", c.Source.BasePath)
	w("member_order", string(c.MemberOrder))

	opts := c.Filter.Options()
	w("filter.include_private", strconv.FormatBool(opts.IncludePrivate))
	w("filter.include_internal", strconv.FormatBool(opts.IncludeInternal))
	w("filter.include_protected", strconv.FormatBool(opts.IncludeProtected))
	w("filter.protected_internal_as_protected", strconv.FormatBool(opts.ProtectedInternalAsProtected))
	w("filter.include_private_fields", strconv.FormatBool(opts.IncludePrivateFields))
	w("filter.include_explicit_interface_implementations", strconv.FormatBool(opts.IncludeExplicitInterfaceImplementations))
	w("filter.include_attributes", strconv.FormatBool(opts.IncludeAttributes))
	w("filter.exclude", sorted(opts.Exclude))
	w("filter.excluded_attributes", sorted(opts.ExcludedAttributes))

	// Add-in order is significant: callbacks run in registration order.
	for _, a := range c.AddIns {
		keys := make([]string, 0, len(a.Options))
		for k := range a.Options {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := []string{"addin", a.Name}
		for _, k := range keys {
			parts = append(parts, k+":"+formatOption(a.Options[k]))
		}
		w(parts...)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func formatOption(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	default:
		return fmt.Sprint(x)
	}
}
