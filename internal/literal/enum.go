package literal

import "git.home.luguber.info/inful/mrefbuilder/internal/metadata"

// AppliedFields returns the enumeration fields that make up value.
//
// A field whose value equals value exactly is returned on its own. Otherwise every
// nonzero field whose bits are all set in value is collected, and a collected field is
// dropped when a field collected after it covers all of its bits. The reduction only
// looks forward, so the result depends on declaration order.
func AppliedFields(enum *metadata.TypeNode, value int64) []*metadata.Field {
	var list []*metadata.Field
	for _, m := range enum.Members() {
		f, ok := m.(*metadata.Field)
		if !ok || f.DefaultValue == nil {
			continue
		}
		fv, ok := metadata.AsInt64(f.DefaultValue.Value)
		if !ok {
			continue
		}
		if fv == value {
			return []*metadata.Field{f}
		}
		if fv != 0 && fv&value == fv {
			list = append(list, f)
		}
	}

	for i := 0; i < len(list); {
		fv, _ := metadata.AsInt64(list[i].DefaultValue.Value)
		covered := false
		for _, later := range list[i+1:] {
			lv, _ := metadata.AsInt64(later.DefaultValue.Value)
			if fv&lv == fv {
				covered = true
				break
			}
		}
		if covered {
			list = append(list[:i], list[i+1:]...)
			continue
		}
		i++
	}
	return list
}
