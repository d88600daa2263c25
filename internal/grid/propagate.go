package grid

import (
	"sort"
	"strings"
)

// identifierKeys returns the identifier columns in physical column order.
// Explicit configuration wins; with no configuration, header naming decides
// (block, plot, *_no, *_id).
func identifierKeys(res headerResolution, opts Options) []string {
	if len(opts.IdentifierColumns) > 0 {
		return selectKeys(res, opts.IdentifierColumns)
	}
	var keys []string
	for _, key := range res.orderedKeys {
		base := key
		if strings.HasPrefix(base, "col_") {
			continue
		}
		if base == "block" || base == "plot" ||
			strings.HasSuffix(base, "_no") || strings.HasSuffix(base, "_id") {
			keys = append(keys, key)
		}
	}
	return keys
}

// groupConstantKeys returns the configured once-per-block columns in
// physical column order. There is no naming fallback for these; the
// designation has to be supplied.
func groupConstantKeys(res headerResolution, opts Options) []string {
	return selectKeys(res, opts.GroupConstantColumns)
}

func selectKeys(res headerResolution, wanted []string) []string {
	want := make(map[string]bool, len(wanted))
	for _, w := range wanted {
		want[w] = true
	}
	var keys []string
	for _, key := range res.orderedKeys {
		if want[key] {
			keys = append(keys, key)
		}
	}
	return keys
}

// propagateFields applies the per-column propagation policy to the data
// rows' field maps, in document order.
//
// Identifier columns forward-fill their last explicit value until the next
// explicit value resets them. Group-constant columns take the value recorded
// on the first row of their enclosing identifier block; stray text later in
// the block is noise. A block whose first row carries no value yields empty
// cells flagged low_confidence, never a fabricated value.
//
// The returned slice is parallel to fields and marks low_confidence keys.
func propagateFields(fields []map[string]string, rowGroupIDs []string, res headerResolution, opts Options, diags *diagnostics) []map[string]bool {
	lowConf := make([]map[string]bool, len(fields))
	for i := range lowConf {
		lowConf[i] = make(map[string]bool)
	}
	if len(fields) == 0 {
		return lowConf
	}

	idKeys := identifierKeys(res, opts)
	gcKeys := groupConstantKeys(res, opts)

	// Remember which identifier values were explicit before filling; the
	// first identifier column's explicit values define block boundaries.
	var blockKey string
	if len(idKeys) > 0 {
		blockKey = idKeys[0]
	}
	explicitBlock := make([]bool, len(fields))
	for i, f := range fields {
		explicitBlock[i] = blockKey != "" && strings.TrimSpace(f[blockKey]) != ""
	}

	for _, key := range idKeys {
		last := ""
		for _, f := range fields {
			if v := strings.TrimSpace(f[key]); v != "" {
				last = v
				continue
			}
			if last != "" {
				f[key] = last
			}
		}
	}

	if len(gcKeys) == 0 {
		return lowConf
	}

	for start := 0; start < len(fields); {
		end := start + 1
		for end < len(fields) && !explicitBlock[end] {
			end++
		}
		// Rows before the first explicit identifier have no enclosing
		// block; their group-constant cells stay empty.
		determinable := explicitBlock[start]

		for _, key := range gcKeys {
			first := ""
			if determinable {
				first = strings.TrimSpace(fields[start][key])
			}
			for i := start; i < end; i++ {
				v := strings.TrimSpace(fields[i][key])
				switch {
				case i == start && determinable:
					// The block's recorded value, possibly empty.
				case v == "" && first != "":
					fields[i][key] = first
				case v == "" && first == "":
					lowConf[i][key] = true
					diags.add(DiagPropagationGap, rowGroupIDs[i],
						"no determinable %s value for block starting at row %d", key, start)
				case v != "" && first == "":
					// Stray text in a block that recorded no value on its
					// first row. Kept, but it cannot be trusted as the
					// block value.
					lowConf[i][key] = true
					diags.add(DiagGroupConstantNoise, rowGroupIDs[i],
						"stray %s value %q in a block with no recorded value", key, v)
				case v != first && first != "":
					diags.add(DiagGroupConstantNoise, rowGroupIDs[i],
						"ignoring stray %s value %q; block value is %q", key, v, first)
					fields[i][key] = first
				}
			}
			if determinable && first == "" {
				lowConf[start][key] = true
				diags.add(DiagPropagationGap, rowGroupIDs[start],
					"block starting at row %d records no %s value", start, key)
			}
		}
		start = end
	}

	return lowConf
}

// sortedFlagKeys returns a flag map's keys in stable order for emission.
func sortedFlagKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
