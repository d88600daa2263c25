package grid

import (
	"fmt"
	"strings"
)

// groupCounter hands out document-scoped group ids. It is scoped per
// conversion, never process-wide, so batches stay reproducible. Each kind
// carries its own monotonically increasing counter that never resets.
type groupCounter struct {
	counts map[string]int
}

func newGroupCounter() *groupCounter {
	return &groupCounter{counts: make(map[string]int)}
}

func (g *groupCounter) next(kind string) string {
	g.counts[kind]++
	return fmt.Sprintf("%s_%d", kind, g.counts[kind])
}

// buildDocument assembles the final intermediate document from the resolved
// rows, header map and universal fields. Every data cell must resolve to a
// header key; an unmapped column is a builder error, not a silent drop.
func buildDocument(
	titleLegend []string,
	universals []universalCandidate,
	res headerResolution,
	dataRows []Row,
	opts Options,
	ids *groupCounter,
	diags *diagnostics,
) (*Document, error) {
	doc := &Document{
		TitleLegend:     titleLegend,
		UniversalFields: make(map[string]UniversalField),
		HeaderMap:       make(map[string]HeaderEntry),
		Rows:            make([]DataRowRecord, 0, len(dataRows)),
	}

	for _, u := range universals {
		key := SnakeCase(u.key, opts.Symbols)
		if key == "" {
			continue
		}
		for n := 2; ; n++ {
			if _, taken := doc.UniversalFields[key]; !taken {
				break
			}
			key = fmt.Sprintf("%s_%d", SnakeCase(u.key, opts.Symbols), n)
		}
		doc.UniversalFields[key] = UniversalField{
			Value:       strings.TrimSpace(u.value),
			Valid:       true,
			GroupID:     ids.next("universal_field"),
			ColumnIndex: -1,
			RowIndex:    -1,
		}
	}

	for _, key := range res.orderedKeys {
		entry := res.entries[key]
		entry.GroupID = ids.next("col")
		doc.HeaderMap[key] = entry
	}

	// Materialize field maps first so propagation sees the whole row set.
	fields := make([]map[string]string, len(dataRows))
	rowGroupIDs := make([]string, len(dataRows))
	for i, row := range dataRows {
		rowGroupIDs[i] = row.GroupID
		f := make(map[string]string, len(res.orderedKeys))
		for _, key := range res.orderedKeys {
			f[key] = ""
		}
		for _, c := range row.Cells {
			key, ok := res.keyByColumn[c.ColumnIndex]
			if !ok {
				return nil, fmt.Errorf("data row %d column %d maps to no header key", row.Index, c.ColumnIndex)
			}
			f[key] = c.Text
		}
		fields[i] = f
	}

	lowConf := propagateFields(fields, rowGroupIDs, res, opts, diags)

	for i, row := range dataRows {
		record := DataRowRecord{
			Fields: fields[i],
			System: RowSystem{
				BBox:          bboxFrom(row.BBox()),
				RowIndex:      row.Index,
				GroupID:       row.GroupID,
				Cells:         make(map[string]CellDetail, len(row.Cells)),
				LowConfidence: sortedFlagKeys(lowConf[i]),
			},
		}
		for _, c := range row.Cells {
			key := res.keyByColumn[c.ColumnIndex]
			record.System.Cells[fmt.Sprintf("row_%d_col_%d", c.RowIndex, c.ColumnIndex)] = CellDetail{
				BBox:        bboxFrom(c.BBox),
				Confidence:  c.Confidence,
				Text:        fields[i][key],
				Header:      key,
				RowIndex:    c.RowIndex,
				ColumnIndex: c.ColumnIndex,
				Doubt:       c.Confidence < opts.DoubtConfidence,
			}
		}
		doc.Rows = append(doc.Rows, record)
	}

	return doc, nil
}

// universalCandidate is a key/value pairing destined for universal_fields
type universalCandidate struct {
	key   string
	value string
}
