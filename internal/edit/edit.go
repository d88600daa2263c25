// Package edit implements the viewer's edit commands as pure functions over
// the intermediate document: every command deep-copies its input and returns
// a new document, so the pipeline's output is never mutated and the viewer
// exchanges discrete messages instead of sharing state.
package edit

import (
	"fmt"
	"sort"

	"github.com/tiendc/go-deepcopy"

	"github.com/fieldworkhq/formgrid/internal/grid"
)

// snapshot deep-copies a document so command results never alias their input
func snapshot(doc *grid.Document) (*grid.Document, error) {
	if doc == nil {
		return nil, fmt.Errorf("document cannot be nil")
	}
	var out grid.Document
	if err := deepcopy.Copy(&out, doc); err != nil {
		return nil, fmt.Errorf("failed to snapshot document: %w", err)
	}
	return &out, nil
}

// RenameHeaderKey renames a header map key and cascades the rename to every
// row's field key and every cell detail's header reference.
func RenameHeaderKey(doc *grid.Document, oldKey, newKey string) (*grid.Document, error) {
	if newKey == "" {
		return nil, fmt.Errorf("new key cannot be empty")
	}
	if newKey == "system" {
		return nil, fmt.Errorf("new key %q collides with the reserved system block", newKey)
	}

	out, err := snapshot(doc)
	if err != nil {
		return nil, err
	}

	entry, ok := out.HeaderMap[oldKey]
	if !ok {
		return nil, fmt.Errorf("header key %q not found", oldKey)
	}
	if _, taken := out.HeaderMap[newKey]; taken {
		return nil, fmt.Errorf("header key %q already exists", newKey)
	}

	delete(out.HeaderMap, oldKey)
	out.HeaderMap[newKey] = entry

	for i := range out.Rows {
		row := &out.Rows[i]
		if v, ok := row.Fields[oldKey]; ok {
			delete(row.Fields, oldKey)
			row.Fields[newKey] = v
		}
		for id, detail := range row.System.Cells {
			if detail.Header == oldKey {
				detail.Header = newKey
				row.System.Cells[id] = detail
			}
		}
		for j, k := range row.System.LowConfidence {
			if k == oldKey {
				row.System.LowConfidence[j] = newKey
			}
		}
		sort.Strings(row.System.LowConfidence)
	}

	return out, nil
}

// SetCellText replaces the text of one field in the row with the given row
// index, updating the matching cell detail as well.
func SetCellText(doc *grid.Document, rowIndex int, key, text string) (*grid.Document, error) {
	out, err := snapshot(doc)
	if err != nil {
		return nil, err
	}
	if _, ok := out.HeaderMap[key]; !ok {
		return nil, fmt.Errorf("header key %q not found", key)
	}

	for i := range out.Rows {
		row := &out.Rows[i]
		if row.System.RowIndex != rowIndex {
			continue
		}
		row.Fields[key] = text
		for id, detail := range row.System.Cells {
			if detail.Header == key {
				detail.Text = text
				row.System.Cells[id] = detail
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("no row with row index %d", rowIndex)
}

// SetUniversalValidity toggles a universal field's validity. Invalid fields
// are excluded from FlattenRows output.
func SetUniversalValidity(doc *grid.Document, key string, valid bool) (*grid.Document, error) {
	out, err := snapshot(doc)
	if err != nil {
		return nil, err
	}
	field, ok := out.UniversalFields[key]
	if !ok {
		return nil, fmt.Errorf("universal field %q not found", key)
	}
	field.Valid = valid
	out.UniversalFields[key] = field
	return out, nil
}

// FlattenRows copies every valid universal field into every row's field map
// and returns the flat row maps, the export shape for spreadsheet-like
// consumers. Row field values win over universal values on key collision.
func FlattenRows(doc *grid.Document) ([]map[string]string, error) {
	if doc == nil {
		return nil, fmt.Errorf("document cannot be nil")
	}
	flat := make([]map[string]string, 0, len(doc.Rows))
	for _, row := range doc.Rows {
		m := make(map[string]string, len(row.Fields)+len(doc.UniversalFields))
		for k, f := range doc.UniversalFields {
			if f.Valid {
				m[k] = f.Value
			}
		}
		for k, v := range row.Fields {
			m[k] = v
		}
		flat = append(flat, m)
	}
	return flat, nil
}
