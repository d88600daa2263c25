package grid

import (
	"encoding/json"
	"fmt"

	"github.com/fieldworkhq/formgrid/internal/textract"
)

// RowKind is the derived classification of an assembled row
type RowKind string

const (
	RowKindHeader      RowKind = "HEADER"
	RowKindData        RowKind = "DATA"
	RowKindMixed       RowKind = "MIXED"
	RowKindTitleLegend RowKind = "TITLE_LEGEND"
)

// BBox is a page-normalized rectangle in the intermediate document
type BBox struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func bboxFrom(b textract.BoundingBox) BBox {
	return BBox{Left: b.Left, Top: b.Top, Width: b.Width, Height: b.Height}
}

// Row is an ordered set of cells sharing a row index
type Row struct {
	Index   int
	Cells   []textract.Cell
	Kind    RowKind
	GroupID string
	// Text holds the joined cell text of a TITLE_LEGEND row for legend
	// emission.
	Text string
}

// MeanTop returns the average top coordinate of the row's cells,
// used as an ordering tie-breaker when row indices collide.
func (r *Row) MeanTop() float64 {
	if len(r.Cells) == 0 {
		return 0
	}
	var sum float64
	for _, c := range r.Cells {
		sum += c.BBox.Top
	}
	return sum / float64(len(r.Cells))
}

// BBox returns the union of the row's cell boxes
func (r *Row) BBox() textract.BoundingBox {
	if len(r.Cells) == 0 {
		return textract.BoundingBox{}
	}
	box := r.Cells[0].BBox
	for _, c := range r.Cells[1:] {
		box = box.Union(c.BBox)
	}
	return box
}

// HeaderEntry describes one resolved field of the header map
type HeaderEntry struct {
	FieldName   string   `json:"field_name"`
	ColumnIndex int      `json:"column_index"`
	Merged      bool     `json:"merged"`
	GroupID     string   `json:"group_id"`
	AltNames    []string `json:"alt_names,omitempty"`
}

// UniversalField is a form-wide key/value pair that applies to every row.
// ColumnIndex and RowIndex are always -1: they mark "applies to all rows",
// not a table position.
type UniversalField struct {
	Value       string `json:"value"`
	Valid       bool   `json:"valid"`
	GroupID     string `json:"group_id"`
	ColumnIndex int    `json:"column_index"`
	RowIndex    int    `json:"row_index"`
}

// CellDetail carries per-cell geometry and provenance for the viewer overlay
type CellDetail struct {
	BBox        BBox    `json:"bbox"`
	Confidence  float64 `json:"confidence"`
	Text        string  `json:"text"`
	Header      string  `json:"header"`
	RowIndex    int     `json:"row_index"`
	ColumnIndex int     `json:"column_index"`
	Doubt       bool    `json:"doubt"`
}

// RowSystem is the non-field metadata block of a data row record
type RowSystem struct {
	BBox     BBox                  `json:"bbox"`
	RowIndex int                   `json:"row_index"`
	GroupID  string                `json:"group_id"`
	Cells    map[string]CellDetail `json:"cells"`
	// LowConfidence lists field keys whose value could not be determined by
	// propagation and were left empty rather than fabricated.
	LowConfidence []string `json:"low_confidence,omitempty"`
}

// DataRowRecord is one entry of the document's rows array: a flat mapping
// from header key to cell text plus a "system" metadata block.
type DataRowRecord struct {
	Fields map[string]string
	System RowSystem
}

// MarshalJSON flattens Fields alongside the reserved "system" key.
func (r DataRowRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+1)
	for k, v := range r.Fields {
		if k == "system" {
			return nil, fmt.Errorf("field key %q collides with reserved system block", k)
		}
		out[k] = v
	}
	out["system"] = r.System
	return json.Marshal(out)
}

// UnmarshalJSON restores the flattened shape produced by MarshalJSON.
func (r *DataRowRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Fields = make(map[string]string, len(raw))
	for k, v := range raw {
		if k == "system" {
			if err := json.Unmarshal(v, &r.System); err != nil {
				return fmt.Errorf("invalid system block: %w", err)
			}
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return fmt.Errorf("field %q is not a string: %w", k, err)
		}
		r.Fields[k] = s
	}
	return nil
}

// Document is the intermediate representation consumed by the external viewer
type Document struct {
	TitleLegend     []string                  `json:"title_legend,omitempty"`
	UniversalFields map[string]UniversalField `json:"universal_fields"`
	HeaderMap       map[string]HeaderEntry    `json:"header_map"`
	Rows            []DataRowRecord           `json:"rows"`
}
