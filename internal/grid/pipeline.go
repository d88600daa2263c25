// Package grid converts OCR table-extraction block collections for scanned
// paper forms into the structured rows + header map + universal fields
// intermediate representation read by the external viewer.
//
// The pipeline is a single-pass batch transformation: blocks are loaded into
// cells, cells assembled into ordered rows, rows classified, the header
// hierarchy resolved into flat field names, sparse identifier values
// propagated down the rows, and the final document emitted together with a
// structured diagnostics list. Classification ambiguity never raises; only
// structural malformation of the input does.
package grid

import (
	"strings"

	"github.com/fieldworkhq/formgrid/internal/textract"
)

// Result carries a conversion's document and its recovered conditions.
type Result struct {
	Document    *Document    `json:"document"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// Convert runs the full pipeline over a parsed block collection. Each call
// owns its own group-id counter, so conversions are independent and a batch
// caller may run documents in parallel.
func Convert(raw *textract.Document, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	diags := &diagnostics{}

	loaded, err := textract.Load(raw)
	if err != nil {
		return nil, err
	}
	for _, w := range loaded.Warnings {
		diags.addBlock(DiagUnresolvableKeyValue, w.BlockID, "%s", w.Message)
	}

	rows := assembleRows(loaded.Cells, opts, diags)

	ids := newGroupCounter()
	for i := range rows {
		rows[i].GroupID = ids.next("row")
	}

	classifyRows(rows, opts, diags)

	var (
		headerRows []Row
		dataRows   []Row
		titleRows  []Row
	)
	for _, r := range rows {
		switch r.Kind {
		case RowKindHeader:
			headerRows = append(headerRows, r)
		case RowKindData:
			dataRows = append(dataRows, r)
		case RowKindTitleLegend:
			titleRows = append(titleRows, r)
		}
	}

	totalCols := physicalColumns(rows)
	res := resolveHeaders(headerRows, loaded.Lines, totalCols, opts, diags)

	titleLegend, universals := leadContent(loaded, rows)
	// Title rows found inside the table band follow the free-floating lines,
	// which sit above the table on the page.
	for _, r := range titleRows {
		if r.Text != "" {
			titleLegend = append(titleLegend, r.Text)
		}
	}

	// Group ids for emitted entities are assigned inside the builder in
	// first-seen document order; row ids were assigned at assembly so the
	// classifier could reference them.
	doc, err := buildDocument(titleLegend, universals, res, dataRows, opts, ids, diags)
	if err != nil {
		return nil, err
	}

	return &Result{Document: doc, Diagnostics: diags.entries}, nil
}

// leadContent derives universal fields and title/legend text. KEY/VALUE
// block pairs take precedence; when the engine reported none, free-floating
// lines above the table band are split on the first colon instead.
func leadContent(loaded *textract.LoadResult, rows []Row) ([]string, []universalCandidate) {
	var universals []universalCandidate
	for _, kv := range loaded.KeyValues {
		universals = append(universals, universalCandidate{key: kv.Key, value: kv.Value})
	}

	tableTop := 1.0
	found := false
	for _, r := range rows {
		for _, c := range r.Cells {
			if c.BBox.Top < tableTop {
				tableTop = c.BBox.Top
			}
			found = true
		}
	}
	if !found {
		tableTop = 0
	}

	titles, kvLines := segmentLeadText(loaded.Lines, tableTop)
	// Colon lines matter only as a fallback; when the engine reported
	// KEY/VALUE pairs they already carry this content.
	if len(loaded.KeyValues) == 0 {
		for _, ln := range kvLines {
			k, v, _ := strings.Cut(ln.Text, ":")
			universals = append(universals, universalCandidate{key: k, value: strings.TrimSpace(v)})
		}
	}

	return titles, universals
}
