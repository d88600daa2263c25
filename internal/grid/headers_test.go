package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldworkhq/formgrid/internal/textract"
)

func TestResolveHeaders_SingleRow(t *testing.T) {
	diags := &diagnostics{}
	headerRows := []Row{printedRow(1, "Tree No", "Species", "DBH (cm)")}

	res := resolveHeaders(headerRows, nil, 3, DefaultOptions(), diags)

	assert.Equal(t, []string{"tree_no", "species", "dbh_cm"}, res.orderedKeys)
	assert.Equal(t, "tree_no", res.keyByColumn[1])
	assert.Equal(t, "dbh_cm", res.keyByColumn[3])

	entry := res.entries["species"]
	assert.Equal(t, "Species", entry.FieldName)
	assert.Equal(t, 2, entry.ColumnIndex)
	assert.False(t, entry.Merged)
	assert.Empty(t, diags.entries)
}

func TestResolveHeaders_SpanningParentPrefixesLeaves(t *testing.T) {
	diags := &diagnostics{}
	parent := Row{Index: 1, Cells: []textract.Cell{
		tcell(1, 1, 1, "Tree No", textract.TextTypePrinted, 99),
		tcell(1, 2, 2, "Canopy Openness", textract.TextTypePrinted, 99),
	}}
	leaf := Row{Index: 2, Cells: []textract.Cell{
		tcell(2, 1, 1, "", textract.TextTypePrinted, 0),
		tcell(2, 2, 1, "North", textract.TextTypePrinted, 99),
		tcell(2, 3, 1, "South", textract.TextTypePrinted, 99),
	}}

	res := resolveHeaders([]Row{parent, leaf}, nil, 3, DefaultOptions(), diags)

	require.Contains(t, res.entries, "canopy_openness_north")
	require.Contains(t, res.entries, "canopy_openness_south")

	north := res.entries["canopy_openness_north"]
	assert.True(t, north.Merged)
	assert.Equal(t, "Canopy Openness / North", north.FieldName)
	assert.Equal(t, []string{"Canopy Openness", "North"}, north.AltNames)

	// The leaf column with no text under a non-spanning parent gets a
	// synthesized key.
	assert.Equal(t, "col_1", res.keyByColumn[1])
}

func TestResolveHeaders_GhostColumns(t *testing.T) {
	diags := &diagnostics{}
	headerRows := []Row{printedRow(1, "Tree No", "Species")}

	res := resolveHeaders(headerRows, nil, 4, DefaultOptions(), diags)

	assert.Equal(t, []string{"tree_no", "species", "col_3", "col_4"}, res.orderedKeys)
	assert.Equal(t, "col_4", res.keyByColumn[4])
}

func TestResolveHeaders_DuplicateKeysSuffixed(t *testing.T) {
	diags := &diagnostics{}
	headerRows := []Row{printedRow(1, "Remarks", "Species", "Remarks")}

	res := resolveHeaders(headerRows, nil, 3, DefaultOptions(), diags)

	assert.Equal(t, []string{"remarks", "species", "remarks_2"}, res.orderedKeys)

	found := false
	for _, d := range diags.entries {
		if d.Code == DiagDuplicateHeaderKey {
			found = true
		}
	}
	assert.True(t, found)
}

func TestResolveHeaders_SpanWithoutSubheadersDegrades(t *testing.T) {
	diags := &diagnostics{}
	parent := Row{Index: 1, Cells: []textract.Cell{
		tcell(1, 2, 2, "Soil Condition", textract.TextTypePrinted, 99),
	}}
	leaf := Row{Index: 2, Cells: []textract.Cell{
		tcell(2, 1, 1, "Tree No", textract.TextTypePrinted, 99),
	}}

	res := resolveHeaders([]Row{parent, leaf}, nil, 3, DefaultOptions(), diags)

	assert.Contains(t, res.entries, "soil_condition")
	assert.Equal(t, "soil_condition", res.keyByColumn[2])

	found := false
	for _, d := range diags.entries {
		if d.Code == DiagUnresolvableHeader {
			found = true
		}
	}
	assert.True(t, found, "a spanning header with no subheaders must be reported")
}

func TestResolveHeaders_EmptyInputs(t *testing.T) {
	res := resolveHeaders(nil, nil, 0, DefaultOptions(), &diagnostics{})
	assert.Empty(t, res.orderedKeys)

	res = resolveHeaders(nil, nil, 2, DefaultOptions(), &diagnostics{})
	assert.Equal(t, []string{"col_1", "col_2"}, res.orderedKeys)
}

func TestStitchFragments(t *testing.T) {
	opts := DefaultOptions()
	cell := tcell(1, 2, 1, "DBH", textract.TextTypePrinted, 99)

	continuation := textract.Line{
		Text:       "(cm)",
		Confidence: 95,
		BBox: textract.BoundingBox{
			Left:   cell.BBox.Right() + 0.01,
			Top:    cell.BBox.Top,
			Width:  0.04,
			Height: cell.BBox.Height,
		},
	}
	farAway := textract.Line{
		Text:       "unrelated",
		Confidence: 95,
		BBox:       textract.BoundingBox{Left: 0.9, Top: 0.9, Width: 0.05, Height: 0.02},
	}
	lowConf := continuation
	lowConf.Confidence = 60
	lowConf.Text = "(mm)"

	t.Run("adjacent line stitched", func(t *testing.T) {
		got := stitchFragments(cell, []textract.Line{farAway, continuation}, opts)
		assert.Equal(t, "DBH (cm)", got)
	})

	t.Run("low confidence line ignored", func(t *testing.T) {
		got := stitchFragments(cell, []textract.Line{lowConf}, opts)
		assert.Equal(t, "DBH", got)
	})

	t.Run("long labels never stitch", func(t *testing.T) {
		long := tcell(1, 2, 1, "Species Name", textract.TextTypePrinted, 99)
		got := stitchFragments(long, []textract.Line{continuation}, opts)
		assert.Equal(t, "Species Name", got)
	})

	t.Run("shortness counts runes, not bytes", func(t *testing.T) {
		accented := tcell(1, 2, 1, "Número", textract.TextTypePrinted, 99)
		got := stitchFragments(accented, []textract.Line{continuation}, opts)
		assert.Equal(t, "Número (cm)", got)
	})
}

func TestApplyFloatingParents(t *testing.T) {
	leaf := []textract.Cell{
		tcell(5, 2, 1, "North", textract.TextTypePrinted, 99),
		tcell(5, 3, 1, "South", textract.TextTypePrinted, 99),
		tcell(5, 4, 1, "DBH", textract.TextTypePrinted, 99),
	}
	leafTop := leaf[0].BBox.Top

	hover := textract.Line{
		Text:       "Canopy Openness",
		Confidence: 96,
		BBox: textract.BoundingBox{
			Left:   leaf[0].BBox.Left,
			Top:    leafTop - 0.03,
			Width:  leaf[1].BBox.Right() - leaf[0].BBox.Left,
			Height: 0.02,
		},
	}
	single := textract.Line{
		Text:       "Only one column",
		Confidence: 96,
		BBox: textract.BoundingBox{
			Left:   leaf[2].BBox.Left,
			Top:    leafTop - 0.03,
			Width:  0.02,
			Height: 0.02,
		},
	}

	prefixed := make(map[int]string)
	applyFloatingParents(leaf, []textract.Line{hover, single}, func(col int, parentText string) {
		prefixed[col] = parentText
	})

	assert.Equal(t, "Canopy Openness", prefixed[2])
	assert.Equal(t, "Canopy Openness", prefixed[3])
	assert.NotContains(t, prefixed, 4, "a line covering a single column center is not a parent")
}
