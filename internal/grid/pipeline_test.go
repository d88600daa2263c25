package grid

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldworkhq/formgrid/internal/textract"
)

// surveyDocument builds a small but complete block collection: a title line,
// one engine key/value pair, a printed header row and two handwritten data
// rows with a sparse identifier column.
func surveyDocument() *textract.Document {
	var blocks []textract.Block
	nextID := 0
	id := func() string {
		nextID++
		return fmt.Sprintf("b%d", nextID)
	}

	word := func(text string, left, top float64, conf float64, tt textract.TextType) string {
		wid := id()
		blocks = append(blocks, textract.Block{
			ID:         wid,
			BlockType:  textract.BlockTypeWord,
			Text:       text,
			TextType:   tt,
			Confidence: conf,
			Geometry: textract.Geometry{BoundingBox: textract.BoundingBox{
				Left: left, Top: top, Width: 0.04, Height: 0.02,
			}},
		})
		return wid
	}

	cell := func(row, col int, top float64, wordIDs ...string) {
		b := textract.Block{
			ID:          id(),
			BlockType:   textract.BlockTypeCell,
			RowIndex:    row,
			ColumnIndex: col,
			ColumnSpan:  1,
			Confidence:  99,
			Geometry: textract.Geometry{BoundingBox: textract.BoundingBox{
				Left: 0.1 * float64(col), Top: top, Width: 0.09, Height: 0.03,
			}},
		}
		if len(wordIDs) > 0 {
			b.Relationships = []textract.Relationship{{Type: textract.RelationshipChild, IDs: wordIDs}}
		}
		blocks = append(blocks, b)
	}

	// Title line well above the table band.
	blocks = append(blocks, textract.Block{
		ID:         id(),
		BlockType:  textract.BlockTypeLine,
		Text:       "Forest Inventory 2024",
		Confidence: 98,
		Geometry: textract.Geometry{BoundingBox: textract.BoundingBox{
			Left: 0.1, Top: 0.02, Width: 0.3, Height: 0.02,
		}},
	})

	// Engine key/value pair: Block # -> 7.
	kw := word("Block #", 0.05, 0.08, 99, textract.TextTypePrinted)
	vw := word("7", 0.20, 0.08, 92, textract.TextTypeHandwriting)
	valueID := id()
	blocks = append(blocks, textract.Block{
		ID:          valueID,
		BlockType:   textract.BlockTypeKeyValueSet,
		EntityTypes: []string{"VALUE"},
		Confidence:  92,
		Geometry: textract.Geometry{BoundingBox: textract.BoundingBox{
			Left: 0.2, Top: 0.08, Width: 0.04, Height: 0.02,
		}},
		Relationships: []textract.Relationship{{Type: textract.RelationshipChild, IDs: []string{vw}}},
	})
	blocks = append(blocks, textract.Block{
		ID:          id(),
		BlockType:   textract.BlockTypeKeyValueSet,
		EntityTypes: []string{"KEY"},
		Confidence:  97,
		Geometry: textract.Geometry{BoundingBox: textract.BoundingBox{
			Left: 0.05, Top: 0.08, Width: 0.08, Height: 0.02,
		}},
		Relationships: []textract.Relationship{
			{Type: textract.RelationshipChild, IDs: []string{kw}},
			{Type: textract.RelationshipValue, IDs: []string{valueID}},
		},
	})

	// Header row: printed, high confidence.
	cell(1, 1, 0.30, word("Tree", 0.10, 0.30, 98, textract.TextTypePrinted), word("No", 0.14, 0.30, 98, textract.TextTypePrinted))
	cell(1, 2, 0.30, word("Species", 0.20, 0.30, 99, textract.TextTypePrinted))
	cell(1, 3, 0.30, word("DBH (cm)", 0.30, 0.30, 97, textract.TextTypePrinted))

	// Data rows: handwriting, tree_no only filled on the first row.
	cell(2, 1, 0.40, word("1", 0.10, 0.40, 95, textract.TextTypeHandwriting))
	cell(2, 2, 0.40, word("Oak", 0.20, 0.40, 90, textract.TextTypeHandwriting))
	cell(2, 3, 0.40, word("34.2", 0.30, 0.40, 93, textract.TextTypeHandwriting))

	cell(3, 1, 0.50)
	cell(3, 2, 0.50, word("Ash", 0.20, 0.50, 88, textract.TextTypeHandwriting))
	cell(3, 3, 0.50, word("21.0", 0.30, 0.50, 60, textract.TextTypeHandwriting))

	return &textract.Document{Blocks: blocks}
}

func TestConvert_FullDocument(t *testing.T) {
	result, err := Convert(surveyDocument(), DefaultOptions())
	require.NoError(t, err)
	doc := result.Document

	assert.Equal(t, []string{"Forest Inventory 2024"}, doc.TitleLegend)

	require.Contains(t, doc.UniversalFields, "block_no", "the # symbol must normalize to no")
	block := doc.UniversalFields["block_no"]
	assert.Equal(t, "7", block.Value)
	assert.True(t, block.Valid)
	assert.Equal(t, -1, block.ColumnIndex)
	assert.Equal(t, -1, block.RowIndex)

	require.Len(t, doc.HeaderMap, 3)
	assert.Contains(t, doc.HeaderMap, "tree_no")
	assert.Contains(t, doc.HeaderMap, "species")
	assert.Contains(t, doc.HeaderMap, "dbh_cm")

	require.Len(t, doc.Rows, 2)
	assert.Equal(t, "Oak", doc.Rows[0].Fields["species"])
	assert.Equal(t, "Ash", doc.Rows[1].Fields["species"])

	// Every field key of every row resolves in the header map.
	for _, row := range doc.Rows {
		for key := range row.Fields {
			assert.Contains(t, doc.HeaderMap, key)
		}
	}
}

func TestConvert_IdentifierPropagation(t *testing.T) {
	result, err := Convert(surveyDocument(), DefaultOptions())
	require.NoError(t, err)

	rows := result.Document.Rows
	require.Len(t, rows, 2)
	assert.Equal(t, "1", rows[0].Fields["tree_no"])
	assert.Equal(t, "1", rows[1].Fields["tree_no"], "tree_no matches the *_no convention and forward-fills")
}

func TestConvert_DoubtFlags(t *testing.T) {
	result, err := Convert(surveyDocument(), DefaultOptions())
	require.NoError(t, err)

	rows := result.Document.Rows
	require.Len(t, rows, 2)

	sure := rows[0].System.Cells["row_2_col_3"]
	assert.False(t, sure.Doubt)

	smudged := rows[1].System.Cells["row_3_col_3"]
	assert.True(t, smudged.Doubt)
	assert.Equal(t, "dbh_cm", smudged.Header)
}

func TestConvert_GroupIDsUnique(t *testing.T) {
	result, err := Convert(surveyDocument(), DefaultOptions())
	require.NoError(t, err)
	doc := result.Document

	seen := make(map[string]bool)
	record := func(id string) {
		assert.NotEmpty(t, id)
		assert.False(t, seen[id], "group id %s assigned twice", id)
		seen[id] = true
	}

	for _, f := range doc.UniversalFields {
		record(f.GroupID)
	}
	for _, h := range doc.HeaderMap {
		record(h.GroupID)
	}
	for _, r := range doc.Rows {
		record(r.System.GroupID)
	}
}

func TestConvert_Deterministic(t *testing.T) {
	first, err := Convert(surveyDocument(), DefaultOptions())
	require.NoError(t, err)
	second, err := Convert(surveyDocument(), DefaultOptions())
	require.NoError(t, err)

	a, err := json.Marshal(first.Document)
	require.NoError(t, err)
	b, err := json.Marshal(second.Document)
	require.NoError(t, err)
	assert.Equal(t, a, b, "identical input must serialize to identical bytes")

	assert.Equal(t, first.Diagnostics, second.Diagnostics)
}

func TestConvert_NoKeyValuesFallsBackToColonLines(t *testing.T) {
	doc := surveyDocument()

	// Strip the engine key/value pair and hand the same content over as a
	// free-floating line above the table.
	var kept []textract.Block
	for _, b := range doc.Blocks {
		if b.BlockType == textract.BlockTypeKeyValueSet {
			continue
		}
		kept = append(kept, b)
	}
	kept = append(kept, textract.Block{
		ID:         "colon1",
		BlockType:  textract.BlockTypeLine,
		Text:       "Weather: overcast",
		Confidence: 96,
		Geometry: textract.Geometry{BoundingBox: textract.BoundingBox{
			Left: 0.1, Top: 0.06, Width: 0.2, Height: 0.02,
		}},
	})
	doc.Blocks = kept

	result, err := Convert(doc, DefaultOptions())
	require.NoError(t, err)

	require.Contains(t, result.Document.UniversalFields, "weather")
	assert.Equal(t, "overcast", result.Document.UniversalFields["weather"].Value)
}

func TestConvert_InTableTitleRowJoinsLegend(t *testing.T) {
	word := func(id, text string, left, top float64, tt textract.TextType) textract.Block {
		return textract.Block{
			ID:         id,
			BlockType:  textract.BlockTypeWord,
			Text:       text,
			TextType:   tt,
			Confidence: 95,
			Geometry: textract.Geometry{BoundingBox: textract.BoundingBox{
				Left: left, Top: top, Width: 0.04, Height: 0.02,
			}},
		}
	}
	cell := func(id string, row, col int, top float64, wordID string) textract.Block {
		return textract.Block{
			ID:          id,
			BlockType:   textract.BlockTypeCell,
			RowIndex:    row,
			ColumnIndex: col,
			ColumnSpan:  1,
			Confidence:  99,
			Geometry: textract.Geometry{BoundingBox: textract.BoundingBox{
				Left: 0.1 * float64(col), Top: top, Width: 0.09, Height: 0.03,
			}},
			Relationships: []textract.Relationship{{Type: textract.RelationshipChild, IDs: []string{wordID}}},
		}
	}

	// A printed title typed into the first table row, then handwritten data
	// with no header row at all.
	doc := &textract.Document{Blocks: []textract.Block{
		word("w1", "Plot Survey Sheet", 0.10, 0.10, textract.TextTypePrinted),
		cell("c1", 1, 1, 0.10, "w1"),
		word("w2", "1", 0.10, 0.20, textract.TextTypeHandwriting),
		cell("c2", 2, 1, 0.20, "w2"),
		word("w3", "Oak", 0.20, 0.20, textract.TextTypeHandwriting),
		cell("c3", 2, 2, 0.20, "w3"),
		word("w4", "34.2", 0.30, 0.20, textract.TextTypeHandwriting),
		cell("c4", 2, 3, 0.20, "w4"),
	}}

	result, err := Convert(doc, DefaultOptions())
	require.NoError(t, err)

	got := result.Document
	assert.Equal(t, []string{"Plot Survey Sheet"}, got.TitleLegend,
		"a printed lead row with no header below is legend text, not a data row")
	require.Len(t, got.Rows, 1)
	assert.Contains(t, got.HeaderMap, "col_1")
}

func TestConvert_RowRecordJSONRoundTrip(t *testing.T) {
	result, err := Convert(surveyDocument(), DefaultOptions())
	require.NoError(t, err)

	payload, err := json.Marshal(result.Document)
	require.NoError(t, err)

	var restored Document
	require.NoError(t, json.Unmarshal(payload, &restored))

	require.Len(t, restored.Rows, len(result.Document.Rows))
	for i, row := range restored.Rows {
		assert.Equal(t, result.Document.Rows[i].Fields, row.Fields)
		assert.Equal(t, result.Document.Rows[i].System.GroupID, row.System.GroupID)
		assert.Equal(t, result.Document.Rows[i].System.RowIndex, row.System.RowIndex)
	}

	// The row object is flat: field keys live beside the system block.
	var rawRows struct {
		Rows []map[string]json.RawMessage `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(payload, &rawRows))
	require.NotEmpty(t, rawRows.Rows)
	assert.Contains(t, rawRows.Rows[0], "species")
	assert.Contains(t, rawRows.Rows[0], "system")
}

func TestConvert_MalformedInputIsFatal(t *testing.T) {
	doc := &textract.Document{Blocks: []textract.Block{
		{ID: "c1", BlockType: textract.BlockTypeCell, RowIndex: 1, ColumnIndex: 1, ColumnSpan: 1,
			Relationships: []textract.Relationship{{Type: textract.RelationshipChild, IDs: []string{"ghost"}}}},
	}}

	_, err := Convert(doc, DefaultOptions())
	assert.Error(t, err)
}

func TestConvert_UnresolvedKeyValueReported(t *testing.T) {
	doc := surveyDocument()
	doc.Blocks = append(doc.Blocks, textract.Block{
		ID:         "orphan-key",
		BlockType:  textract.BlockTypeKey,
		Confidence: 95,
		Geometry: textract.Geometry{BoundingBox: textract.BoundingBox{
			Left: 0.05, Top: 0.12, Width: 0.08, Height: 0.02,
		}},
		Relationships: []textract.Relationship{
			{Type: textract.RelationshipValue, IDs: []string{"nowhere"}},
		},
	})

	result, err := Convert(doc, DefaultOptions())
	require.NoError(t, err)

	found := false
	for _, d := range result.Diagnostics {
		if d.Code == DiagUnresolvableKeyValue && d.BlockID == "orphan-key" {
			found = true
		}
	}
	assert.True(t, found)
}
