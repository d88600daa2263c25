package textract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wordBlock(id, text string, left float64, conf float64, tt TextType) Block {
	return Block{
		ID:         id,
		BlockType:  BlockTypeWord,
		Text:       text,
		TextType:   tt,
		Confidence: conf,
		Geometry: Geometry{BoundingBox: BoundingBox{
			Left: left, Top: 0.1, Width: 0.05, Height: 0.02,
		}},
	}
}

func cellBlock(id string, row, col, span int, childIDs ...string) Block {
	b := Block{
		ID:          id,
		BlockType:   BlockTypeCell,
		RowIndex:    row,
		ColumnIndex: col,
		ColumnSpan:  span,
		Confidence:  99,
		Geometry: Geometry{BoundingBox: BoundingBox{
			Left: 0.1 * float64(col), Top: 0.1 * float64(row), Width: 0.08, Height: 0.03,
		}},
	}
	if len(childIDs) > 0 {
		b.Relationships = []Relationship{{Type: RelationshipChild, IDs: childIDs}}
	}
	return b
}

func TestParseDocument(t *testing.T) {
	t.Run("invalid JSON", func(t *testing.T) {
		_, err := ParseDocument([]byte("{not json"))
		assert.Error(t, err)
	})

	t.Run("no blocks", func(t *testing.T) {
		_, err := ParseDocument([]byte(`{"Blocks": []}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no blocks")
	})

	t.Run("valid", func(t *testing.T) {
		doc, err := ParseDocument([]byte(`{"Blocks": [{"Id": "w1", "BlockType": "WORD", "Text": "hello"}]}`))
		require.NoError(t, err)
		require.Len(t, doc.Blocks, 1)
		assert.Equal(t, BlockTypeWord, doc.Blocks[0].BlockType)
	})
}

func TestLoad_CellAggregation(t *testing.T) {
	// Words supplied right-to-left; the cell text must come out left-to-right.
	doc := &Document{Blocks: []Block{
		wordBlock("w2", "No", 0.15, 98, TextTypePrinted),
		wordBlock("w1", "Tree", 0.10, 96, TextTypePrinted),
		cellBlock("c1", 1, 1, 1, "w1", "w2"),
	}}

	result, err := Load(doc)
	require.NoError(t, err)
	require.Len(t, result.Cells, 1)

	cell := result.Cells[0]
	assert.Equal(t, "Tree No", cell.Text)
	assert.Equal(t, 1, cell.RowIndex)
	assert.Equal(t, 1, cell.ColumnIndex)
	assert.InDelta(t, 97.0, cell.Confidence, 0.001)
	assert.Equal(t, TextTypePrinted, cell.TextType)
	assert.False(t, cell.Merged)
}

func TestLoad_EmptyCell(t *testing.T) {
	doc := &Document{Blocks: []Block{cellBlock("c1", 2, 3, 1)}}

	result, err := Load(doc)
	require.NoError(t, err)
	require.Len(t, result.Cells, 1)
	assert.Equal(t, "", result.Cells[0].Text)
	assert.Equal(t, float64(0), result.Cells[0].Confidence)
}

func TestLoad_MixedTextType(t *testing.T) {
	doc := &Document{Blocks: []Block{
		wordBlock("w1", "Oak", 0.10, 95, TextTypePrinted),
		wordBlock("w2", "12", 0.16, 70, TextTypeHandwriting),
		cellBlock("c1", 1, 1, 1, "w1", "w2"),
	}}

	result, err := Load(doc)
	require.NoError(t, err)
	assert.Equal(t, TextTypeMixed, result.Cells[0].TextType)
}

func TestLoad_CellWithoutCoordinates(t *testing.T) {
	doc := &Document{Blocks: []Block{
		{ID: "c1", BlockType: BlockTypeCell, RowIndex: 0, ColumnIndex: 1},
	}}

	_, err := Load(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table coordinates")
}

func TestLoad_OrphanChildIsFatal(t *testing.T) {
	doc := &Document{Blocks: []Block{cellBlock("c1", 1, 1, 1, "missing")}}

	_, err := Load(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nonexistent child")
}

func TestLoad_KeyValuePair(t *testing.T) {
	keyWord := wordBlock("kw", "Surveyor:", 0.05, 99, TextTypePrinted)
	valWord := wordBlock("vw", "Asha", 0.20, 88, TextTypeHandwriting)
	value := Block{
		ID:            "v1",
		BlockType:     BlockTypeKeyValueSet,
		EntityTypes:   []string{"VALUE"},
		Confidence:    90,
		Geometry:      Geometry{BoundingBox: BoundingBox{Left: 0.2, Top: 0.05, Width: 0.1, Height: 0.02}},
		Relationships: []Relationship{{Type: RelationshipChild, IDs: []string{"vw"}}},
	}
	key := Block{
		ID:          "k1",
		BlockType:   BlockTypeKeyValueSet,
		EntityTypes: []string{"KEY"},
		Confidence:  95,
		Geometry:    Geometry{BoundingBox: BoundingBox{Left: 0.05, Top: 0.05, Width: 0.1, Height: 0.02}},
		Relationships: []Relationship{
			{Type: RelationshipChild, IDs: []string{"kw"}},
			{Type: RelationshipValue, IDs: []string{"v1"}},
		},
	}
	doc := &Document{Blocks: []Block{keyWord, valWord, value, key}}

	result, err := Load(doc)
	require.NoError(t, err)
	require.Len(t, result.KeyValues, 1)
	assert.Equal(t, "Surveyor:", result.KeyValues[0].Key)
	assert.Equal(t, "Asha", result.KeyValues[0].Value)
	assert.False(t, result.KeyValues[0].Unresolved)
	assert.Empty(t, result.Warnings)
}

func TestLoad_KeyWithoutValueIsRecovered(t *testing.T) {
	keyWord := wordBlock("kw", "Date:", 0.05, 99, TextTypePrinted)
	key := Block{
		ID:          "k1",
		BlockType:   BlockTypeKey,
		Confidence:  95,
		Geometry:    Geometry{BoundingBox: BoundingBox{Left: 0.05, Top: 0.05, Width: 0.1, Height: 0.02}},
		Relationships: []Relationship{
			{Type: RelationshipChild, IDs: []string{"kw"}},
			{Type: RelationshipValue, IDs: []string{"gone"}},
		},
	}
	doc := &Document{Blocks: []Block{keyWord, key}}

	result, err := Load(doc)
	require.NoError(t, err)
	require.Len(t, result.KeyValues, 1)
	assert.True(t, result.KeyValues[0].Unresolved)
	assert.Equal(t, "", result.KeyValues[0].Value)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "k1", result.Warnings[0].BlockID)
}

func TestLoad_MergedCellShadowsPlainCells(t *testing.T) {
	word := wordBlock("w1", "Canopy", 0.10, 99, TextTypePrinted)
	merged := Block{
		ID:          "m1",
		BlockType:   BlockTypeMergedCell,
		RowIndex:    1,
		ColumnIndex: 1,
		ColumnSpan:  2,
		Confidence:  99,
		Geometry:    Geometry{BoundingBox: BoundingBox{Left: 0.1, Top: 0.1, Width: 0.2, Height: 0.03}},
		Relationships: []Relationship{
			{Type: RelationshipChild, IDs: []string{"w1"}},
		},
	}
	doc := &Document{Blocks: []Block{
		word,
		merged,
		cellBlock("c1", 1, 1, 1),
		cellBlock("c2", 1, 2, 1),
		cellBlock("c3", 2, 1, 1),
	}}

	result, err := Load(doc)
	require.NoError(t, err)

	// Only the merged cell survives for row 1; row 2's cell is untouched.
	require.Len(t, result.Cells, 2)
	assert.True(t, result.Cells[0].Merged)
	assert.Equal(t, "Canopy", result.Cells[0].Text)
	assert.Equal(t, 2, result.Cells[1].RowIndex)

	require.Len(t, result.MergedCells, 1)
	assert.True(t, result.MergedCells[0].Covers(1, 2))
	assert.False(t, result.MergedCells[0].Covers(2, 1))
}

func TestLoad_CellsSortedByPosition(t *testing.T) {
	doc := &Document{Blocks: []Block{
		cellBlock("c3", 2, 1, 1),
		cellBlock("c2", 1, 2, 1),
		cellBlock("c1", 1, 1, 1),
	}}

	result, err := Load(doc)
	require.NoError(t, err)
	require.Len(t, result.Cells, 3)
	assert.Equal(t, []int{1, 1, 2}, []int{result.Cells[0].RowIndex, result.Cells[1].RowIndex, result.Cells[2].RowIndex})
	assert.Equal(t, []int{1, 2, 1}, []int{result.Cells[0].ColumnIndex, result.Cells[1].ColumnIndex, result.Cells[2].ColumnIndex})
}

func TestLoad_LinesCaptured(t *testing.T) {
	doc := &Document{Blocks: []Block{
		{ID: "l1", BlockType: BlockTypeLine, Text: "  Forest Survey 2024  ", Confidence: 97,
			Geometry: Geometry{BoundingBox: BoundingBox{Left: 0.1, Top: 0.02, Width: 0.3, Height: 0.02}}},
		{ID: "l2", BlockType: BlockTypeLine, Text: "   ", Confidence: 50},
		cellBlock("c1", 1, 1, 1),
	}}

	result, err := Load(doc)
	require.NoError(t, err)
	require.Len(t, result.Lines, 1)
	assert.Equal(t, "Forest Survey 2024", result.Lines[0].Text)
}
