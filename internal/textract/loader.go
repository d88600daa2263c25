package textract

import (
	"fmt"
	"sort"
	"strings"
)

// Cell is the aggregated text for one table position, built from child WORD blocks
type Cell struct {
	Text        string
	RowIndex    int
	ColumnIndex int
	ColumnSpan  int
	Confidence  float64
	TextType    TextType
	BBox        BoundingBox
	Merged      bool
}

// MergedCellSpan records a MERGED_CELL block's coverage over physical columns
type MergedCellSpan struct {
	Text        string
	RowIndex    int
	ColumnIndex int
	ColumnSpan  int
	Confidence  float64
	BBox        BoundingBox
}

// Covers reports whether the span shadows the given table position
func (m MergedCellSpan) Covers(row, col int) bool {
	return row == m.RowIndex && col >= m.ColumnIndex && col < m.ColumnIndex+m.ColumnSpan
}

// KeyValuePair is a form-wide key/value pairing found outside the table
type KeyValuePair struct {
	Key        string
	Value      string
	Confidence float64
	KeyBBox    BoundingBox
	ValueBBox  BoundingBox
	// Unresolved marks a KEY block whose VALUE relationship could not be
	// followed; the pair is kept with an empty value.
	Unresolved bool
}

// Line is a detected text line used for header stitching and title capture
type Line struct {
	Text       string
	Confidence float64
	BBox       BoundingBox
}

// Warning records a recovered loader condition
type Warning struct {
	BlockID string
	Message string
}

// LoadResult is the flattened, typed view of a raw block collection
type LoadResult struct {
	Cells       []Cell
	MergedCells []MergedCellSpan
	KeyValues   []KeyValuePair
	Lines       []Line
	Warnings    []Warning
}

// Load flattens a block collection into cells, merged-cell spans, key/value
// pairs and lines. Structural malformation (orphan child references, cells
// without table coordinates) is fatal; a KEY without a resolvable VALUE is
// recovered as an empty-valued pair and reported as a warning.
func Load(doc *Document) (*LoadResult, error) {
	blockMap := make(map[string]*Block, len(doc.Blocks))
	for i := range doc.Blocks {
		b := &doc.Blocks[i]
		blockMap[b.ID] = b
	}

	result := &LoadResult{}

	for i := range doc.Blocks {
		b := &doc.Blocks[i]
		switch b.BlockType {
		case BlockTypeCell, BlockTypeMergedCell:
			cell, err := buildCell(b, blockMap)
			if err != nil {
				return nil, err
			}
			if b.BlockType == BlockTypeMergedCell {
				result.MergedCells = append(result.MergedCells, MergedCellSpan{
					Text:        cell.Text,
					RowIndex:    cell.RowIndex,
					ColumnIndex: cell.ColumnIndex,
					ColumnSpan:  cell.ColumnSpan,
					Confidence:  cell.Confidence,
					BBox:        cell.BBox,
				})
			}
			result.Cells = append(result.Cells, cell)

		case BlockTypeLine:
			text := strings.TrimSpace(b.Text)
			if text == "" {
				continue
			}
			result.Lines = append(result.Lines, Line{
				Text:       text,
				Confidence: b.Confidence,
				BBox:       b.Geometry.BoundingBox,
			})

		default:
			if b.IsKey() {
				pair, warn, err := buildKeyValue(b, blockMap)
				if err != nil {
					return nil, err
				}
				if warn != nil {
					result.Warnings = append(result.Warnings, *warn)
				}
				result.KeyValues = append(result.KeyValues, pair)
			}
		}
	}

	result.Cells = dropShadowedCells(result.Cells, result.MergedCells)

	sort.SliceStable(result.Cells, func(i, j int) bool {
		a, b := result.Cells[i], result.Cells[j]
		if a.RowIndex != b.RowIndex {
			return a.RowIndex < b.RowIndex
		}
		return a.ColumnIndex < b.ColumnIndex
	})

	return result, nil
}

// buildCell aggregates a CELL or MERGED_CELL block's child words. A cell with
// zero child words yields empty text and zero confidence, never an error.
func buildCell(b *Block, blockMap map[string]*Block) (Cell, error) {
	if b.RowIndex <= 0 || b.ColumnIndex <= 0 {
		return Cell{}, fmt.Errorf("cell block %s lacks table coordinates (row=%d col=%d)",
			b.ID, b.RowIndex, b.ColumnIndex)
	}

	words, err := childWords(b, blockMap)
	if err != nil {
		return Cell{}, err
	}

	// Words left-to-right; the sort is stable so engine order breaks ties.
	sort.SliceStable(words, func(i, j int) bool {
		return words[i].Geometry.BoundingBox.Left < words[j].Geometry.BoundingBox.Left
	})

	var (
		texts       []string
		confSum     float64
		printed     int
		handwritten int
	)
	for _, w := range words {
		texts = append(texts, w.Text)
		confSum += w.Confidence
		switch w.TextType {
		case TextTypeHandwriting:
			handwritten++
		default:
			printed++
		}
	}

	cell := Cell{
		Text:        strings.TrimSpace(strings.Join(texts, " ")),
		RowIndex:    b.RowIndex,
		ColumnIndex: b.ColumnIndex,
		ColumnSpan:  b.ColumnSpan,
		BBox:        b.Geometry.BoundingBox,
		Merged:      b.BlockType == BlockTypeMergedCell,
	}
	if cell.ColumnSpan < 1 {
		cell.ColumnSpan = 1
	}
	if len(words) > 0 {
		cell.Confidence = confSum / float64(len(words))
		switch {
		case handwritten > 0 && printed > 0:
			cell.TextType = TextTypeMixed
		case handwritten > 0:
			cell.TextType = TextTypeHandwriting
		default:
			cell.TextType = TextTypePrinted
		}
	}
	return cell, nil
}

// childWords resolves a block's CHILD relationships into WORD blocks.
// A child id that resolves to no block at all is structural malformation.
func childWords(b *Block, blockMap map[string]*Block) ([]*Block, error) {
	var words []*Block
	for _, rel := range b.Relationships {
		if rel.Type != RelationshipChild {
			continue
		}
		for _, id := range rel.IDs {
			child, ok := blockMap[id]
			if !ok {
				return nil, fmt.Errorf("block %s references nonexistent child %s", b.ID, id)
			}
			if child.BlockType == BlockTypeWord {
				words = append(words, child)
			}
		}
	}
	return words, nil
}

// buildKeyValue follows a KEY block's VALUE relationship and aggregates both
// sides' child words.
func buildKeyValue(b *Block, blockMap map[string]*Block) (KeyValuePair, *Warning, error) {
	keyWords, err := childWords(b, blockMap)
	if err != nil {
		return KeyValuePair{}, nil, err
	}

	pair := KeyValuePair{
		Key:        joinWords(keyWords),
		Confidence: b.Confidence,
		KeyBBox:    b.Geometry.BoundingBox,
	}

	var valueBlock *Block
	for _, rel := range b.Relationships {
		if rel.Type != RelationshipValue {
			continue
		}
		for _, id := range rel.IDs {
			if vb, ok := blockMap[id]; ok {
				valueBlock = vb
				break
			}
		}
	}

	if valueBlock == nil {
		pair.Unresolved = true
		warn := &Warning{
			BlockID: b.ID,
			Message: fmt.Sprintf("key %q has no resolvable value block", pair.Key),
		}
		return pair, warn, nil
	}

	valueWords, err := childWords(valueBlock, blockMap)
	if err != nil {
		return KeyValuePair{}, nil, err
	}
	pair.Value = joinWords(valueWords)
	pair.ValueBBox = valueBlock.Geometry.BoundingBox
	return pair, nil, nil
}

func joinWords(words []*Block) string {
	sort.SliceStable(words, func(i, j int) bool {
		return words[i].Geometry.BoundingBox.Left < words[j].Geometry.BoundingBox.Left
	})
	parts := make([]string, 0, len(words))
	for _, w := range words {
		if t := strings.TrimSpace(w.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// dropShadowedCells removes plain cells that spatially coincide with a merged
// cell span so the same table position is not counted twice.
func dropShadowedCells(cells []Cell, spans []MergedCellSpan) []Cell {
	if len(spans) == 0 {
		return cells
	}
	kept := cells[:0]
	for _, c := range cells {
		if c.Merged {
			kept = append(kept, c)
			continue
		}
		shadowed := false
		for _, s := range spans {
			if s.Covers(c.RowIndex, c.ColumnIndex) {
				shadowed = true
				break
			}
		}
		if !shadowed {
			kept = append(kept, c)
		}
	}
	return kept
}
