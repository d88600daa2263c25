package textract

import (
	"encoding/json"
	"fmt"
)

// BlockType identifies the kind of block emitted by the OCR engine
type BlockType string

const (
	BlockTypePage        BlockType = "PAGE"
	BlockTypeLine        BlockType = "LINE"
	BlockTypeWord        BlockType = "WORD"
	BlockTypeTable       BlockType = "TABLE"
	BlockTypeCell        BlockType = "CELL"
	BlockTypeMergedCell  BlockType = "MERGED_CELL"
	BlockTypeKeyValueSet BlockType = "KEY_VALUE_SET"
	BlockTypeKey         BlockType = "KEY"
	BlockTypeValue       BlockType = "VALUE"
)

// TextType distinguishes machine-printed template text from handwritten entries
type TextType string

const (
	TextTypePrinted     TextType = "PRINTED"
	TextTypeHandwriting TextType = "HANDWRITING"
	TextTypeMixed       TextType = "MIXED"
)

// RelationshipType identifies how a block references other blocks
type RelationshipType string

const (
	RelationshipChild RelationshipType = "CHILD"
	RelationshipValue RelationshipType = "VALUE"
)

// BoundingBox is an axis-aligned page-normalized rectangle; all fields are in [0,1]
type BoundingBox struct {
	Width  float64 `json:"Width"`
	Height float64 `json:"Height"`
	Left   float64 `json:"Left"`
	Top    float64 `json:"Top"`
}

// Bottom returns the normalized bottom edge of the box
func (b BoundingBox) Bottom() float64 {
	return b.Top + b.Height
}

// Right returns the normalized right edge of the box
func (b BoundingBox) Right() float64 {
	return b.Left + b.Width
}

// CenterX returns the horizontal midpoint of the box
func (b BoundingBox) CenterX() float64 {
	return b.Left + b.Width/2
}

// VerticalOverlap returns the height of the vertical intersection of two boxes
func (b BoundingBox) VerticalOverlap(o BoundingBox) float64 {
	top := b.Top
	if o.Top > top {
		top = o.Top
	}
	bottom := b.Bottom()
	if o.Bottom() < bottom {
		bottom = o.Bottom()
	}
	if bottom <= top {
		return 0
	}
	return bottom - top
}

// Union returns the smallest box containing both boxes
func (b BoundingBox) Union(o BoundingBox) BoundingBox {
	left := b.Left
	if o.Left < left {
		left = o.Left
	}
	top := b.Top
	if o.Top < top {
		top = o.Top
	}
	right := b.Right()
	if o.Right() > right {
		right = o.Right()
	}
	bottom := b.Bottom()
	if o.Bottom() > bottom {
		bottom = o.Bottom()
	}
	return BoundingBox{Left: left, Top: top, Width: right - left, Height: bottom - top}
}

// Geometry carries the location of a recognized block on the page
type Geometry struct {
	BoundingBox BoundingBox `json:"BoundingBox"`
}

// Relationship links a block to related blocks by id
type Relationship struct {
	Type RelationshipType `json:"Type"`
	IDs  []string         `json:"Ids"`
}

// Block is the atomic OCR output unit. Blocks are read-only once parsed.
type Block struct {
	ID            string         `json:"Id"`
	BlockType     BlockType      `json:"BlockType"`
	Text          string         `json:"Text,omitempty"`
	TextType      TextType       `json:"TextType,omitempty"`
	Confidence    float64        `json:"Confidence"`
	Geometry      Geometry       `json:"Geometry"`
	RowIndex      int            `json:"RowIndex,omitempty"`
	ColumnIndex   int            `json:"ColumnIndex,omitempty"`
	RowSpan       int            `json:"RowSpan,omitempty"`
	ColumnSpan    int            `json:"ColumnSpan,omitempty"`
	EntityTypes   []string       `json:"EntityTypes,omitempty"`
	Relationships []Relationship `json:"Relationships,omitempty"`
}

// IsKey reports whether the block represents a form key. The engine emits
// either a dedicated KEY block or a KEY_VALUE_SET tagged with a KEY entity.
func (b *Block) IsKey() bool {
	if b.BlockType == BlockTypeKey {
		return true
	}
	if b.BlockType != BlockTypeKeyValueSet {
		return false
	}
	for _, et := range b.EntityTypes {
		if et == "KEY" {
			return true
		}
	}
	return false
}

// Document is a parsed block collection as produced by the OCR engine
type Document struct {
	Blocks []Block `json:"Blocks"`
}

// ParseDocument decodes a raw engine response into a Document
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse block document: %w", err)
	}
	if len(doc.Blocks) == 0 {
		return nil, fmt.Errorf("block document contains no blocks")
	}
	return &doc, nil
}
