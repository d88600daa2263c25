package grid

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/fieldworkhq/formgrid/internal/textract"
)

// spanGroup is a header cell covering more than one physical column
type spanGroup struct {
	text       string
	start, end int // inclusive column range
}

func (g spanGroup) covers(col int) bool {
	return col >= g.start && col <= g.end
}

// resolved is the working state for one column while the header map is built
type resolved struct {
	key      string
	display  string
	merged   bool
	altNames []string
}

// headerResolution is the ordered outcome of resolving the header rows
type headerResolution struct {
	entries map[string]HeaderEntry
	// keyByColumn maps every physical column to exactly one header key.
	keyByColumn map[int]string
	// orderedKeys lists keys by ascending column index for deterministic
	// group-id assignment.
	orderedKeys []string
}

// resolveHeaders merges multi-row and merged-cell header hierarchies into
// flat snake_case field names covering every physical column.
//
// Spanning cells in the upper header rows prefix the leaf row's cell texts;
// columns without any header cell get a synthesized col_<index> key; key
// collisions are disambiguated with numeric suffixes in column order.
func resolveHeaders(headerRows []Row, lines []textract.Line, totalCols int, opts Options, diags *diagnostics) headerResolution {
	res := headerResolution{
		entries:     make(map[string]HeaderEntry),
		keyByColumn: make(map[int]string),
	}
	if totalCols == 0 {
		return res
	}

	spans, leaf := splitTiers(headerRows)

	leafText := make(map[int]string, len(leaf))
	for _, c := range leaf {
		leafText[c.ColumnIndex] = stitchFragments(c, lines, opts)
	}

	byColumn := make(map[int]resolved)

	for _, c := range leaf {
		var parts []string
		var alts []string
		for _, g := range spans {
			if g.covers(c.ColumnIndex) {
				if snake := SnakeCase(g.text, opts.Symbols); snake != "" {
					parts = append(parts, snake)
					alts = append(alts, g.text)
				}
			}
		}
		merged := len(parts) > 0
		display := leafText[c.ColumnIndex]
		if snake := SnakeCase(display, opts.Symbols); snake != "" {
			parts = append(parts, snake)
		}
		key := strings.Join(parts, "_")
		if key == "" {
			key = fmt.Sprintf("col_%d", c.ColumnIndex)
			merged = false
		}
		if merged {
			display = strings.Join(append(append([]string{}, alts...), display), " / ")
			alts = append(alts, leafText[c.ColumnIndex])
		}
		byColumn[c.ColumnIndex] = resolved{key: key, display: display, merged: merged, altNames: alts}
	}

	// A spanning cell whose range holds no leaf cell degrades to its own
	// text rather than erroring.
	for _, g := range spans {
		matched := false
		for col := g.start; col <= g.end; col++ {
			if _, ok := byColumn[col]; ok {
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		key := SnakeCase(g.text, opts.Symbols)
		if key == "" {
			key = fmt.Sprintf("col_%d", g.start)
		}
		byColumn[g.start] = resolved{key: key, display: g.text, merged: false}
		diags.add(DiagUnresolvableHeader, "",
			"spanning header %q over columns %d-%d has no subheaders", g.text, g.start, g.end)
	}

	applyFloatingParents(leaf, lines, func(col int, parentText string) {
		r, ok := byColumn[col]
		if !ok {
			return
		}
		parentKey := SnakeCase(parentText, opts.Symbols)
		if parentKey == "" || strings.HasPrefix(r.key, parentKey+"_") {
			return
		}
		r.key = parentKey + "_" + r.key
		r.display = parentText + " / " + r.display
		r.merged = true
		r.altNames = append(r.altNames, parentText)
		byColumn[col] = r
	})

	// Ghost columns: physically present, never labeled.
	for col := 1; col <= totalCols; col++ {
		if _, ok := byColumn[col]; !ok {
			byColumn[col] = resolved{key: fmt.Sprintf("col_%d", col), display: fmt.Sprintf("col_%d", col)}
		}
	}

	// Unique keys, numeric suffix in column order on collision.
	seen := make(map[string]int)
	cols := make([]int, 0, len(byColumn))
	for col := range byColumn {
		cols = append(cols, col)
	}
	sort.Ints(cols)
	for _, col := range cols {
		r := byColumn[col]
		key := r.key
		seen[key]++
		if n := seen[key]; n > 1 {
			key = fmt.Sprintf("%s_%d", key, n)
			diags.add(DiagDuplicateHeaderKey, "",
				"header key %q already used; column %d renamed to %q", r.key, col, key)
		}
		res.entries[key] = HeaderEntry{
			FieldName:   r.display,
			ColumnIndex: col,
			Merged:      r.merged,
			AltNames:    r.altNames,
		}
		res.keyByColumn[col] = key
		res.orderedKeys = append(res.orderedKeys, key)
	}

	return res
}

// splitTiers separates spanning groups in the upper header rows from the
// bottom-most (leaf) header row's cells. Spanning cells in the leaf row
// itself also define groups so a lone header row with merged cells still
// resolves.
func splitTiers(headerRows []Row) ([]spanGroup, []textract.Cell) {
	if len(headerRows) == 0 {
		return nil, nil
	}
	var spans []spanGroup
	for _, row := range headerRows[:len(headerRows)-1] {
		for _, c := range row.Cells {
			if c.ColumnSpan > 1 && strings.TrimSpace(c.Text) != "" {
				spans = append(spans, spanGroup{
					text:  c.Text,
					start: c.ColumnIndex,
					end:   c.ColumnIndex + c.ColumnSpan - 1,
				})
			}
		}
	}
	leafRow := headerRows[len(headerRows)-1]
	leaf := make([]textract.Cell, 0, len(leafRow.Cells))
	for _, c := range leafRow.Cells {
		if c.ColumnSpan > 1 && len(headerRows) > 1 && strings.TrimSpace(c.Text) != "" {
			// Wide cells in the leaf row of a multi-row header are labels
			// for their own span, not subheaders.
			spans = append(spans, spanGroup{
				text:  c.Text,
				start: c.ColumnIndex,
				end:   c.ColumnIndex + c.ColumnSpan - 1,
			})
			continue
		}
		leaf = append(leaf, c)
	}
	return spans, leaf
}

// stitchFragments repairs OCR-split header labels: a very short leaf cell is
// extended with high-confidence lines immediately to its right that share
// its baseline.
func stitchFragments(c textract.Cell, lines []textract.Line, opts Options) string {
	base := strings.TrimSpace(c.Text)
	if base == "" || utf8.RuneCountInString(base) > 6 {
		return base
	}
	parts := []string{base}
	for _, ln := range lines {
		if ln.Confidence < 85 {
			continue
		}
		gap := ln.BBox.Left - c.BBox.Right()
		if gap < 0 || gap > opts.StitchMaxGap {
			continue
		}
		shorter := c.BBox.Height
		if ln.BBox.Height < shorter {
			shorter = ln.BBox.Height
		}
		if shorter > 0 && c.BBox.VerticalOverlap(ln.BBox) >= 0.5*shorter {
			parts = append(parts, ln.Text)
		}
	}
	return strings.Join(parts, " ")
}

// applyFloatingParents handles parent labels the table model missed: a
// high-confidence line hovering just above the leaf header band whose width
// covers two or more leaf column centers acts as a spanning parent for those
// columns.
func applyFloatingParents(leaf []textract.Cell, lines []textract.Line, prefix func(col int, parentText string)) {
	if len(leaf) == 0 {
		return
	}

	var (
		leafTop = leaf[0].BBox.Top
		heightS float64
		widthS  float64
	)
	for _, c := range leaf {
		if c.BBox.Top < leafTop {
			leafTop = c.BBox.Top
		}
		heightS += c.BBox.Height
		widthS += c.BBox.Width
	}
	leafH := heightS / float64(len(leaf))
	pad := 0.6 * (widthS / float64(len(leaf)))
	if pad < 0.015 {
		pad = 0.015
	}

	for _, ln := range lines {
		if ln.Confidence < 90 {
			continue
		}
		bottom := ln.BBox.Bottom()
		if bottom < leafTop-2*leafH || bottom > leafTop+0.5*leafH {
			continue
		}
		var covered []int
		for _, c := range leaf {
			cx := c.BBox.CenterX()
			if cx >= ln.BBox.Left-pad && cx <= ln.BBox.Right()+pad {
				covered = append(covered, c.ColumnIndex)
			}
		}
		if len(covered) < 2 {
			continue
		}
		sort.Ints(covered)
		for _, col := range covered {
			prefix(col, ln.Text)
		}
	}
}
