package grid

import (
	"sort"

	"github.com/fieldworkhq/formgrid/internal/textract"
)

// assembleRows groups cells strictly by their reported row index and orders
// the result top-to-bottom. Geometric clustering is a fallback only: when a
// cell's box sits on the same visual line as the previous row's cells but
// carries a higher row index, the lower index wins and the move is recorded
// as a disambiguation event.
func assembleRows(cells []textract.Cell, opts Options, diags *diagnostics) []Row {
	byIndex := make(map[int][]textract.Cell)
	for _, c := range cells {
		byIndex[c.RowIndex] = append(byIndex[c.RowIndex], c)
	}

	indices := sortedKeys(byIndex)

	// Compare each band against the nearest band that survived below it, so
	// a chain of bands collapsing onto one visual line all land in the same
	// row.
	if len(indices) > 0 {
		lower := indices[0]
		for _, higher := range indices[1:] {
			var kept []textract.Cell
			for _, c := range byIndex[higher] {
				if overlapsRow(c, byIndex[lower], opts.RowOverlapRatio) {
					diags.add(DiagRowIndexConflict, "",
						"cell at row %d col %d overlaps row %d; lower index wins",
						c.RowIndex, c.ColumnIndex, lower)
					c.RowIndex = lower
					byIndex[lower] = append(byIndex[lower], c)
					continue
				}
				kept = append(kept, c)
			}
			if len(kept) == 0 {
				delete(byIndex, higher)
				continue
			}
			byIndex[higher] = kept
			lower = higher
		}
	}

	rows := make([]Row, 0, len(byIndex))
	for _, idx := range sortedKeys(byIndex) {
		rowCells := byIndex[idx]
		sort.SliceStable(rowCells, func(i, j int) bool {
			if rowCells[i].ColumnIndex != rowCells[j].ColumnIndex {
				return rowCells[i].ColumnIndex < rowCells[j].ColumnIndex
			}
			return rowCells[i].BBox.Left < rowCells[j].BBox.Left
		})
		rows = append(rows, Row{Index: idx, Cells: rowCells})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Index != rows[j].Index {
			return rows[i].Index < rows[j].Index
		}
		return rows[i].MeanTop() < rows[j].MeanTop()
	})

	return rows
}

// overlapsRow reports whether the cell shares a visual line with any cell of
// the candidate row: vertical overlap exceeding the given fraction of the
// shorter cell's height.
func overlapsRow(c textract.Cell, row []textract.Cell, ratio float64) bool {
	for _, other := range row {
		shorter := c.BBox.Height
		if other.BBox.Height < shorter {
			shorter = other.BBox.Height
		}
		if shorter <= 0 {
			continue
		}
		if c.BBox.VerticalOverlap(other.BBox) > ratio*shorter {
			return true
		}
	}
	return false
}

func sortedKeys(m map[int][]textract.Cell) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
