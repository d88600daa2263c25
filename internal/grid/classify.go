package grid

import (
	"strings"

	"github.com/fieldworkhq/formgrid/internal/textract"
)

// rowScores holds the per-row heuristics the classifier decides on
type rowScores struct {
	density      float64
	printedRatio float64
	alphaRatio   float64
	meanConf     float64
	dominant     textract.TextType
}

// scoreRow computes density, printed ratio, alphabetic ratio, mean confidence
// and the dominant text type over the row's non-empty cells.
func scoreRow(row Row, totalCols int) rowScores {
	var (
		filledSpan  int
		nonEmpty    int
		printed     int
		handwritten int
		mixed       int
		alpha       int
		confSum     float64
	)
	for _, c := range row.Cells {
		if strings.TrimSpace(c.Text) == "" {
			continue
		}
		confSum += c.Confidence
		nonEmpty++
		filledSpan += c.ColumnSpan
		switch c.TextType {
		case textract.TextTypeHandwriting:
			handwritten++
		case textract.TextTypeMixed:
			mixed++
		default:
			printed++
		}
		if isMajorityAlpha(c.Text) {
			alpha++
		}
	}

	s := rowScores{}
	if totalCols > 0 {
		s.density = float64(filledSpan) / float64(totalCols)
	}
	if nonEmpty > 0 {
		s.printedRatio = float64(printed) / float64(nonEmpty)
		s.alphaRatio = float64(alpha) / float64(nonEmpty)
	}
	if nonEmpty > 0 {
		// Empty cells carry no engine confidence; averaging them in would
		// punish header rows for unlabeled columns.
		s.meanConf = confSum / float64(nonEmpty)
	}
	switch {
	case nonEmpty == 0:
		s.dominant = ""
	case mixed > 0 || (handwritten > 0 && printed > 0):
		s.dominant = textract.TextTypeMixed
	case handwritten > 0:
		s.dominant = textract.TextTypeHandwriting
	default:
		s.dominant = textract.TextTypePrinted
	}
	return s
}

// classifyRows tags each assembled table row as HEADER, DATA or MIXED.
// Printed-versus-handwritten is the most reliable signal available for
// separating template headers from human-filled answers; density and
// confidence back it up. Once a row is DATA no later row becomes HEADER.
func classifyRows(rows []Row, opts Options, diags *diagnostics) {
	totalCols := physicalColumns(rows)

	dataSeen := false
	scores := make([]rowScores, len(rows))
	for i := range rows {
		scores[i] = scoreRow(rows[i], totalCols)
		s := scores[i]

		switch {
		case s.dominant == textract.TextTypeHandwriting || s.dominant == textract.TextTypeMixed:
			rows[i].Kind = RowKindData
			dataSeen = true
		case !dataSeen && s.density >= opts.RowDensity && s.meanConf > opts.HeaderConfidence:
			rows[i].Kind = RowKindHeader
		default:
			rows[i].Kind = RowKindMixed
		}
	}

	resolveMixed(rows, diags)
}

// resolveMixed settles MIXED rows by position: a MIXED row adjacent to a
// confirmed header block and ahead of the first data row becomes HEADER; a
// MIXED row sitting above both the header block and the data becomes
// TITLE_LEGEND; anything else becomes DATA. Each resolution is recorded for
// audit.
func resolveMixed(rows []Row, diags *diagnostics) {
	firstData := len(rows)
	firstHeader := len(rows)
	for i, r := range rows {
		if r.Kind == RowKindData && i < firstData {
			firstData = i
		}
		if r.Kind == RowKindHeader && i < firstHeader {
			firstHeader = i
		}
	}

	for i := range rows {
		if rows[i].Kind != RowKindMixed {
			continue
		}
		adjacentHeader := (i > 0 && rows[i-1].Kind == RowKindHeader) ||
			(i+1 < len(rows) && rows[i+1].Kind == RowKindHeader)
		switch {
		case adjacentHeader && i < firstData:
			rows[i].Kind = RowKindHeader
			diags.add(DiagRowClassification, rows[i].GroupID,
				"ambiguous row %d resolved to HEADER by adjacency", rows[i].Index)
		case i < firstHeader && i < firstData:
			rows[i].Kind = RowKindTitleLegend
			rows[i].Text = joinRowText(rows[i])
			diags.add(DiagRowClassification, rows[i].GroupID,
				"ambiguous row %d above the table resolved to TITLE_LEGEND", rows[i].Index)
		default:
			rows[i].Kind = RowKindData
			diags.add(DiagRowClassification, rows[i].GroupID,
				"ambiguous row %d resolved to DATA", rows[i].Index)
		}
	}
}

// joinRowText concatenates a row's non-empty cell texts in column order.
func joinRowText(r Row) string {
	var parts []string
	for _, c := range r.Cells {
		if t := strings.TrimSpace(c.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// physicalColumns returns the widest column reach observed in the table.
func physicalColumns(rows []Row) int {
	max := 0
	for _, r := range rows {
		for _, c := range r.Cells {
			if reach := c.ColumnIndex + c.ColumnSpan - 1; reach > max {
				max = reach
			}
		}
	}
	return max
}

// segmentLeadText splits free-floating lines above the table band into title
// and legend text and key/value candidates. Lines containing a colon become
// universal-field candidates; the rest join the title legend. Only used when
// line geometry is available.
func segmentLeadText(lines []textract.Line, tableTop float64) (titles []string, kvCandidates []textract.Line) {
	for _, ln := range lines {
		if ln.BBox.Bottom() > tableTop {
			continue
		}
		if strings.Contains(ln.Text, ":") {
			kvCandidates = append(kvCandidates, ln)
			continue
		}
		titles = append(titles, ln.Text)
	}
	return titles, kvCandidates
}
