package grid

// Options holds the pipeline's heuristic thresholds. Every field has a
// working default; zero values are replaced by DefaultOptions values so a
// partially filled struct is safe to pass.
type Options struct {
	// RowDensity is the minimum fraction of physical columns that must be
	// non-empty for a row to qualify as a header row.
	RowDensity float64

	// HeaderConfidence is the minimum mean OCR confidence for a row to
	// qualify as a header row.
	HeaderConfidence float64

	// DoubtConfidence marks individual cells below this confidence as
	// doubtful for the viewer's color coding. Purely presentational.
	DoubtConfidence float64

	// RowOverlapRatio is the fraction of the shorter cell's height that two
	// cells must vertically overlap before inconsistent row indices are
	// treated as a conflict. An inferred default, tunable rather than a
	// verified contract.
	RowOverlapRatio float64

	// StitchMaxGap is the maximum page-relative horizontal gap when repairing
	// OCR-split header labels from nearby lines.
	StitchMaxGap float64

	// IdentifierColumns names resolved header keys whose values persist down
	// through rows that omit them. When empty, keys matching a naming
	// convention (block, plot, *_no, *_id) are used instead.
	IdentifierColumns []string

	// GroupConstantColumns names resolved header keys recorded once per
	// identifier block and filled into the block's remaining rows.
	GroupConstantColumns []string

	// Symbols maps characters to replacement tokens during header key
	// normalization, applied before non-alphanumeric folding.
	Symbols map[string]string
}

// DefaultOptions returns the documented default thresholds.
func DefaultOptions() Options {
	return Options{
		RowDensity:       0.6,
		HeaderConfidence: 90,
		DoubtConfidence:  80,
		RowOverlapRatio:  0.5,
		StitchMaxGap:     0.08,
		Symbols:          DefaultSymbols(),
	}
}

// DefaultSymbols returns the default symbol substitution table used when
// generating header keys.
func DefaultSymbols() map[string]string {
	return map[string]string{
		"#": "no",
		"%": "pct",
		"&": "and",
		"@": "at",
		"°": "deg",
	}
}

// withDefaults fills zero-valued thresholds from DefaultOptions.
func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.RowDensity == 0 {
		o.RowDensity = def.RowDensity
	}
	if o.HeaderConfidence == 0 {
		o.HeaderConfidence = def.HeaderConfidence
	}
	if o.DoubtConfidence == 0 {
		o.DoubtConfidence = def.DoubtConfidence
	}
	if o.RowOverlapRatio == 0 {
		o.RowOverlapRatio = def.RowOverlapRatio
	}
	if o.StitchMaxGap == 0 {
		o.StitchMaxGap = def.StitchMaxGap
	}
	if o.Symbols == nil {
		o.Symbols = def.Symbols
	}
	return o
}
