package descriptions

// Comprehensive tool descriptions with practical examples and use cases

const (
	// Conversion tools

	FormConvertFileDescription = `Convert an OCR block document for a scanned paper form into structured rows.

**When to use:** You have table-extraction engine output (WORD/CELL/MERGED_CELL blocks with geometry and confidence) saved as JSON and want the structured intermediate document the viewer renders.

**Why it's useful:** Separates printed headers from handwritten answers, resolves merged header hierarchies into flat snake_case field names, fills sparse identifier columns down the rows, and reports every recovered ambiguity as a diagnostic instead of failing.

**Examples:**
• Convert a field survey sheet: "Convert 001_layout.json into structured rows"
• Digitize a batch: "Convert every layout file found by form_search_directory"

**Best practices:** Run form_validate_file first for files of unknown origin; a non-empty diagnostics list means the form needed heuristic recovery and is worth reviewing in the viewer.`

	FormValidateFileDescription = `Verify a block document parses and declares the block types the converter needs.

**When to use:** Before converting files of unknown origin, especially in automated batches.

**Why it's useful:** Catches truncated JSON, missing WORD blocks, and table-less documents before the pipeline runs.

**Best practices:** Treat "no CELL or MERGED_CELL blocks" as a signal the form was scanned without table analysis enabled.`

	FormSearchDirectoryDescription = `List convertible form block JSON files in the configured forms directory.

**When to use:** To enumerate what can be converted, optionally filtered by a fuzzy file-name query.

**Examples:**
• "Find all layout files for plot 12" with query "plot 12"
• "List every form output in the default directory"`

	// Edit tools — each takes a document JSON and returns the edited copy;
	// the server never holds viewer state.

	FormRenameHeaderKeyDescription = `Rename a header map key across the whole document.

**When to use:** The resolver produced a wrong or awkward field name (for example col_7 for a smudged header) and the operator corrected it in the viewer.

**Why it's useful:** The rename cascades to every row's field key and every cell's header reference in one step, keeping the document self-consistent.`

	FormSetCellTextDescription = `Replace the text of one cell in a data row.

**When to use:** The operator corrected a misread handwritten value in the viewer.

**Why it's useful:** Updates both the row field and the cell overlay detail so confidence coloring and exports stay aligned.`

	FormSetUniversalValidityDescription = `Toggle whether a universal field participates in exports.

**When to use:** A form-wide key/value pair was misdetected (or intentionally crossed out on paper) and should not be flattened into every row.`

	FormFlattenRowsDescription = `Copy every valid universal field into every row and return the flat row maps.

**When to use:** Producing the spreadsheet-shaped export after review; invalid universal fields are skipped.`

	FormServerInfoDescription = `Get server information, conversion thresholds, directory contents, and usage guidance.

**When to use:** First call in a session to discover the forms directory, configured thresholds, and available tools.`
)
