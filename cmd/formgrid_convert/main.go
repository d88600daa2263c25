package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fieldworkhq/formgrid/internal/grid"
	"github.com/fieldworkhq/formgrid/internal/textract"
)

var (
	outputFormat = flag.String("format", "text", "Output format: text, json")
	outputDir    = flag.String("out", "", "Write converted documents to this directory instead of stdout")
	strictMode   = flag.Bool("strict", false, "Treat conversion diagnostics as failures")
	identifiers  = flag.String("identifiers", "", "Comma-separated identifier column keys")
	groupConsts  = flag.String("group-constants", "", "Comma-separated group-constant column keys")
	verbose      = flag.Bool("verbose", false, "Enable verbose output")
	help         = flag.Bool("help", false, "Show help message")
)

func main() {
	flag.Parse()

	if *help {
		printHelp()
		return
	}

	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "Error: at least one block document JSON file required\n\n")
		printUsage()
		os.Exit(1)
	}

	opts := grid.DefaultOptions()
	if *identifiers != "" {
		opts.IdentifierColumns = splitList(*identifiers)
	}
	if *groupConsts != "" {
		opts.GroupConstantColumns = splitList(*groupConsts)
	}

	failed := 0
	for _, path := range flag.Args() {
		if err := convertOne(path, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error converting %s: %v\n", path, err)
			failed++
		}
	}

	if failed > 0 {
		os.Exit(1)
	}
}

// ConversionOutput is the JSON envelope written for each converted file
type ConversionOutput struct {
	FilePath    string            `json:"file_path"`
	Success     bool              `json:"success"`
	Document    *grid.Document    `json:"document,omitempty"`
	Diagnostics []grid.Diagnostic `json:"diagnostics,omitempty"`
	Error       string            `json:"error,omitempty"`
}

func convertOne(path string, opts grid.Options) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	if *verbose {
		fmt.Fprintf(os.Stderr, "Converting %s\n", absPath)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return err
	}

	raw, err := textract.ParseDocument(data)
	if err != nil {
		return outputResult(absPath, &ConversionOutput{
			FilePath: absPath,
			Error:    err.Error(),
		})
	}

	result, err := grid.Convert(raw, opts)
	if err != nil {
		return outputResult(absPath, &ConversionOutput{
			FilePath: absPath,
			Error:    err.Error(),
		})
	}

	out := &ConversionOutput{
		FilePath:    absPath,
		Success:     true,
		Document:    result.Document,
		Diagnostics: result.Diagnostics,
	}
	if *strictMode && len(result.Diagnostics) > 0 {
		out.Success = false
		out.Error = fmt.Sprintf("%d diagnostics in strict mode", len(result.Diagnostics))
	}

	return outputResult(absPath, out)
}

func outputResult(path string, out *ConversionOutput) error {
	var writeErr error
	if *outputDir != "" {
		writeErr = writeToDir(path, out)
	} else {
		switch *outputFormat {
		case "json":
			writeErr = outputJSON(out)
		case "text":
			writeErr = outputText(out)
		default:
			return fmt.Errorf("unsupported output format: %s", *outputFormat)
		}
	}
	if writeErr != nil {
		return writeErr
	}
	if !out.Success {
		return fmt.Errorf("%s", out.Error)
	}
	return nil
}

func writeToDir(path string, out *ConversionOutput) error {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	target := filepath.Join(*outputDir, base+".intermediate.json")

	payload, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(target, payload, 0o644); err != nil {
		return err
	}
	if *verbose {
		fmt.Fprintf(os.Stderr, "Wrote %s\n", target)
	}
	return nil
}

func outputJSON(out *ConversionOutput) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func outputText(out *ConversionOutput) error {
	if out.Error != "" && out.Document == nil {
		fmt.Printf("❌ Conversion failed: %s\n", out.Error)
		return nil
	}

	doc := out.Document
	fmt.Printf("✅ Converted %s\n", out.FilePath)
	if len(doc.TitleLegend) > 0 {
		fmt.Printf("   Title/legend: %s\n", strings.Join(doc.TitleLegend, " | "))
	}
	fmt.Printf("   Universal fields: %d, Header fields: %d, Rows: %d\n",
		len(doc.UniversalFields), len(doc.HeaderMap), len(doc.Rows))

	if len(out.Diagnostics) > 0 {
		fmt.Printf("\n   Diagnostics (%d):\n", len(out.Diagnostics))
		for _, d := range out.Diagnostics {
			fmt.Printf("   • %s\n", d)
		}
	}

	if *verbose {
		payload, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println()
		fmt.Println(string(payload))
	}
	fmt.Println()
	return nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func printHelp() {
	fmt.Println("formgrid_convert - Convert block document JSON into intermediate form documents")
	fmt.Println()
	fmt.Println("Reads OCR block documents (pages of WORD, LINE, CELL, KEY/VALUE blocks) and")
	fmt.Println("produces the intermediate representation: universal fields, a header map, and")
	fmt.Println("data rows with per-cell provenance.")
	fmt.Println()
	printUsage()
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -format           Output format: text (default), json")
	fmt.Println("  -out              Directory to write <name>.intermediate.json files")
	fmt.Println("  -strict           Non-empty diagnostics make the conversion fail")
	fmt.Println("  -identifiers      Comma-separated identifier column keys (e.g. block_no,plot_no)")
	fmt.Println("  -group-constants  Comma-separated group-constant column keys")
	fmt.Println("  -verbose          Enable verbose output")
	fmt.Println("  -help             Show this help message")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  formgrid_convert analysis.json")
	fmt.Println("  formgrid_convert -format json analysis.json > out.json")
	fmt.Println("  formgrid_convert -out converted/ -strict forms/*.json")
	fmt.Println("  formgrid_convert -identifiers block_no,plot_no survey.json")
}

func printUsage() {
	fmt.Println("USAGE:")
	fmt.Println("  formgrid_convert [OPTIONS] <block_document.json> [more files...]")
}

func init() {
	// Custom flag usage
	flag.Usage = func() {
		printHelp()
	}
}
