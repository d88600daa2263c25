package form

import (
	"github.com/fieldworkhq/formgrid/internal/grid"
)

// FileInfo represents information about a form block JSON file
type FileInfo struct {
	Path         string `json:"path"`
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	ModifiedTime string `json:"modified_time"`
}

// Request Types

// ConvertFileRequest represents a request to convert a block document file
type ConvertFileRequest struct {
	Path string `json:"path"`
}

// ConvertDocumentRequest represents a request to convert an in-memory raw
// block payload, the inline path used by the MCP surface
type ConvertDocumentRequest struct {
	Raw []byte `json:"raw"`
}

// ValidateFileRequest represents a request to validate a block document file
type ValidateFileRequest struct {
	Path string `json:"path"`
}

// SearchDirectoryRequest represents a request to search for form JSON files
type SearchDirectoryRequest struct {
	Directory string `json:"directory"`
	Query     string `json:"query"`
}

// Response Types

// ConvertResult represents the result of a conversion
type ConvertResult struct {
	Path        string            `json:"path,omitempty"`
	AnalysisID  string            `json:"analysis_id"`
	Document    *grid.Document    `json:"document"`
	Diagnostics []grid.Diagnostic `json:"diagnostics,omitempty"`
}

// ValidateFileResult represents the result of a validation
type ValidateFileResult struct {
	Valid         bool   `json:"valid"`
	Path          string `json:"path"`
	Message       string `json:"message,omitempty"`
	WordCount     int    `json:"word_count"`
	CellCount     int    `json:"cell_count"`
	MergedCount   int    `json:"merged_cell_count"`
	KeyValueCount int    `json:"key_value_count"`
}

// SearchDirectoryResult represents the result of a directory search
type SearchDirectoryResult struct {
	Directory  string     `json:"directory"`
	Files      []FileInfo `json:"files"`
	TotalCount int        `json:"total_count"`
}

// ServerInfo summarizes the running service for the viewer
type ServerInfo struct {
	Name           string   `json:"name"`
	Version        string   `json:"version"`
	FormsDirectory string   `json:"forms_directory"`
	MaxFileSize    int64    `json:"max_file_size"`
	Tools          []string `json:"tools"`
}
