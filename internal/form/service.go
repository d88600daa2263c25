// Package form is the service boundary around the conversion pipeline: it
// reads block documents from disk or memory, enforces path and size limits,
// and stamps results with an analysis id for the viewer to reference.
package form

import (
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/fieldworkhq/formgrid/internal/grid"
	"github.com/fieldworkhq/formgrid/internal/textract"
)

// Service orchestrates form conversion operations
type Service struct {
	maxFileSize   int64
	opts          grid.Options
	search        *Search
	pathValidator *PathValidator
}

// NewService creates a new form service bound to a directory and the
// configured pipeline thresholds
func NewService(maxFileSize int64, formsDirectory string, opts grid.Options) (*Service, error) {
	pathValidator, err := NewPathValidator(formsDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to create path validator: %w", err)
	}
	return &Service{
		maxFileSize:   maxFileSize,
		opts:          opts,
		search:        NewSearch(maxFileSize),
		pathValidator: pathValidator,
	}, nil
}

// ConvertFile reads a block document file and runs the conversion pipeline
func (s *Service) ConvertFile(req ConvertFileRequest) (*ConvertResult, error) {
	if err := s.pathValidator.ValidatePath(req.Path); err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}

	data, err := s.readCapped(req.Path)
	if err != nil {
		return nil, err
	}

	result, err := s.convert(data)
	if err != nil {
		return nil, err
	}
	result.Path = req.Path
	return result, nil
}

// ConvertDocument runs the conversion pipeline over an in-memory payload
func (s *Service) ConvertDocument(req ConvertDocumentRequest) (*ConvertResult, error) {
	if int64(len(req.Raw)) > s.maxFileSize {
		return nil, fmt.Errorf("document size %d exceeds maximum %d", len(req.Raw), s.maxFileSize)
	}
	return s.convert(req.Raw)
}

func (s *Service) convert(data []byte) (*ConvertResult, error) {
	doc, err := textract.ParseDocument(data)
	if err != nil {
		return nil, err
	}
	res, err := grid.Convert(doc, s.opts)
	if err != nil {
		return nil, err
	}
	return &ConvertResult{
		AnalysisID:  uuid.New().String(),
		Document:    res.Document,
		Diagnostics: res.Diagnostics,
	}, nil
}

// ValidateFile checks a file parses and declares the block types the
// pipeline needs, without running the pipeline.
func (s *Service) ValidateFile(req ValidateFileRequest) (*ValidateFileResult, error) {
	if err := s.pathValidator.ValidatePath(req.Path); err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}

	result := &ValidateFileResult{Path: req.Path}

	data, err := s.readCapped(req.Path)
	if err != nil {
		result.Message = err.Error()
		return result, nil
	}
	doc, err := textract.ParseDocument(data)
	if err != nil {
		result.Message = err.Error()
		return result, nil
	}

	for _, b := range doc.Blocks {
		switch b.BlockType {
		case textract.BlockTypeWord:
			result.WordCount++
		case textract.BlockTypeCell:
			result.CellCount++
		case textract.BlockTypeMergedCell:
			result.MergedCount++
		default:
			if b.IsKey() {
				result.KeyValueCount++
			}
		}
	}

	switch {
	case result.WordCount == 0:
		result.Message = "document declares no WORD blocks"
	case result.CellCount == 0 && result.MergedCount == 0:
		result.Message = "document declares no CELL or MERGED_CELL blocks"
	default:
		result.Valid = true
	}
	return result, nil
}

// SearchDirectory lists convertible form files, defaulting to the
// configured directory.
func (s *Service) SearchDirectory(req SearchDirectoryRequest) (*SearchDirectoryResult, error) {
	if req.Directory == "" {
		req.Directory = s.pathValidator.GetConfiguredDirectory()
	}
	if err := s.pathValidator.ValidatePath(req.Directory); err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}
	return s.search.SearchDirectory(req)
}

// GetMaxFileSize returns the maximum file size limit
func (s *Service) GetMaxFileSize() int64 {
	return s.maxFileSize
}

// FormsDirectory returns the configured forms directory
func (s *Service) FormsDirectory() string {
	return s.pathValidator.GetConfiguredDirectory()
}

func (s *Service) readCapped(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot access file: %w", err)
	}
	if info.Size() > s.maxFileSize {
		return nil, fmt.Errorf("file size %d exceeds maximum %d", info.Size(), s.maxFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read file: %w", err)
	}
	return data, nil
}
