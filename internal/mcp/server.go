package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/fieldworkhq/formgrid/internal/config"
	"github.com/fieldworkhq/formgrid/internal/descriptions"
	"github.com/fieldworkhq/formgrid/internal/edit"
	"github.com/fieldworkhq/formgrid/internal/form"
	"github.com/fieldworkhq/formgrid/internal/grid"
)

// Server represents the MCP server instance
type Server struct {
	config      *config.Config
	formService *form.Service
	mcpServer   *server.MCPServer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, formService *form.Service) (*Server, error) {
	if formService == nil {
		return nil, fmt.Errorf("formService cannot be nil")
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false), // We don't support dynamic tool capabilities
	)

	s := &Server{
		config:      cfg,
		formService: formService,
		mcpServer:   mcpServer,
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	convertFileTool := mcp.NewTool(
		"form_convert_file",
		mcp.WithDescription(descriptions.FormConvertFileDescription),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the block document JSON file"),
		),
	)
	s.mcpServer.AddTool(convertFileTool, s.handleConvertFile)

	validateFileTool := mcp.NewTool(
		"form_validate_file",
		mcp.WithDescription(descriptions.FormValidateFileDescription),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the block document JSON file"),
		),
	)
	s.mcpServer.AddTool(validateFileTool, s.handleValidateFile)

	searchDirectoryTool := mcp.NewTool(
		"form_search_directory",
		mcp.WithDescription(descriptions.FormSearchDirectoryDescription),
		mcp.WithString("directory",
			mcp.Description("Directory path to search (uses default if empty)"),
		),
		mcp.WithString("query",
			mcp.Description("Optional search query for fuzzy matching"),
		),
	)
	s.mcpServer.AddTool(searchDirectoryTool, s.handleSearchDirectory)

	renameHeaderKeyTool := mcp.NewTool(
		"form_rename_header_key",
		mcp.WithDescription(descriptions.FormRenameHeaderKeyDescription),
		mcp.WithString("document",
			mcp.Required(),
			mcp.Description("Intermediate document JSON"),
		),
		mcp.WithString("old_key",
			mcp.Required(),
			mcp.Description("Existing header map key"),
		),
		mcp.WithString("new_key",
			mcp.Required(),
			mcp.Description("Replacement header map key"),
		),
	)
	s.mcpServer.AddTool(renameHeaderKeyTool, s.handleRenameHeaderKey)

	setCellTextTool := mcp.NewTool(
		"form_set_cell_text",
		mcp.WithDescription(descriptions.FormSetCellTextDescription),
		mcp.WithString("document",
			mcp.Required(),
			mcp.Description("Intermediate document JSON"),
		),
		mcp.WithNumber("row_index",
			mcp.Required(),
			mcp.Description("Table row index of the target row"),
		),
		mcp.WithString("key",
			mcp.Required(),
			mcp.Description("Header map key of the target field"),
		),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Replacement cell text"),
		),
	)
	s.mcpServer.AddTool(setCellTextTool, s.handleSetCellText)

	setUniversalValidityTool := mcp.NewTool(
		"form_set_universal_validity",
		mcp.WithDescription(descriptions.FormSetUniversalValidityDescription),
		mcp.WithString("document",
			mcp.Required(),
			mcp.Description("Intermediate document JSON"),
		),
		mcp.WithString("key",
			mcp.Required(),
			mcp.Description("Universal field key"),
		),
		mcp.WithBoolean("valid",
			mcp.Required(),
			mcp.Description("Whether the field participates in exports"),
		),
	)
	s.mcpServer.AddTool(setUniversalValidityTool, s.handleSetUniversalValidity)

	flattenRowsTool := mcp.NewTool(
		"form_flatten_rows",
		mcp.WithDescription(descriptions.FormFlattenRowsDescription),
		mcp.WithString("document",
			mcp.Required(),
			mcp.Description("Intermediate document JSON"),
		),
	)
	s.mcpServer.AddTool(flattenRowsTool, s.handleFlattenRows)

	serverInfoTool := mcp.NewTool(
		"form_server_info",
		mcp.WithDescription(descriptions.FormServerInfoDescription),
	)
	s.mcpServer.AddTool(serverInfoTool, s.handleServerInfo)
}

// Handler functions

func (s *Server) handleConvertFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.formService.ConvertFile(form.ConvertFileRequest{Path: path})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	payload, err := json.MarshalIndent(result.Document, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	responseText := fmt.Sprintf("Converted form: %s\n", result.Path)
	responseText += fmt.Sprintf("Analysis ID: %s\n", result.AnalysisID)
	responseText += fmt.Sprintf("Rows: %d, Header fields: %d, Universal fields: %d\n",
		len(result.Document.Rows), len(result.Document.HeaderMap), len(result.Document.UniversalFields))
	if len(result.Diagnostics) > 0 {
		responseText += fmt.Sprintf("\nDiagnostics (%d):\n", len(result.Diagnostics))
		for _, d := range result.Diagnostics {
			responseText += fmt.Sprintf("  • %s\n", d)
		}
	}
	responseText += "\nDocument:\n"
	responseText += string(payload)

	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handleValidateFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.formService.ValidateFile(form.ValidateFileRequest{Path: path})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var responseText string
	if result.Valid {
		responseText = fmt.Sprintf("Block document %s is convertible\n", result.Path)
		responseText += fmt.Sprintf("Words: %d, Cells: %d, Merged cells: %d, Key/value pairs: %d",
			result.WordCount, result.CellCount, result.MergedCount, result.KeyValueCount)
	} else {
		responseText = fmt.Sprintf("Validation failed for %s: %s", result.Path, result.Message)
	}

	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handleSearchDirectory(ctx context.Context, request mcp.CallToolRequest) (
	*mcp.CallToolResult, error,
) {
	args := request.GetArguments()

	directory := s.config.FormsDirectory // default
	if dir, ok := args["directory"].(string); ok && dir != "" {
		directory = dir
	}

	query := ""
	if q, ok := args["query"].(string); ok {
		query = q
	}

	result, err := s.formService.SearchDirectory(form.SearchDirectoryRequest{
		Directory: directory,
		Query:     query,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if result.TotalCount == 0 {
		return mcp.NewToolResultText(
			fmt.Sprintf("No form JSON files found in directory: %s", result.Directory)), nil
	}

	responseText := fmt.Sprintf("Found %d form file(s) in directory: %s\n\nFiles:\n",
		result.TotalCount, result.Directory)
	for i, file := range result.Files {
		responseText += fmt.Sprintf("%d. %s\n", i+1, file.Name)
		responseText += fmt.Sprintf("   Path: %s\n", file.Path)
		responseText += fmt.Sprintf("   Size: %d bytes\n", file.Size)
		responseText += fmt.Sprintf("   Modified: %s\n", file.ModifiedTime)
	}

	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handleRenameHeaderKey(ctx context.Context, request mcp.CallToolRequest) (
	*mcp.CallToolResult, error,
) {
	doc, err := s.requireDocument(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	oldKey, err := request.RequireString("old_key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	newKey, err := request.RequireString("new_key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	edited, err := edit.RenameHeaderKey(doc, oldKey, newKey)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.documentResult(edited)
}

func (s *Server) handleSetCellText(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := s.requireDocument(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := request.GetArguments()
	rowValue, ok := args["row_index"].(float64)
	if !ok {
		return mcp.NewToolResultError("row_index must be a number"), nil
	}
	key, err := request.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	edited, err := edit.SetCellText(doc, int(rowValue), key, text)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.documentResult(edited)
}

func (s *Server) handleSetUniversalValidity(ctx context.Context, request mcp.CallToolRequest) (
	*mcp.CallToolResult, error,
) {
	doc, err := s.requireDocument(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	key, err := request.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	valid, ok := request.GetArguments()["valid"].(bool)
	if !ok {
		return mcp.NewToolResultError("valid must be a boolean"), nil
	}

	edited, err := edit.SetUniversalValidity(doc, key, valid)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.documentResult(edited)
}

func (s *Server) handleFlattenRows(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := s.requireDocument(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	flat, err := edit.FlattenRows(doc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	payload, err := json.MarshalIndent(flat, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}

func (s *Server) handleServerInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	responseText := fmt.Sprintf("%s v%s\n\n", s.config.ServerName, s.config.Version)
	responseText += fmt.Sprintf("Forms directory: %s\n", s.config.FormsDirectory)
	responseText += fmt.Sprintf("Max file size: %d bytes\n", s.config.MaxFileSize)
	responseText += fmt.Sprintf("Header row density threshold: %.2f\n", s.config.RowDensity)
	responseText += fmt.Sprintf("Header confidence threshold: %.0f\n", s.config.HeaderConfidence)
	responseText += fmt.Sprintf("Doubt confidence threshold: %.0f\n", s.config.DoubtConfidence)
	if len(s.config.IdentifierColumns) > 0 {
		responseText += fmt.Sprintf("Identifier columns: %v\n", s.config.IdentifierColumns)
	}
	if len(s.config.GroupConstantColumns) > 0 {
		responseText += fmt.Sprintf("Group-constant columns: %v\n", s.config.GroupConstantColumns)
	}

	if listing, err := s.formService.SearchDirectory(form.SearchDirectoryRequest{}); err == nil {
		responseText += fmt.Sprintf("\nDirectory contents: %d form file(s)\n", listing.TotalCount)
		for i, file := range listing.Files {
			if i >= 10 {
				responseText += fmt.Sprintf("   ... and %d more\n", listing.TotalCount-10)
				break
			}
			responseText += fmt.Sprintf("   %d. %s (%d bytes)\n", i+1, file.Name, file.Size)
		}
	}

	responseText += "\nAvailable tools:\n"
	for _, tool := range []string{
		"form_convert_file", "form_validate_file", "form_search_directory",
		"form_rename_header_key", "form_set_cell_text", "form_set_universal_validity",
		"form_flatten_rows", "form_server_info",
	} {
		responseText += fmt.Sprintf("  • %s\n", tool)
	}
	responseText += "\nStart with form_search_directory, validate unknown files, then convert; " +
		"edit tools take the document JSON and return the edited copy."

	return mcp.NewToolResultText(responseText), nil
}

// requireDocument decodes the inline document argument shared by the edit tools
func (s *Server) requireDocument(request mcp.CallToolRequest) (*grid.Document, error) {
	raw, err := request.RequireString("document")
	if err != nil {
		return nil, err
	}
	var doc grid.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("invalid document JSON: %w", err)
	}
	return &doc, nil
}

// documentResult marshals an edited document back to the caller
func (s *Server) documentResult(doc *grid.Document) (*mcp.CallToolResult, error) {
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}

// Run starts the MCP server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	if s.config.IsServerMode() {
		return s.runServerMode(ctx)
	}
	return s.runStdioMode(ctx)
}

// runStdioMode runs the server in stdio mode
func (s *Server) runStdioMode(_ context.Context) error {
	if s.config.IsDebug() {
		log.Printf("Starting formgrid MCP server in stdio mode")
		log.Printf("Forms directory: %s", s.config.FormsDirectory)
	}

	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode runs the server in HTTP server mode
func (s *Server) runServerMode(ctx context.Context) error {
	// The mark3labs transport only speaks stdio for now, so server mode
	// degrades to stdio until an HTTP transport lands.
	log.Printf("Server mode not yet implemented, falling back to stdio on %s", s.config.Address())
	return s.runStdioMode(ctx)
}
