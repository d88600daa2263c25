package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/fieldworkhq/formgrid/internal/grid"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 50 * 1024 * 1024 // 50MB

	// Pipeline threshold defaults
	DefaultRowDensity       = 0.6
	DefaultHeaderConfidence = 90.0
	DefaultDoubtConfidence  = 80.0
	DefaultRowOverlapRatio  = 0.5
)

// Config holds all configuration for the formgrid server and pipeline
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// Forms configuration
	FormsDirectory string
	MaxFileSize    int64 // Maximum input JSON file size in bytes

	// Pipeline thresholds
	RowDensity           float64
	HeaderConfidence     float64
	DoubtConfidence      float64
	RowOverlapRatio      float64
	IdentifierColumns    []string
	GroupConstantColumns []string

	// Application configuration
	Version    string
	ServerName string
	LogLevel   string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Mode:             ModeStdio, // Default to stdio mode for MCP compatibility
		Host:             DefaultHost,
		Port:             DefaultPort,
		FormsDirectory:   currentDir,
		MaxFileSize:      DefaultMaxFileSize,
		RowDensity:       DefaultRowDensity,
		HeaderConfidence: DefaultHeaderConfidence,
		DoubtConfidence:  DefaultDoubtConfidence,
		RowOverlapRatio:  DefaultRowOverlapRatio,
		Version:          "1.0.0",
		ServerName:       "formgrid",
		LogLevel:         DefaultLogLevel,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	pflag.Parse()

	populateConfigFromViper(cfg)

	if cfg.FormsDirectory != "" {
		if expandedPath, err := filepath.Abs(cfg.FormsDirectory); err == nil {
			cfg.FormsDirectory = expandedPath
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix("FORMGRID")
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("dir", cfg.FormsDirectory)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
	viper.SetDefault("rowdensity", cfg.RowDensity)
	viper.SetDefault("headerconfidence", cfg.HeaderConfidence)
	viper.SetDefault("doubtconfidence", cfg.DoubtConfidence)
	viper.SetDefault("rowoverlap", cfg.RowOverlapRatio)
	viper.SetDefault("identifiercolumns", cfg.IdentifierColumns)
	viper.SetDefault("groupconstantcolumns", cfg.GroupConstantColumns)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP server")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("dir", cfg.FormsDirectory, "Directory containing form block JSON files")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum input file size in bytes")
	pflag.Float64("rowdensity", cfg.RowDensity, "Header row density threshold (0-1)")
	pflag.Float64("headerconfidence", cfg.HeaderConfidence, "Minimum mean confidence for header rows")
	pflag.Float64("doubtconfidence", cfg.DoubtConfidence, "Confidence below which cells are marked doubtful")
	pflag.Float64("rowoverlap", cfg.RowOverlapRatio, "Vertical overlap ratio treated as a row index conflict")
	pflag.StringSlice("identifiercolumns", cfg.IdentifierColumns, "Header keys whose values propagate down sparse rows")
	pflag.StringSlice("groupconstantcolumns", cfg.GroupConstantColumns, "Header keys recorded once per identifier block")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, name := range []string{
		"mode", "host", "port", "dir", "loglevel", "maxfilesize",
		"rowdensity", "headerconfidence", "doubtconfidence", "rowoverlap",
		"identifiercolumns", "groupconstantcolumns",
	} {
		_ = viper.BindPFlag(name, pflag.Lookup(name))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nformgrid - converts OCR table output for scanned forms into structured rows\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                  # stdio mode, current directory (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --dir=/data/forms                # stdio mode with custom directory\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --port=8081        # HTTP server mode\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  FORMGRID_MODE                 Server mode\n")
		fmt.Fprintf(os.Stderr, "  FORMGRID_HOST                 Server host\n")
		fmt.Fprintf(os.Stderr, "  FORMGRID_PORT                 Server port\n")
		fmt.Fprintf(os.Stderr, "  FORMGRID_DIR                  Forms directory\n")
		fmt.Fprintf(os.Stderr, "  FORMGRID_LOGLEVEL             Log level\n")
		fmt.Fprintf(os.Stderr, "  FORMGRID_MAXFILESIZE          Maximum file size\n")
		fmt.Fprintf(os.Stderr, "  FORMGRID_ROWDENSITY           Header row density threshold\n")
		fmt.Fprintf(os.Stderr, "  FORMGRID_HEADERCONFIDENCE     Header confidence threshold\n")
		fmt.Fprintf(os.Stderr, "  FORMGRID_DOUBTCONFIDENCE      Doubt confidence threshold\n")
		fmt.Fprintf(os.Stderr, "  FORMGRID_IDENTIFIERCOLUMNS    Identifier column keys\n")
		fmt.Fprintf(os.Stderr, "  FORMGRID_GROUPCONSTANTCOLUMNS Group-constant column keys\n")
	}
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.FormsDirectory = viper.GetString("dir")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
	cfg.RowDensity = viper.GetFloat64("rowdensity")
	cfg.HeaderConfidence = viper.GetFloat64("headerconfidence")
	cfg.DoubtConfidence = viper.GetFloat64("doubtconfidence")
	cfg.RowOverlapRatio = viper.GetFloat64("rowoverlap")
	cfg.IdentifierColumns = viper.GetStringSlice("identifiercolumns")
	cfg.GroupConstantColumns = viper.GetStringSlice("groupconstantcolumns")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if c.FormsDirectory == "" {
		return errors.New("forms directory cannot be empty")
	}
	info, err := os.Stat(c.FormsDirectory)
	if err != nil {
		return fmt.Errorf("cannot access forms directory %s: %w", c.FormsDirectory, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("forms directory %s is not a directory", c.FormsDirectory)
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	if c.RowDensity <= 0 || c.RowDensity > 1 {
		return errors.New("row density must be in (0, 1]")
	}
	if c.HeaderConfidence < 0 || c.HeaderConfidence > 100 {
		return errors.New("header confidence must be between 0 and 100")
	}
	if c.DoubtConfidence < 0 || c.DoubtConfidence > 100 {
		return errors.New("doubt confidence must be between 0 and 100")
	}
	if c.RowOverlapRatio <= 0 || c.RowOverlapRatio > 1 {
		return errors.New("row overlap ratio must be in (0, 1]")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

// PipelineOptions maps the configuration onto the pipeline's option struct
func (c *Config) PipelineOptions() grid.Options {
	opts := grid.DefaultOptions()
	opts.RowDensity = c.RowDensity
	opts.HeaderConfidence = c.HeaderConfidence
	opts.DoubtConfidence = c.DoubtConfidence
	opts.RowOverlapRatio = c.RowOverlapRatio
	opts.IdentifierColumns = c.IdentifierColumns
	opts.GroupConstantColumns = c.GroupConstantColumns
	return opts
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, FormsDirectory: %s, LogLevel: %s, MaxFileSize: %d}",
		c.Mode, c.Host, c.Port, c.FormsDirectory, c.LogLevel, c.MaxFileSize)
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
