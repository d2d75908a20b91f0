// Package config provides configuration loading and validation for the CLI and server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Default values applied by Defaults and MergeWithDefaults
const (
	DefaultProject  = "cv.cvproj"
	DefaultCompiler = "xelatex"
	DefaultPort     = 8080
	DefaultJobs     = 2
)

// Config represents the configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or CLI flags.
type Config struct {
	// Paths
	Project   string `json:"project,omitempty"`    // Project file used when no path is given
	Template  string `json:"template,omitempty"`   // Path to LaTeX preamble template
	OutputDir string `json:"output_dir,omitempty"` // Directory for saved PDFs

	// Compiler
	Compiler              string `json:"compiler,omitempty" validate:"omitempty,excludesall=/\\"` // Compiler command name
	CompilerPath          string `json:"compiler_path,omitempty"`                                 // Explicit compiler executable
	CompileTimeoutSeconds int    `json:"compile_timeout_seconds,omitempty" validate:"gte=0,lte=3600"`
	EscapeUserText        bool   `json:"escape_user_text,omitempty"` // Escape LaTeX specials in user text
	Jobs                  int    `json:"jobs,omitempty" validate:"gte=0,lte=64"`

	// Server
	Host        string   `json:"host,omitempty" validate:"omitempty,hostname|ip"` // Listen host; empty means loopback unless an API key is set
	Port        int      `json:"port,omitempty" validate:"gte=0,lte=65535"`
	DatabaseURL string   `json:"database_url,omitempty"`                               // PostgreSQL connection URL
	APIKey      string   `json:"api_key,omitempty"`                                    // Required by the API when set
	CORSOrigins []string `json:"cors_origins,omitempty" validate:"omitempty,dive,url"` // Browser origins allowed to call the API

	Verbose bool `json:"verbose,omitempty"` // Print detailed debug information
}

// Defaults returns the built-in configuration
func Defaults() Config {
	return Config{
		Project:  DefaultProject,
		Compiler: DefaultCompiler,
		Port:     DefaultPort,
		Jobs:     DefaultJobs,
	}
}

// CompileTimeout returns the compile timeout; zero means no timeout
func (c *Config) CompileTimeout() time.Duration {
	return time.Duration(c.CompileTimeoutSeconds) * time.Second
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

var validate = validator.New()

// Validate checks that the configuration has valid values.
// Required values are not checked here since flags may still supply them.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	if c.Template != "" {
		if _, err := os.Stat(c.Template); os.IsNotExist(err) {
			return fmt.Errorf("config error: template file not found: %s", c.Template)
		}
	}
	if c.CompilerPath != "" {
		if _, err := os.Stat(c.CompilerPath); os.IsNotExist(err) {
			return fmt.Errorf("config error: compiler not found: %s", c.CompilerPath)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with zero fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.Project == "" {
		result.Project = defaults.Project
	}
	if result.Template == "" {
		result.Template = defaults.Template
	}
	if result.OutputDir == "" {
		result.OutputDir = defaults.OutputDir
	}
	if result.Compiler == "" {
		result.Compiler = defaults.Compiler
	}
	if result.CompilerPath == "" {
		result.CompilerPath = defaults.CompilerPath
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.Host == "" {
		result.Host = defaults.Host
	}
	if len(result.CORSOrigins) == 0 {
		result.CORSOrigins = defaults.CORSOrigins
	}

	if result.CompileTimeoutSeconds == 0 {
		result.CompileTimeoutSeconds = defaults.CompileTimeoutSeconds
	}
	if result.Jobs == 0 {
		result.Jobs = defaults.Jobs
	}
	if result.Port == 0 {
		result.Port = defaults.Port
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// ApplyEnv overrides fields from CV_* environment variables. DATABASE_URL
// and PORT are honoured when their CV_ forms are unset.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}
	lookup := func(keys ...string) string {
		for _, k := range keys {
			if v := strings.TrimSpace(getenv(k)); v != "" {
				return v
			}
		}
		return ""
	}

	if v := lookup("CV_PROJECT"); v != "" {
		c.Project = v
	}
	if v := lookup("CV_TEMPLATE"); v != "" {
		c.Template = v
	}
	if v := lookup("CV_OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
	if v := lookup("CV_COMPILER"); v != "" {
		c.Compiler = v
	}
	if v := lookup("CV_COMPILER_PATH"); v != "" {
		c.CompilerPath = v
	}
	if v := lookup("CV_DATABASE_URL", "DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}

	if v := lookup("CV_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := lookup("CV_HOST"); v != "" {
		c.Host = v
	}
	if v := lookup("CV_CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}

	if v := lookup("CV_COMPILE_TIMEOUT"); v != "" {
		secs, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("invalid CV_COMPILE_TIMEOUT: %w", err)
		}
		c.CompileTimeoutSeconds = secs
	}
	if v := lookup("CV_PORT", "PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid port: %w", err)
		}
		c.Port = port
	}
	if v := lookup("CV_JOBS"); v != "" {
		jobs, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CV_JOBS: %w", err)
		}
		c.Jobs = jobs
	}
	if v := lookup("CV_ESCAPE_USER_TEXT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid CV_ESCAPE_USER_TEXT: %w", err)
		}
		c.EscapeUserText = b
	}
	if v := lookup("CV_VERBOSE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid CV_VERBOSE: %w", err)
		}
		c.Verbose = b
	}
	return nil
}

// splitList splits a comma-separated value, dropping empty items
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parseSeconds accepts a plain number of seconds or a Go duration string
func parseSeconds(v string) (int, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return n, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	return int(d.Seconds()), nil
}
