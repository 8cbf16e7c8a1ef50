package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// WorkspaceDirName is the directory name for project-level Tabgrip config.
	WorkspaceDirName = ".tabgrip"
	// WorkspaceConfigFile is the config file name inside the workspace directory.
	WorkspaceConfigFile = "config.yaml"
	// MaxSearchDepth limits how many parent directories to walk when discovering a workspace.
	MaxSearchDepth = 10
)

// WorkspaceOptions controls workspace discovery behavior.
type WorkspaceOptions struct {
	// Disable skips workspace discovery entirely (--no-workspace flag).
	Disable bool
	// ExplicitDir uses this directory as workspace root instead of walking up (--workspace-dir flag).
	ExplicitDir string
}

// Config captures all tunable settings for the Tabgrip MCP server.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Browser  BrowserConfig  `yaml:"browser"`
	Sessions SessionsConfig `yaml:"sessions"`
	Input    InputConfig    `yaml:"input"`
	Detect   DetectConfig   `yaml:"detect"`
	MCP      MCPConfig      `yaml:"mcp"`
	Facts    FactsConfig    `yaml:"facts"`
	Recorder RecorderConfig `yaml:"recorder"`
}

type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	LogFile string `yaml:"log_file"`
}

// BrowserConfig configures how we attach to or launch Chrome for Rod.
type BrowserConfig struct {
	// Control endpoint for Rod (e.g., ws://localhost:9222). Required when launch is empty.
	DebuggerURL string `yaml:"debugger_url"`
	// Optional launch command to start Chrome in detached mode (e.g., ["chrome", "--remote-debugging-port=9222"]).
	Launch []string `yaml:"launch"`
	// AutoStart controls whether the MCP server launches/attaches to Chrome at startup.
	AutoStart bool `yaml:"auto_start"`
	// Headless controls whether Chrome runs in headless mode (default: true).
	Headless *bool `yaml:"headless"`
	// Viewport width reported for layout math when a page has none (default: 1920).
	ViewportWidth int `yaml:"viewport_width"`
	// Viewport height reported for layout math when a page has none (default: 1080).
	ViewportHeight int `yaml:"viewport_height"`
}

// SessionsConfig tunes the debugger session pool and its retry dispatcher.
type SessionsConfig struct {
	// How long a session may sit unused before it is detached (e.g., "60s").
	DefaultIdleTimeout string `yaml:"idle_timeout"`
	// Timeout for attaching to a target (e.g., "10s").
	DefaultAttachTimeout string `yaml:"attach_timeout"`
	// Maximum retries after a failed operation (default: 3, so 4 attempts total).
	MaxRetries *int `yaml:"max_retries"`
	// Delay before retrying after a generic failure (milliseconds, default: 300).
	RetryDelayMs int `yaml:"retry_delay_ms"`
	// Delay before retrying after a classified debugging failure (milliseconds, default: 1000).
	DebugRetryDelayMs int `yaml:"debug_retry_delay_ms"`
}

// InputConfig tunes the input dispatcher.
type InputConfig struct {
	// Pause between typed characters (milliseconds, default: 50; 0 disables).
	TypeDelayMs *int `yaml:"type_delay_ms"`
}

// DetectConfig tunes the visibility detection engine.
type DetectConfig struct {
	// Fraction of sample points that must hit the element (default: 0.5).
	VisibilityThreshold float64 `yaml:"visibility_threshold"`
	// Attribute name stamped onto marked elements (default: data-marker-id).
	MarkerAttribute string `yaml:"marker_attribute"`
}

type MCPConfig struct {
	// When set, starts an SSE server on this port instead of stdio-only.
	SSEPort int `yaml:"sse_port"`
}

// FactsConfig controls the embedded deductive engine.
type FactsConfig struct {
	Enable          bool   `yaml:"enable"`
	SchemaPath      string `yaml:"schema_path"`
	FactBufferLimit int    `yaml:"fact_buffer_limit"`
}

// RecorderConfig controls the JSONL operation trace.
type RecorderConfig struct {
	Enable   bool   `yaml:"enable"`
	TraceDir string `yaml:"trace_dir"`
	MaxFiles int    `yaml:"max_files"`
}

// DefaultConfig provides reasonable defaults for local development.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Name:    "tabgrip-mcp",
			Version: "0.1.0",
			LogFile: "tabgrip-mcp.log",
		},
		Browser: BrowserConfig{
			AutoStart:      true,
			ViewportWidth:  1920,
			ViewportHeight: 1080,
		},
		Sessions: SessionsConfig{
			DefaultIdleTimeout:   "60s",
			DefaultAttachTimeout: "10s",
			RetryDelayMs:         300,
			DebugRetryDelayMs:    1000,
		},
		Detect: DetectConfig{
			VisibilityThreshold: 0.5,
			MarkerAttribute:     "data-marker-id",
		},
		MCP: MCPConfig{
			SSEPort: 0,
		},
		Facts: FactsConfig{
			Enable:          true,
			SchemaPath:      "",
			FactBufferLimit: 2048,
		},
		Recorder: RecorderConfig{
			Enable:   false,
			TraceDir: "data/traces",
			MaxFiles: 3,
		},
	}
}

// Load reads YAML config from disk and overlays defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, errors.New("config path is required")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// DiscoverWorkspace walks up from startDir looking for a .tabgrip/config.yaml file.
// Returns the workspace root directory (parent of .tabgrip/) or empty string if not found.
func DiscoverWorkspace(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving start directory: %w", err)
	}

	for i := 0; i < MaxSearchDepth; i++ {
		candidate := filepath.Join(dir, WorkspaceDirName, WorkspaceConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}

	return "", nil
}

// LoadWithWorkspace implements multi-layer config merge:
//
//	DefaultConfig() <- .tabgrip/config.yaml <- explicit --config <- CLI flags
//
// Returns the merged config and the workspace directory (empty if none found).
func LoadWithWorkspace(explicitConfig string, opts WorkspaceOptions) (Config, string, error) {
	cfg := DefaultConfig()
	wsDir := ""

	// Layer 1: Workspace config (if not disabled)
	if !opts.Disable {
		var err error
		if opts.ExplicitDir != "" {
			// Verify the explicit workspace dir has a config
			candidate := filepath.Join(opts.ExplicitDir, WorkspaceDirName, WorkspaceConfigFile)
			if _, statErr := os.Stat(candidate); statErr == nil {
				wsDir = opts.ExplicitDir
			}
		} else {
			cwd, cwdErr := os.Getwd()
			if cwdErr != nil {
				return cfg, "", fmt.Errorf("getting working directory: %w", cwdErr)
			}
			wsDir, err = DiscoverWorkspace(cwd)
			if err != nil {
				return cfg, "", fmt.Errorf("discovering workspace: %w", err)
			}
		}

		if wsDir != "" {
			wsConfigPath := filepath.Join(wsDir, WorkspaceDirName, WorkspaceConfigFile)
			raw, err := os.ReadFile(wsConfigPath)
			if err != nil {
				return cfg, "", fmt.Errorf("reading workspace config %s: %w", wsConfigPath, err)
			}
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return cfg, "", fmt.Errorf("parsing workspace config %s: %w", wsConfigPath, err)
			}
			cfg = resolveWorkspacePaths(cfg, wsDir)
		}
	}

	// Layer 2: Explicit config file (--config flag)
	if explicitConfig != "" {
		raw, err := os.ReadFile(explicitConfig)
		if err != nil {
			return cfg, wsDir, fmt.Errorf("reading explicit config %s: %w", explicitConfig, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, wsDir, fmt.Errorf("parsing explicit config %s: %w", explicitConfig, err)
		}
	}

	return cfg, wsDir, cfg.Validate()
}

// InitWorkspace creates a .tabgrip/ directory with template files at root.
func InitWorkspace(root string) error {
	wsDir := filepath.Join(root, WorkspaceDirName)

	// Check if already exists
	if _, err := os.Stat(wsDir); err == nil {
		return fmt.Errorf("workspace directory already exists: %s", wsDir)
	}

	// Create directory structure
	dirs := []string{
		wsDir,
		filepath.Join(wsDir, "schemas"),
		filepath.Join(wsDir, "data"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	// Write template config
	templateConfig := `# Tabgrip project-level configuration
# Values here override defaults but are overridden by --config and CLI flags.

# browser:
#   debugger_url: "ws://localhost:9222"
#   headless: false

# sessions:
#   idle_timeout: "60s"
#   max_retries: 3

# detect:
#   visibility_threshold: 0.5

# facts:
#   schema_path: ".tabgrip/schemas/project.mg"
`
	configPath := filepath.Join(wsDir, WorkspaceConfigFile)
	if err := os.WriteFile(configPath, []byte(templateConfig), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	// Write .gitignore for data directory
	gitignoreContent := "# Runtime data (logs, traces) - do not version control\ndata/\n"
	gitignorePath := filepath.Join(wsDir, ".gitignore")
	if err := os.WriteFile(gitignorePath, []byte(gitignoreContent), 0644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	return nil
}

// resolveWorkspacePaths resolves relative paths in the config against the workspace directory.
func resolveWorkspacePaths(cfg Config, wsDir string) Config {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(wsDir, p)
	}

	cfg.Server.LogFile = resolve(cfg.Server.LogFile)
	cfg.Facts.SchemaPath = resolve(cfg.Facts.SchemaPath)
	cfg.Recorder.TraceDir = resolve(cfg.Recorder.TraceDir)
	return cfg
}

// Validate ensures required fields exist so the server can start deterministically.
func (c *Config) Validate() error {
	if c.Server.Name == "" {
		return errors.New("server.name is required")
	}
	if c.Browser.AutoStart {
		if c.Browser.DebuggerURL == "" && len(c.Browser.Launch) == 0 {
			return errors.New("browser.debugger_url or browser.launch must be provided")
		}
	}
	if t := c.Detect.VisibilityThreshold; t < 0 || t > 1 {
		return fmt.Errorf("detect.visibility_threshold must be within [0,1], got %v", t)
	}
	return nil
}

// IsHeadless returns whether Chrome should run in headless mode (default: true).
func (b BrowserConfig) IsHeadless() bool {
	if b.Headless == nil {
		return true // default to headless
	}
	return *b.Headless
}

// GetViewportWidth returns the viewport width with a sane default.
func (b BrowserConfig) GetViewportWidth() int {
	if b.ViewportWidth <= 0 {
		return 1920
	}
	return b.ViewportWidth
}

// GetViewportHeight returns the viewport height with a sane default.
func (b BrowserConfig) GetViewportHeight() int {
	if b.ViewportHeight <= 0 {
		return 1080
	}
	return b.ViewportHeight
}

// IdleTimeout returns the parsed session idle window with a sane default.
func (s SessionsConfig) IdleTimeout() time.Duration {
	if s.DefaultIdleTimeout == "" {
		return 60 * time.Second
	}
	d, err := time.ParseDuration(s.DefaultIdleTimeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// AttachTimeout returns the parsed attach timeout with a sane default.
func (s SessionsConfig) AttachTimeout() time.Duration {
	if s.DefaultAttachTimeout == "" {
		return 10 * time.Second
	}
	d, err := time.ParseDuration(s.DefaultAttachTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// GetMaxRetries returns how many times a failed operation is retried (default: 3).
func (s SessionsConfig) GetMaxRetries() int {
	if s.MaxRetries == nil || *s.MaxRetries < 0 {
		return 3
	}
	return *s.MaxRetries
}

// RetryDelay returns the backoff before retrying a generic failure.
func (s SessionsConfig) RetryDelay() time.Duration {
	if s.RetryDelayMs <= 0 {
		return 300 * time.Millisecond
	}
	return time.Duration(s.RetryDelayMs) * time.Millisecond
}

// DebugRetryDelay returns the backoff before retrying a classified debugging failure.
func (s SessionsConfig) DebugRetryDelay() time.Duration {
	if s.DebugRetryDelayMs <= 0 {
		return time.Second
	}
	return time.Duration(s.DebugRetryDelayMs) * time.Millisecond
}

// TypeDelay returns the pause between typed characters (default: 50ms, 0 disables).
func (i InputConfig) TypeDelay() time.Duration {
	if i.TypeDelayMs == nil {
		return 50 * time.Millisecond
	}
	if *i.TypeDelayMs <= 0 {
		return 0
	}
	return time.Duration(*i.TypeDelayMs) * time.Millisecond
}

// GetVisibilityThreshold returns the visibility ratio cutoff (default: 0.5).
func (d DetectConfig) GetVisibilityThreshold() float64 {
	if d.VisibilityThreshold <= 0 {
		return 0.5
	}
	return d.VisibilityThreshold
}

// GetMarkerAttribute returns the marker attribute name (default: data-marker-id).
func (d DetectConfig) GetMarkerAttribute() string {
	if d.MarkerAttribute == "" {
		return "data-marker-id"
	}
	return d.MarkerAttribute
}

// GetMaxFiles returns how many rotated trace files to keep (default: 3).
func (r RecorderConfig) GetMaxFiles() int {
	if r.MaxFiles <= 0 {
		return 3
	}
	return r.MaxFiles
}
