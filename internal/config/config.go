// Package config loads the frozen configuration for one router process by
// merging built-in defaults, environment variable overrides, and an
// optional JSON-with-comments file, in that order of increasing priority.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/portmantle/shipyard/internal/log"
)

// defaultToolNames is the full set of intercepted tool families.
var defaultToolNames = []string{"shell", "read", "write", "edit", "grep", "glob", "list"}

// Config is the frozen, process-wide configuration for the router. It is
// built once by Load and never mutated afterward.
type Config struct {
	Enabled              bool
	InterceptedToolNames []string
	RuntimeBinary        string
	BypassPrefixes       []string
	StateFilePath        string
	LogDir               string
	LogRetentionDays     int
	Scope                string
	FallbackToHost       bool
	Container            ContainerConfig
}

// ContainerConfig configures the container a scope routes into.
type ContainerConfig struct {
	Name                string            `json:"name,omitempty"`
	NamePrefix          string            `json:"namePrefix,omitempty"`
	Image               string            `json:"image,omitempty"`
	Workdir             string            `json:"workdir,omitempty"`
	ProjectPathOverride string            `json:"projectPath,omitempty"`
	Network             string            `json:"network,omitempty"`
	Env                 map[string]string `json:"env,omitempty"`
	Mounts              []string          `json:"mounts,omitempty"`
	Command             []string          `json:"command,omitempty"`
	AutoCreate          bool              `json:"autoCreate"`
	AutoStart           bool              `json:"autoStart"`
}

// Mount is one parsed entry of ContainerConfig.Mounts: a host path bound
// into the container at an absolute path, optionally read-only.
type Mount struct {
	Source   string
	Target   string
	ReadOnly bool
}

// ParseMount parses one ContainerConfig.Mounts entry, "source:target[:ro]".
// Target must be an absolute container path since it is passed straight
// through to the runtime's -v flag; a relative target would resolve
// against the container's working directory instead of the intended
// mountpoint and silently land somewhere else.
func ParseMount(s string) (*Mount, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return nil, fmt.Errorf("invalid mount %q: expected source:target[:ro]", s)
	}

	source, target := parts[0], parts[1]
	if source == "" {
		return nil, fmt.Errorf("invalid mount %q: source is empty", s)
	}
	if !strings.HasPrefix(target, "/") {
		return nil, fmt.Errorf("invalid mount %q: target %q must be an absolute container path", s, target)
	}

	m := &Mount{Source: source, Target: target}
	if len(parts) == 3 {
		if parts[2] != "ro" {
			return nil, fmt.Errorf("invalid mount %q: third segment must be %q", s, "ro")
		}
		m.ReadOnly = true
	}

	return m, nil
}

// routingConfig mirrors the file's "routing" object. FallbackToHost is a
// *bool, not bool, so a "routing" object that sets only "scope" doesn't
// silently reset fallbackToHost to false during the merge.
type routingConfig struct {
	Scope          string `json:"scope"`
	FallbackToHost *bool  `json:"fallbackToHost"`
}

// containerFileSchema mirrors the file's "container" object. AutoCreate
// and AutoStart are *bool, not bool, so a file that sets only one of them
// doesn't silently reset the other to its zero value during the merge.
type containerFileSchema struct {
	Name                string            `json:"name,omitempty"`
	NamePrefix          string            `json:"namePrefix,omitempty"`
	Image               string            `json:"image,omitempty"`
	Workdir             string            `json:"workdir,omitempty"`
	ProjectPathOverride string            `json:"projectPath,omitempty"`
	Network             string            `json:"network,omitempty"`
	Env                 map[string]string `json:"env,omitempty"`
	Mounts              []string          `json:"mounts,omitempty"`
	Command             []string          `json:"command,omitempty"`
	AutoCreate          *bool             `json:"autoCreate"`
	AutoStart           *bool             `json:"autoStart"`
}

// fileSchema mirrors the on-disk JSONC shape exactly so unknown fields can
// be rejected with json.Decoder's DisallowUnknownFields.
type fileSchema struct {
	Enabled          *bool                `json:"enabled"`
	ToolNames        []string             `json:"toolNames"`
	RuntimeBinary    string               `json:"runtimeBinary"`
	BypassPrefixes   []string             `json:"bypassPrefixes"`
	StateFile        string               `json:"stateFile"`
	LogDir           string               `json:"logDir"`
	LogRetentionDays *int                 `json:"logRetentionDays"`
	Routing          *routingConfig       `json:"routing"`
	Container        *containerFileSchema `json:"container"`
}

// IsToolIntercepted reports whether name is one of the configured tool
// families.
func (c *Config) IsToolIntercepted(name string) bool {
	for _, n := range c.InterceptedToolNames {
		if n == name {
			return true
		}
	}
	return false
}

// HasBypassPrefix reports whether command starts with one of the
// configured bypass prefixes.
func (c *Config) HasBypassPrefix(command string) bool {
	for _, prefix := range c.BypassPrefixes {
		if strings.HasPrefix(command, prefix) {
			return true
		}
	}
	return false
}

// Default returns the built-in defaults, with no environment or file
// overrides applied.
func Default() *Config {
	return &Config{
		Enabled:              true,
		InterceptedToolNames: append([]string(nil), defaultToolNames...),
		RuntimeBinary:        "docker",
		BypassPrefixes:       []string{"docker "},
		StateFilePath:        defaultStateFilePath(),
		LogDir:               defaultLogDir(),
		LogRetentionDays:     7,
		Scope:                "root",
		FallbackToHost:       false,
		Container: ContainerConfig{
			NamePrefix: "opencode",
			Workdir:    "/workspace",
			AutoCreate: false,
			AutoStart:  true,
		},
	}
}

func defaultStateFilePath() string {
	return filepath.Join(".sandbox", "state.json")
}

func defaultLogDir() string {
	return filepath.Join(".sandbox", "logs")
}

// Load builds a Config for the process rooted at projectRoot: defaults,
// then environment variable overrides, then the JSONC file at
// <projectRoot>/.sandbox/router.jsonc (or SHIPYARD_CONFIG_FILE if set).
// File and parse errors are logged as warnings and the defaults-plus-env
// result is returned unchanged, per this package's fail-open contract.
func Load(projectRoot string) *Config {
	cfg := Default()
	cfg.StateFilePath = filepath.Join(projectRoot, defaultStateFilePath())
	cfg.LogDir = filepath.Join(projectRoot, defaultLogDir())
	cfg.Container.ProjectPathOverride = projectRoot

	applyEnvOverrides(cfg)

	configPath := os.Getenv("SHIPYARD_CONFIG_FILE")
	if configPath == "" {
		configPath = filepath.Join(projectRoot, ".sandbox", "router.jsonc")
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("reading router config, proceeding with defaults", "path", configPath, "error", err)
		}
		return cfg
	}

	merged := *cfg
	if err := applyFileOverrides(&merged, data); err != nil {
		log.Warn("parsing router config, proceeding with defaults", "path", configPath, "error", err)
		return cfg
	}

	return &merged
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SHIPYARD_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Enabled = b
		}
	}
	if v := os.Getenv("SHIPYARD_RUNTIME_BINARY"); v != "" {
		cfg.RuntimeBinary = v
	}
	if v := os.Getenv("SHIPYARD_STATE_FILE"); v != "" {
		cfg.StateFilePath = v
	}
	if v := os.Getenv("SHIPYARD_LOG_DIR"); v != "" {
		cfg.LogDir = v
	}
	if v := os.Getenv("SHIPYARD_LOG_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LogRetentionDays = n
		}
	}
	if v := os.Getenv("SHIPYARD_SCOPE"); v != "" {
		cfg.Scope = v
	}
	if v := os.Getenv("SHIPYARD_FALLBACK_TO_HOST"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.FallbackToHost = b
		}
	}
	if v := os.Getenv("SHIPYARD_CONTAINER_IMAGE"); v != "" {
		cfg.Container.Image = v
	}
	if v := os.Getenv("SHIPYARD_CONTAINER_NAME"); v != "" {
		cfg.Container.Name = v
	}
}

// applyFileOverrides strips comments from data and unmarshals it into cfg,
// rejecting unrecognised fields.
func applyFileOverrides(cfg *Config, data []byte) error {
	stripped := jsonc.ToJSON(data)

	var schema fileSchema
	dec := json.NewDecoder(strings.NewReader(string(stripped)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&schema); err != nil {
		return fmt.Errorf("unrecognised config schema: %w", err)
	}

	if schema.Enabled != nil {
		cfg.Enabled = *schema.Enabled
	}
	if len(schema.ToolNames) > 0 {
		cfg.InterceptedToolNames = schema.ToolNames
	}
	if schema.RuntimeBinary != "" {
		cfg.RuntimeBinary = schema.RuntimeBinary
	}
	if len(schema.BypassPrefixes) > 0 {
		cfg.BypassPrefixes = schema.BypassPrefixes
	}
	if schema.StateFile != "" {
		cfg.StateFilePath = schema.StateFile
	}
	if schema.LogDir != "" {
		cfg.LogDir = schema.LogDir
	}
	if schema.LogRetentionDays != nil {
		cfg.LogRetentionDays = *schema.LogRetentionDays
	}
	if schema.Routing != nil {
		if schema.Routing.Scope != "" {
			cfg.Scope = schema.Routing.Scope
		}
		if schema.Routing.FallbackToHost != nil {
			cfg.FallbackToHost = *schema.Routing.FallbackToHost
		}
	}
	if schema.Container != nil {
		mergeContainer(&cfg.Container, schema.Container)
	}

	if cfg.Scope != "session" && cfg.Scope != "root" {
		return fmt.Errorf("routing.scope must be %q or %q, got %q", "session", "root", cfg.Scope)
	}

	return nil
}

func mergeContainer(dst *ContainerConfig, src *containerFileSchema) {
	if src.Name != "" {
		dst.Name = src.Name
	}
	if src.NamePrefix != "" {
		dst.NamePrefix = src.NamePrefix
	}
	if src.Image != "" {
		dst.Image = src.Image
	}
	if src.Workdir != "" {
		dst.Workdir = src.Workdir
	}
	if src.ProjectPathOverride != "" {
		dst.ProjectPathOverride = src.ProjectPathOverride
	}
	if src.Network != "" {
		dst.Network = src.Network
	}
	if src.Env != nil {
		dst.Env = src.Env
	}
	if src.Mounts != nil {
		dst.Mounts = src.Mounts
	}
	if src.Command != nil {
		dst.Command = src.Command
	}
	if src.AutoCreate != nil {
		dst.AutoCreate = *src.AutoCreate
	}
	if src.AutoStart != nil {
		dst.AutoStart = *src.AutoStart
	}
}
