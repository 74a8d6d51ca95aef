// Package config provides unified configuration loading for vpgen.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/vpgen/internal/blackbox"
	"github.com/nvandessel/vpgen/internal/constants"
	"github.com/nvandessel/vpgen/internal/docstore"
	"github.com/nvandessel/vpgen/internal/simulate"
	"github.com/nvandessel/vpgen/internal/store"
)

// VpgenConfig contains all vpgen configuration settings.
type VpgenConfig struct {
	// Graph selects and configures the reaction graph backend.
	Graph GraphConfig `json:"graph" yaml:"graph"`

	// Simulation configures the integration horizon of every evaluation.
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`

	// Objective configures the objective wrapper.
	Objective ObjectiveConfig `json:"objective" yaml:"objective"`

	// Documents configures where assembled model documents are kept.
	Documents DocumentsConfig `json:"documents" yaml:"documents"`

	// Results configures where evaluations are recorded.
	Results ResultsConfig `json:"results" yaml:"results"`

	// Logging contains settings for operational logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// GraphConfig configures the reaction knowledge graph.
type GraphConfig struct {
	// Backend is "memory" (default), "sqlite" or "surreal".
	Backend constants.Backend `json:"backend" yaml:"backend"`

	// SQLiteDir holds graph.db and the JSONL snapshot for the sqlite backend.
	SQLiteDir string `json:"sqlite_dir,omitempty" yaml:"sqlite_dir,omitempty"`

	// Surreal configures the surreal backend.
	Surreal SurrealConfig `json:"surreal" yaml:"surreal"`
}

// SurrealConfig holds SurrealDB connection settings.
type SurrealConfig struct {
	URL       string `json:"url,omitempty" yaml:"url,omitempty"`
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Database  string `json:"database,omitempty" yaml:"database,omitempty"`
	Username  string `json:"username,omitempty" yaml:"username,omitempty"`

	// Password supports ${VAR} syntax for env vars.
	Password string `json:"password,omitempty" yaml:"password,omitempty"`

	// AuthLevel is "root" (default) or "database".
	AuthLevel string `json:"auth_level,omitempty" yaml:"auth_level,omitempty"`
}

// RedactedPassword returns the password with most characters masked.
// Shows first 2 and last 2 characters, e.g., "ro...ot".
// Returns "" for empty passwords and "(set)" for passwords shorter than 8 chars.
func (c SurrealConfig) RedactedPassword() string {
	if c.Password == "" {
		return ""
	}
	if len(c.Password) < 8 {
		return "(set)"
	}
	return c.Password[:2] + "..." + c.Password[len(c.Password)-2:]
}

// String implements fmt.Stringer to prevent accidental password logging.
func (c SurrealConfig) String() string {
	return fmt.Sprintf("SurrealConfig{URL:%s, Namespace:%s, Database:%s, Username:%s, Password:%s}",
		c.URL, c.Namespace, c.Database, c.Username, c.RedactedPassword())
}

// Store converts the settings for store.NewSurrealGraphStore.
func (c SurrealConfig) Store() store.SurrealConfig {
	return store.SurrealConfig{
		URL:       c.URL,
		Namespace: c.Namespace,
		Database:  c.Database,
		Username:  c.Username,
		Password:  c.Password,
		AuthLevel: c.AuthLevel,
	}
}

// SimulationConfig configures numerical integration.
type SimulationConfig struct {
	Start  float64 `json:"start" yaml:"start"`
	End    float64 `json:"end" yaml:"end"`
	Points int     `json:"points" yaml:"points"`

	// Transitory is the fraction of the horizon where the transitory slope starts.
	Transitory float64 `json:"transitory" yaml:"transitory"`

	RelTol   float64 `json:"rtol" yaml:"rtol"`
	AbsTol   float64 `json:"atol" yaml:"atol"`
	MaxSteps int     `json:"max_steps" yaml:"max_steps"`

	// Method is the integration scheme: auto, dopri5 or rosenbrock23.
	Method string `json:"method,omitempty" yaml:"method,omitempty"`

	// Timeout bounds one evaluation. Zero disables the deadline.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Blackbox converts the settings for blackbox.Evaluate.
func (c SimulationConfig) Blackbox() blackbox.Config {
	return blackbox.Config{
		Simulation: simulate.Options{
			Start:    c.Start,
			End:      c.End,
			Points:   c.Points,
			RelTol:   c.RelTol,
			AbsTol:   c.AbsTol,
			MaxSteps: c.MaxSteps,
			Method:   simulate.Method(c.Method),
		},
		Transitory: c.Transitory,
	}
}

// ObjectiveConfig configures the objective wrapper.
type ObjectiveConfig struct {
	// Penalty fills every objective slot of a failed evaluation.
	Penalty float64 `json:"penalty" yaml:"penalty"`
}

// DocumentsConfig configures model document storage. When S3.Bucket is set
// documents go to S3, otherwise to Dir.
type DocumentsConfig struct {
	Dir string   `json:"dir" yaml:"dir"`
	S3  S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 settings. Credentials come from the default AWS chain.
type S3Config struct {
	Bucket    string `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Region    string `json:"region,omitempty" yaml:"region,omitempty"`
	Endpoint  string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	PathStyle bool   `json:"path_style,omitempty" yaml:"path_style,omitempty"`
	Prefix    string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// Docstore converts the settings for docstore.NewS3Store.
func (c S3Config) Docstore() docstore.S3Config {
	return docstore.S3Config{
		Bucket:    c.Bucket,
		Region:    c.Region,
		Endpoint:  c.Endpoint,
		PathStyle: c.PathStyle,
		Prefix:    c.Prefix,
	}
}

// ResultsConfig configures evaluation records. PostgresDSN wins over File;
// with neither set nothing is recorded.
type ResultsConfig struct {
	File string `json:"file,omitempty" yaml:"file,omitempty"`

	// PostgresDSN supports ${VAR} syntax for env vars.
	PostgresDSN string `json:"postgres_dsn,omitempty" yaml:"postgres_dsn,omitempty"`
}

// LoggingConfig configures vpgen's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	Level string `json:"level" yaml:"level"`

	// File, when set, receives a JSON copy of every log record.
	File string `json:"file,omitempty" yaml:"file,omitempty"`
}

// Home returns the vpgen state directory, ~/.vpgen, or .vpgen when the
// home directory is unknown.
func Home() string {
	if home, err := store.HomePath(); err == nil {
		return home
	}
	return ".vpgen"
}

// Default returns a VpgenConfig with sensible defaults.
func Default() *VpgenConfig {
	home := Home()
	graphDir, err := store.DefaultGraphDir()
	if err != nil {
		graphDir = filepath.Join(home, "graph")
	}
	return &VpgenConfig{
		Graph: GraphConfig{
			Backend:   constants.BackendMemory,
			SQLiteDir: graphDir,
			Surreal: SurrealConfig{
				URL:       "ws://localhost:8000/rpc",
				Namespace: "vpgen",
				Database:  "reactome",
				Username:  "root",
				AuthLevel: "root",
			},
		},
		Simulation: SimulationConfig{
			Start:      constants.DefaultSimulationStart,
			End:        constants.DefaultSimulationEnd,
			Points:     constants.DefaultSimulationPoints,
			Transitory: constants.DefaultTransitory,
			RelTol:     constants.DefaultRelTol,
			AbsTol:     constants.DefaultAbsTol,
			MaxSteps:   constants.DefaultMaxSteps,
			Method:     string(simulate.MethodAuto),
		},
		Objective: ObjectiveConfig{
			Penalty: constants.DefaultPenalty,
		},
		Documents: DocumentsConfig{
			Dir: filepath.Join(home, "models"),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from path, or from ~/.vpgen/config.yaml when
// path is empty and that file exists, then applies environment overrides.
// Order: defaults -> config file -> environment variables
func Load(path string) (*VpgenConfig, error) {
	config := Default()

	if path == "" {
		candidate := filepath.Join(Home(), "config.yaml")
		if _, statErr := os.Stat(candidate); statErr == nil {
			path = candidate
		}
	}
	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		config = fileConfig
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*VpgenConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Expand environment variables in secrets
	config.Graph.Surreal.Password = expandEnvVars(config.Graph.Surreal.Password)
	config.Results.PostgresDSN = expandEnvVars(config.Results.PostgresDSN)

	return config, nil
}

// Validate checks that the configuration is valid.
func (c *VpgenConfig) Validate() error {
	if !c.Graph.Backend.Valid() {
		return fmt.Errorf("invalid graph backend: %s (valid: memory, sqlite, surreal)", c.Graph.Backend)
	}
	if c.Graph.Backend == constants.BackendSQLite && c.Graph.SQLiteDir == "" {
		return fmt.Errorf("sqlite backend requires graph.sqlite_dir")
	}
	if c.Graph.Backend == constants.BackendSurreal && c.Graph.Surreal.URL == "" {
		return fmt.Errorf("surreal backend requires graph.surreal.url")
	}

	s := c.Simulation
	if !(s.End > s.Start) {
		return fmt.Errorf("simulation end must be after start, got start %g end %g", s.Start, s.End)
	}
	if s.Points < 2 {
		return fmt.Errorf("simulation points must be at least 2, got %d", s.Points)
	}
	if s.Transitory < 0 || s.Transitory >= 1 {
		return fmt.Errorf("transitory must be in [0, 1), got %g", s.Transitory)
	}
	if s.RelTol <= 0 || s.AbsTol <= 0 {
		return fmt.Errorf("rtol and atol must be positive, got %g and %g", s.RelTol, s.AbsTol)
	}
	if s.MaxSteps <= 0 {
		return fmt.Errorf("max_steps must be positive, got %d", s.MaxSteps)
	}
	if !simulate.Method(s.Method).Valid() {
		return fmt.Errorf("invalid simulation method: %s (valid: auto, dopri5, rosenbrock23)", s.Method)
	}
	if s.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative, got %v", s.Timeout)
	}

	if p := c.Objective.Penalty; p < 0 || math.IsInf(p, 0) || math.IsNaN(p) {
		return fmt.Errorf("penalty must be a non-negative finite number, got %g", p)
	}

	if c.Documents.Dir == "" && c.Documents.S3.Bucket == "" {
		return fmt.Errorf("documents need a directory or an s3 bucket")
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *VpgenConfig) {
	setFloat := func(name string, dst *float64) {
		if v := os.Getenv(name); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			}
		}
	}
	setString := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	setFloat("SIMULATION_START", &config.Simulation.Start)
	setFloat("SIMULATION_END", &config.Simulation.End)
	if v := os.Getenv("SIMULATION_POINTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Simulation.Points = n
		}
	}
	setFloat("TRANSITORY", &config.Simulation.Transitory)
	setString("SIMULATION_METHOD", &config.Simulation.Method)
	setFloat("VPGEN_PENALTY", &config.Objective.Penalty)

	if v := os.Getenv("VPGEN_GRAPH_BACKEND"); v != "" {
		config.Graph.Backend = constants.Backend(v)
	}
	setString("VPGEN_SQLITE_DIR", &config.Graph.SQLiteDir)
	setString("REACTOME_URL", &config.Graph.Surreal.URL)
	setString("REACTOME_NAMESPACE", &config.Graph.Surreal.Namespace)
	setString("REACTOME_DATABASE", &config.Graph.Surreal.Database)
	setString("REACTOME_USERNAME", &config.Graph.Surreal.Username)
	setString("REACTOME_PASSWORD", &config.Graph.Surreal.Password)

	setString("VPGEN_DOCUMENTS_DIR", &config.Documents.Dir)
	setString("VPGEN_S3_BUCKET", &config.Documents.S3.Bucket)
	setString("VPGEN_S3_REGION", &config.Documents.S3.Region)
	setString("VPGEN_S3_ENDPOINT", &config.Documents.S3.Endpoint)
	if v := os.Getenv("VPGEN_S3_PATH_STYLE"); v != "" {
		config.Documents.S3.PathStyle = v == "true" || v == "1"
	}

	setString("VPGEN_RESULTS_DSN", &config.Results.PostgresDSN)
	setString("VPGEN_RESULTS_FILE", &config.Results.File)

	setString("VPGEN_LOG_LEVEL", &config.Logging.Level)
	setString("VPGEN_LOG_FILE", &config.Logging.File)
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
