package config

import (
	"fmt"
	"os"
	"strings"

	"sqlboost/internal/runinfo"

	"gopkg.in/yaml.v3"
)

// Config captures all runtime options for the rewrite scheduler.
type Config struct {
	DSN                string             `yaml:"dsn"`
	SyntheticDSN       string             `yaml:"synthetic_dsn"`
	Database           string             `yaml:"database"`
	Seed               int64              `yaml:"seed"`
	Concurrency        int                `yaml:"concurrency"`
	StatementTimeoutMs int                `yaml:"statement_timeout_ms"`
	Triage             TriageConfig       `yaml:"triage"`
	Session            SessionConfig      `yaml:"session"`
	Oracle             OracleConfig       `yaml:"oracle"`
	Timing             TimingConfig       `yaml:"timing"`
	History            HistoryConfig      `yaml:"history"`
	Report             ReportConfig       `yaml:"report"`
	Storage            StorageConfig      `yaml:"storage"`
	Logging            Logging            `yaml:"logging"`
	RunInfo            *runinfo.BasicInfo `yaml:"-"`
}

// TriageConfig controls bucketing and priority for the scheduling pass.
type TriageConfig struct {
	SkipBelowMs     float64 `yaml:"skip_below_ms"`
	LowBelowMs      float64 `yaml:"low_below_ms"`
	MediumBelowMs   float64 `yaml:"medium_below_ms"`
	PriorBoost      bool    `yaml:"prior_boost"`
	RequireApproval bool    `yaml:"require_approval"`
}

// SessionConfig controls the per-job search loop.
type SessionConfig struct {
	WideLanes      int      `yaml:"wide_lanes"`
	StrikeLanes    int      `yaml:"strike_lanes"`
	WinThreshold   float64  `yaml:"win_threshold"`
	NeutralFloor   float64  `yaml:"neutral_floor"`
	TargetSpeedup  float64  `yaml:"target_speedup"`
	Strategies     []string `yaml:"strategies"`
	CacheSize      int      `yaml:"cache_size"`
	Adaptive       bool     `yaml:"adaptive"`
	UCBExploration float64  `yaml:"ucb_exploration"`
}

// OracleConfig points at the external rewrite oracle. The command gets
// the generation prompt on stdin and answers on stdout.
type OracleConfig struct {
	Command        string   `yaml:"command"`
	Args           []string `yaml:"args"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// TimingConfig selects the measurement policy.
type TimingConfig struct {
	Policy string `yaml:"policy"`
	Runs   int    `yaml:"runs"`
}

// HistoryConfig controls checkpoint resume and history seeding.
type HistoryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Path     string `yaml:"path"`
	SeedBest bool   `yaml:"seed_best"`
}

// ReportConfig controls case artifact output.
type ReportConfig struct {
	OutputDir string `yaml:"output_dir"`
	MaxRows   int    `yaml:"max_rows"`
}

// Logging controls stdout logging behavior.
type Logging struct {
	Verbose               bool   `yaml:"verbose"`
	ReportIntervalSeconds int    `yaml:"report_interval_seconds"`
	LogFile               string `yaml:"log_file"`
}

// StorageConfig holds external storage settings.
type StorageConfig struct {
	S3  S3Config  `yaml:"s3"`
	GCS GCSConfig `yaml:"gcs"`
}

// CloudEnabled reports whether any cloud storage backend is enabled.
func (s StorageConfig) CloudEnabled() bool {
	return s.GCS.Enabled || s.S3.Enabled
}

// S3Config configures S3 uploads (legacy and S3-compatible endpoints).
type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// GCSConfig configures GCS uploads.
type GCSConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	CredentialsFile string `yaml:"credentials_file"`
}

// Timing policy values accepted in TimingConfig.Policy.
const (
	TimingDiscardWarmup = "discard_warmup"
	TimingTrimmedMean   = "trimmed_mean"
)

// Load reads configuration from a YAML file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	normalizeConfig(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	cfg.RunInfo = runinfo.FromEnv()
	return cfg, nil
}

// Validate rejects configurations the scheduler cannot run with.
// Failing here is fatal at construction time; nothing is dispatched.
func (c Config) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("config: concurrency must be >= 1, got %d", c.Concurrency)
	}
	if c.Session.WideLanes < 1 {
		return fmt.Errorf("config: session.wide_lanes must be >= 1, got %d", c.Session.WideLanes)
	}
	if c.Session.StrikeLanes < 1 {
		return fmt.Errorf("config: session.strike_lanes must be >= 1, got %d", c.Session.StrikeLanes)
	}
	if c.Session.WinThreshold < 1.0 {
		return fmt.Errorf("config: session.win_threshold must be >= 1.0, got %v", c.Session.WinThreshold)
	}
	if c.Session.NeutralFloor <= 0 || c.Session.NeutralFloor > 1.0 {
		return fmt.Errorf("config: session.neutral_floor must be in (0, 1.0], got %v", c.Session.NeutralFloor)
	}
	switch c.Timing.Policy {
	case TimingDiscardWarmup:
		if c.Timing.Runs < 2 {
			return fmt.Errorf("config: timing.runs must be >= 2 for %s, got %d", c.Timing.Policy, c.Timing.Runs)
		}
	case TimingTrimmedMean:
		if c.Timing.Runs < 5 {
			return fmt.Errorf("config: timing.runs must be >= 5 for %s, got %d", c.Timing.Policy, c.Timing.Runs)
		}
	default:
		return fmt.Errorf("config: unknown timing.policy %q", c.Timing.Policy)
	}
	if !(c.Triage.SkipBelowMs < c.Triage.LowBelowMs && c.Triage.LowBelowMs < c.Triage.MediumBelowMs) {
		return fmt.Errorf("config: triage thresholds must be strictly increasing")
	}
	return nil
}

func normalizeConfig(cfg *Config) {
	if cfg.Database != "" {
		cfg.DSN = ensureDatabaseInDSN(cfg.DSN, cfg.Database)
	}
	if cfg.SyntheticDSN == "" {
		cfg.SyntheticDSN = cfg.DSN
	}
	if cfg.Session.TargetSpeedup > 0 && cfg.Session.TargetSpeedup < cfg.Session.WinThreshold {
		cfg.Session.TargetSpeedup = cfg.Session.WinThreshold
	}
	if cfg.Session.CacheSize <= 0 {
		cfg.Session.CacheSize = 512
	}
	if cfg.Session.UCBExploration <= 0 {
		cfg.Session.UCBExploration = 1.5
	}
	if len(cfg.Session.Strategies) == 0 {
		cfg.Session.Strategies = defaultStrategies()
	}
	if cfg.History.Path == "" {
		cfg.History.Path = "checkpoint.json"
	}
	if cfg.Report.MaxRows <= 0 {
		cfg.Report.MaxRows = 50
	}
	if cfg.StatementTimeoutMs <= 0 {
		cfg.StatementTimeoutMs = 15000
	}
}

func defaultStrategies() []string {
	return []string{
		"predicate_pushdown",
		"join_reorder",
		"subquery_unnest",
		"aggregate_simplify",
		"index_hint",
		"limit_pushdown",
	}
}

func ensureDatabaseInDSN(dsn string, dbName string) string {
	if dsn == "" || dbName == "" {
		return dsn
	}
	slash := strings.Index(dsn, "/")
	if slash < 0 {
		return dsn
	}
	query := strings.Index(dsn[slash+1:], "?")
	if query >= 0 {
		query = slash + 1 + query
	}
	afterSlash := dsn[slash+1:]
	if query >= 0 {
		afterSlash = dsn[slash+1 : query]
	}
	if strings.TrimSpace(afterSlash) != "" {
		return dsn
	}
	if query >= 0 {
		return dsn[:slash+1] + dbName + dsn[query:]
	}
	return dsn + dbName
}

// UpdateDatabaseInDSN replaces the database name in the DSN path with dbName.
// It preserves query parameters, if any.
func UpdateDatabaseInDSN(dsn string, dbName string) string {
	if dsn == "" || dbName == "" {
		return dsn
	}
	slash := strings.Index(dsn, "/")
	if slash < 0 {
		return dsn
	}
	query := strings.Index(dsn[slash+1:], "?")
	if query >= 0 {
		query = slash + 1 + query
		return dsn[:slash+1] + dbName + dsn[query:]
	}
	return dsn[:slash+1] + dbName
}

// AdminDSN strips the database name from a DSN while preserving query parameters.
func AdminDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	slash := strings.Index(dsn, "/")
	if slash < 0 {
		return dsn
	}
	query := strings.Index(dsn[slash+1:], "?")
	if query >= 0 {
		query = slash + 1 + query
		return dsn[:slash+1] + dsn[query:]
	}
	return dsn[:slash+1]
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DSN:                "root:@tcp(127.0.0.1:4000)/",
		Database:           "sqlboost",
		Concurrency:        4,
		StatementTimeoutMs: 15000,
		Triage: TriageConfig{
			SkipBelowMs:   100,
			LowBelowMs:    1000,
			MediumBelowMs: 10000,
			PriorBoost:    true,
		},
		Session: SessionConfig{
			WideLanes:      4,
			StrikeLanes:    2,
			WinThreshold:   1.10,
			NeutralFloor:   0.95,
			TargetSpeedup:  1.5,
			CacheSize:      512,
			Adaptive:       true,
			UCBExploration: 1.5,
		},
		Oracle: OracleConfig{
			TimeoutSeconds: 120,
		},
		Timing: TimingConfig{
			Policy: TimingTrimmedMean,
			Runs:   5,
		},
		History: HistoryConfig{
			Enabled:  true,
			Path:     "checkpoint.json",
			SeedBest: true,
		},
		Report: ReportConfig{
			OutputDir: "reports",
			MaxRows:   50,
		},
		Logging: Logging{
			ReportIntervalSeconds: 30,
			LogFile:               "logs/sqlboost.log",
		},
	}
}
