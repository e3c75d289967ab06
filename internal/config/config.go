package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Telemetry   TelemetryConfig `mapstructure:"telemetry"`
	Security    SecurityConfig  `mapstructure:"security"`
	Knowledge   KnowledgeConfig `mapstructure:"knowledge"`
	Pipeline    PipelineConfig  `mapstructure:"pipeline"`
	Models      ModelsConfig    `mapstructure:"models"`
	Scoring     ScoringConfig   `mapstructure:"scoring"`
	Lending     LendingConfig   `mapstructure:"lending"`
	ATP         ATPConfig       `mapstructure:"atp"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	ReadTimeout    string   `mapstructure:"read_timeout"`
	WriteTimeout   string   `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	DatabaseURL     string `mapstructure:"database_url"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime string `mapstructure:"conn_max_idle_time"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type TelemetryConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	Exporter       string  `mapstructure:"exporter"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	ServiceVersion string  `mapstructure:"service_version"`
	SampleRate     float64 `mapstructure:"sample_rate"`
}

type SecurityConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" json:"-" yaml:"-"`
	JWTIssuer string `mapstructure:"jwt_issuer"`
	JWTExpiry string `mapstructure:"jwt_expiry"`
}

// KnowledgeConfig selects and feeds the knowledge base.
type KnowledgeConfig struct {
	Strategy       string  `mapstructure:"strategy"`
	RedisKey       string  `mapstructure:"redis_key"`
	FuzzyThreshold float64 `mapstructure:"fuzzy_threshold"`
	EntitiesFile   string  `mapstructure:"entities_file"`
	RefreshCron    string  `mapstructure:"refresh_cron"`
}

// PipelineConfig holds the labeling stage parameters.
type PipelineConfig struct {
	ModelVersion   string  `mapstructure:"model_version"`
	MaxDistance    float64 `mapstructure:"max_distance"`
	ScopeByWho     bool    `mapstructure:"scope_by_who"`
	NERWorkers     int     `mapstructure:"ner_workers"`
	NERBatchSize   int     `mapstructure:"ner_batch_size"`
	LexiconFile    string  `mapstructure:"lexicon_file"`
	IndicatorsFile string  `mapstructure:"indicators_file"`
	StaleDays      int     `mapstructure:"stale_days"`
	EnableATP      bool    `mapstructure:"enable_atp"`
}

// ModelsConfig points at pretrained model files; empty paths use the
// bundled models.
type ModelsConfig struct {
	ClusterModel      string `mapstructure:"cluster_model"`
	Refiner           string `mapstructure:"refiner"`
	RedZoneScorer     string `mapstructure:"redzone_scorer"`
	RepeatScorer      string `mapstructure:"repeat_scorer"`
	LoanPaidOffScorer string `mapstructure:"loan_paid_off_scorer"`
	IsBadScorer       string `mapstructure:"is_bad_scorer"`
}

// ScoringConfig is the log-odds to points scaling.
type ScoringConfig struct {
	BaseScore          float64 `mapstructure:"base_score"`
	BaseOdds           float64 `mapstructure:"base_odds"`
	PointsToDoubleOdds float64 `mapstructure:"points_to_double_odds"`
	MinScore           int     `mapstructure:"min_score"`
	MaxScore           int     `mapstructure:"max_score"`
	RepeatHighCutoff   int     `mapstructure:"repeat_high_cutoff"`
	RepeatMediumCutoff int     `mapstructure:"repeat_medium_cutoff"`
}

// LendingConfig holds the loan and debit amount ratios and bounds.
type LendingConfig struct {
	LoanRatioMin          float64 `mapstructure:"loan_ratio_min"`
	LoanRatioMax          float64 `mapstructure:"loan_ratio_max"`
	LoanFloor             float64 `mapstructure:"loan_floor"`
	LoanCeiling           float64 `mapstructure:"loan_ceiling"`
	DebitRatioMin         float64 `mapstructure:"debit_ratio_min"`
	DebitRatioMax         float64 `mapstructure:"debit_ratio_max"`
	DebitFloor            float64 `mapstructure:"debit_floor"`
	DebitCeiling          float64 `mapstructure:"debit_ceiling"`
	IrregularAdvisoryDays int     `mapstructure:"irregular_advisory_days"`
}

// ATPConfig tunes the peak-availability analysis.
type ATPConfig struct {
	Prominence   float64 `mapstructure:"prominence"`
	PeakDistance int     `mapstructure:"peak_distance"`
	MinimumDays  int     `mapstructure:"minimum_days"`
	DebitAmount  float64 `mapstructure:"debit_amount"`
}

// Load reads config.yaml from ./configs or the working directory, then
// environment variables ("server.port" → SERVER_PORT).
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv("security.jwt_secret", "JWT_SECRET"); err != nil {
		return nil, fmt.Errorf("failed to bind JWT_SECRET environment variable: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	config.Environment = strings.ToLower(config.Environment)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Defaults returns the configuration made of default values only.
func Defaults() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Environment != "development" && c.Environment != "test" && c.Security.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is required in non-development environments")
	}
	if c.Security.JWTExpiry != "" {
		if _, err := time.ParseDuration(c.Security.JWTExpiry); err != nil {
			return fmt.Errorf("invalid JWT expiry duration: %w", err)
		}
	}

	l := c.Lending
	for name, r := range map[string]float64{
		"loan_ratio_min":  l.LoanRatioMin,
		"loan_ratio_max":  l.LoanRatioMax,
		"debit_ratio_min": l.DebitRatioMin,
		"debit_ratio_max": l.DebitRatioMax,
	} {
		if r <= 0 {
			return fmt.Errorf("lending.%s must be positive, got %v", name, r)
		}
	}
	if l.LoanFloor > l.LoanCeiling {
		return fmt.Errorf("lending.loan_floor %v exceeds loan_ceiling %v", l.LoanFloor, l.LoanCeiling)
	}
	if l.DebitFloor > l.DebitCeiling {
		return fmt.Errorf("lending.debit_floor %v exceeds debit_ceiling %v", l.DebitFloor, l.DebitCeiling)
	}

	s := c.Scoring
	if s.BaseOdds <= 0 {
		return fmt.Errorf("scoring.base_odds must be positive, got %v", s.BaseOdds)
	}
	if s.PointsToDoubleOdds <= 0 {
		return fmt.Errorf("scoring.points_to_double_odds must be positive, got %v", s.PointsToDoubleOdds)
	}
	if s.MinScore > s.MaxScore {
		return fmt.Errorf("scoring.min_score %d exceeds max_score %d", s.MinScore, s.MaxScore)
	}
	if s.RepeatMediumCutoff > s.RepeatHighCutoff {
		return fmt.Errorf("scoring.repeat_medium_cutoff %d exceeds repeat_high_cutoff %d", s.RepeatMediumCutoff, s.RepeatHighCutoff)
	}

	switch c.Knowledge.Strategy {
	case "regex", "lookup":
	default:
		return fmt.Errorf("knowledge.strategy must be regex or lookup, got %q", c.Knowledge.Strategy)
	}
	if c.Knowledge.Strategy == "lookup" && !c.Redis.Enabled {
		return errors.New("knowledge.strategy lookup requires redis.enabled")
	}
	if c.Pipeline.MaxDistance < 0 || c.Pipeline.MaxDistance >= 1 {
		return fmt.Errorf("pipeline.max_distance must be in [0, 1), got %v", c.Pipeline.MaxDistance)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "redzone")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.database_url", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", "300s")
	v.SetDefault("database.conn_max_idle_time", "60s")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.exporter", "stdout")
	v.SetDefault("telemetry.otlp_endpoint", "http://localhost:4318")
	v.SetDefault("telemetry.service_name", "redzone-go")
	v.SetDefault("telemetry.service_version", "1.0.0")
	v.SetDefault("telemetry.sample_rate", 1.0)

	v.SetDefault("security.jwt_issuer", "redzone-go")
	v.SetDefault("security.jwt_expiry", "1h")

	v.SetDefault("knowledge.strategy", "regex")
	v.SetDefault("knowledge.redis_key", "kb:payers")
	v.SetDefault("knowledge.fuzzy_threshold", 0.92)
	v.SetDefault("knowledge.entities_file", "")
	v.SetDefault("knowledge.refresh_cron", "@every 6h")

	v.SetDefault("pipeline.model_version", "redzone-2.0.0")
	v.SetDefault("pipeline.max_distance", 0.15)
	v.SetDefault("pipeline.scope_by_who", true)
	v.SetDefault("pipeline.ner_workers", 0)
	v.SetDefault("pipeline.ner_batch_size", 256)
	v.SetDefault("pipeline.lexicon_file", "")
	v.SetDefault("pipeline.indicators_file", "")
	v.SetDefault("pipeline.stale_days", 45)
	v.SetDefault("pipeline.enable_atp", true)

	v.SetDefault("models.cluster_model", "")
	v.SetDefault("models.refiner", "")
	v.SetDefault("models.redzone_scorer", "")
	v.SetDefault("models.repeat_scorer", "")
	v.SetDefault("models.loan_paid_off_scorer", "")
	v.SetDefault("models.is_bad_scorer", "")

	v.SetDefault("scoring.base_score", 850.0)
	v.SetDefault("scoring.base_odds", 20.0)
	v.SetDefault("scoring.points_to_double_odds", 100.0)
	v.SetDefault("scoring.min_score", 0)
	v.SetDefault("scoring.max_score", 1000)
	v.SetDefault("scoring.repeat_high_cutoff", 700)
	v.SetDefault("scoring.repeat_medium_cutoff", 500)

	v.SetDefault("lending.loan_ratio_min", 2.988)
	v.SetDefault("lending.loan_ratio_max", 3.928)
	v.SetDefault("lending.loan_floor", 300.0)
	v.SetDefault("lending.loan_ceiling", 1000.0)
	v.SetDefault("lending.debit_ratio_min", 0.843)
	v.SetDefault("lending.debit_ratio_max", 1.185)
	v.SetDefault("lending.debit_floor", 90.0)
	v.SetDefault("lending.debit_ceiling", 300.0)
	v.SetDefault("lending.irregular_advisory_days", 14)

	v.SetDefault("atp.prominence", 50.0)
	v.SetDefault("atp.peak_distance", 5)
	v.SetDefault("atp.minimum_days", 2)
	v.SetDefault("atp.debit_amount", 0.0)
}
