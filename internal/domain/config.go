package domain

// Config holds the complete Harrier configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines feature availability
	Tier Tier `json:"tier"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Engine configurations
	Scoring   ScoringConfig  `json:"scoring"`
	Matcher   MatcherConfig  `json:"matcher"`
	Providers ProviderConfig `json:"providers"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// ScoringConfig holds composite scoring settings.
type ScoringConfig struct {
	// Weights per category. Normalized to sum to 1 at engine construction;
	// missing categories default to 0.
	Weights map[Category]float64 `json:"weights"`
}

// MatcherConfig holds fuzzy matching settings.
type MatcherConfig struct {
	// Classification thresholds on the blended similarity score.
	ExactThreshold  float64 `json:"exactThreshold"`
	StrongThreshold float64 `json:"strongThreshold"`
	WeakThreshold   float64 `json:"weakThreshold"`

	// TokenBlend is the weight of token-set similarity in the blend;
	// edit-distance similarity gets 1 - TokenBlend.
	TokenBlend float64 `json:"tokenBlend"`

	// JurisdictionPenalty multiplies the score when the candidate's
	// jurisdiction contradicts the query hint. Soft penalty, never exclusion.
	JurisdictionPenalty float64 `json:"jurisdictionPenalty"`

	// TopK caps the candidates returned per dataset.
	TopK int `json:"topK"`
}

// ProviderConfig holds external signal provider settings.
type ProviderConfig struct {
	// TimeoutMs bounds each provider call. A timed-out provider is
	// recorded as unavailable, never an error.
	TimeoutMs int `json:"timeoutMs"`

	// Call budget per tenant per window; 0 disables quota enforcement.
	QuotaLimit      int `json:"quotaLimit"`
	QuotaWindowSecs int `json:"quotaWindowSecs"`

	// ResultTTLSecs controls assessment result caching; 0 disables.
	ResultTTLSecs int `json:"resultTTLSecs"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled"`
	ServiceName  string `json:"serviceName"`
	ExporterType string `json:"exporterType"` // stdout, otlp, jaeger
	Endpoint     string `json:"endpoint"`
}

// Tier represents the product tier.
type Tier string

const (
	// TierCommunity is the free tier with SQLite + channels
	TierCommunity Tier = "community"

	// TierPro is the paid tier with PostgreSQL + NATS + Redis
	TierPro Tier = "pro"

	// TierEnterprise includes multi-node, SSO, etc.
	TierEnterprise Tier = "enterprise"
)

// DefaultWeights returns the standard category weights.
func DefaultWeights() map[Category]float64 {
	return map[Category]float64{
		CategoryRegistry:     0.25,
		CategoryOnline:       0.30,
		CategoryOfficers:     0.20,
		CategoryJurisdiction: 0.15,
		CategoryExternal:     0.10,
	}
}

// DefaultMatcherConfig returns the calibrated matcher settings.
func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfig{
		ExactThreshold:      0.97,
		StrongThreshold:     0.80,
		WeakThreshold:       0.55,
		TokenBlend:          0.5,
		JurisdictionPenalty: 0.85,
		TopK:                10,
	}
}

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./harrier.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     300, // 5 minutes
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Scoring: ScoringConfig{
			Weights: DefaultWeights(),
		},
		Matcher: DefaultMatcherConfig(),
		Providers: ProviderConfig{
			TimeoutMs:       3000,
			QuotaLimit:      0,
			QuotaWindowSecs: 60,
			ResultTTLSecs:   300,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "harrier",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "harrier",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Providers.QuotaLimit = 600
	cfg.Tracing.Enabled = true
	return cfg
}
