package config

import (
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/cockroachdb/errors"
	"github.com/riskibarqy/volley-ticker/internal/platform/logging"
	"github.com/riskibarqy/volley-ticker/internal/platform/resilience"
)

const (
	DefaultTickerHost       = "wss://backend.sams-ticker.de"
	DefaultTickerGetBaseURL = "https://backend.sams-ticker.de/live/tickers/"
)

// Config stores runtime configuration for the service.
type Config struct {
	AppEnv             string
	ServiceName        string
	ServiceVersion     string
	HTTPAddr           string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	CORSAllowedOrigins []string
	LogLevel           logging.Level
	SwaggerEnabled     bool

	PprofEnabled bool
	PprofAddr    string

	UptraceEnabled bool
	UptraceDSN     string

	PyroscopeEnabled           bool
	PyroscopeServerAddress     string
	PyroscopeAppName           string
	PyroscopeAuthToken         string
	PyroscopeBasicAuthUser     string
	PyroscopeBasicAuthPassword string
	PyroscopeUploadRate        time.Duration

	Ticker    TickerConfig
	TeamsFile string
}

// TickerConfig drives the SAMS ticker connections.
type TickerConfig struct {
	Host              string
	GetBaseURL        string
	FetchTimeout      time.Duration
	FetchMaxRetries   int
	TickInterval      time.Duration
	GameFetchInterval time.Duration
	IdleFetchInterval time.Duration
	NearGameTimeout   time.Duration
	InGameTimeout     time.Duration
	ReconnectMinGap   time.Duration
	Locale            string
	Location          *time.Location
	Circuit           resilience.CircuitBreakerConfig
	CatalogCacheTTL   time.Duration
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:             appEnv,
		ServiceName:        getEnv("APP_SERVICE_NAME", "volley-ticker"),
		ServiceVersion:     getEnv("APP_SERVICE_VERSION", "dev"),
		HTTPAddr:           getEnv("APP_HTTP_ADDR", ":8080"),
		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		TeamsFile:          strings.TrimSpace(getEnv("TRACKER_TEAMS_FILE", "")),
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		return Config{}, errors.New("CORS_ALLOWED_ORIGINS cannot be empty")
	}

	level, ok := logging.ParseLevel(getEnv("APP_LOG_LEVEL", "info"))
	if !ok {
		return Config{}, errors.Newf("invalid APP_LOG_LEVEL %q", os.Getenv("APP_LOG_LEVEL"))
	}
	cfg.LogLevel = level

	if cfg.ReadTimeout, err = getEnvAsPositiveDuration("APP_READ_TIMEOUT", "10s"); err != nil {
		return Config{}, err
	}
	if cfg.WriteTimeout, err = getEnvAsPositiveDuration("APP_WRITE_TIMEOUT", "15s"); err != nil {
		return Config{}, err
	}
	if cfg.SwaggerEnabled, err = getEnvAsBool("APP_SWAGGER_ENABLED", appEnv != EnvProd); err != nil {
		return Config{}, err
	}

	if err := loadObservability(&cfg); err != nil {
		return Config{}, err
	}

	ticker, err := loadTicker()
	if err != nil {
		return Config{}, err
	}
	cfg.Ticker = ticker

	return cfg, nil
}

func loadObservability(cfg *Config) error {
	var err error
	if cfg.PprofEnabled, err = getEnvAsBool("PPROF_ENABLED", false); err != nil {
		return err
	}
	cfg.PprofAddr = strings.TrimSpace(getEnv("PPROF_ADDR", ":6060"))
	if cfg.PprofEnabled && cfg.PprofAddr == "" {
		return errors.New("PPROF_ADDR is required when PPROF_ENABLED=true")
	}

	if cfg.UptraceEnabled, err = getEnvAsBool("UPTRACE_ENABLED", false); err != nil {
		return err
	}
	cfg.UptraceDSN = strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if cfg.UptraceDSN == "" {
		cfg.UptraceDSN = parseUptraceDSNFromOTLPHeaders(getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""))
	}
	if cfg.UptraceEnabled && cfg.UptraceDSN == "" {
		return errors.New("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}

	if cfg.PyroscopeEnabled, err = getEnvAsBool("PYROSCOPE_ENABLED", false); err != nil {
		return err
	}
	cfg.PyroscopeServerAddress = strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", ""))
	if cfg.PyroscopeEnabled && cfg.PyroscopeServerAddress == "" {
		return errors.New("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}
	if cfg.PyroscopeUploadRate, err = getEnvAsPositiveDuration("PYROSCOPE_UPLOAD_RATE", "15s"); err != nil {
		return err
	}
	cfg.PyroscopeAppName = strings.TrimSpace(getEnv("PYROSCOPE_APP_NAME", cfg.ServiceName))
	cfg.PyroscopeAuthToken = strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", ""))
	cfg.PyroscopeBasicAuthUser = strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_USER", ""))
	cfg.PyroscopeBasicAuthPassword = strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_PASSWORD", ""))
	return nil
}

func loadTicker() (TickerConfig, error) {
	var (
		cfg TickerConfig
		err error
	)

	cfg.Host = strings.TrimRight(strings.TrimSpace(getEnv("TICKER_HOST", DefaultTickerHost)), "/")
	if !strings.HasPrefix(cfg.Host, "ws://") && !strings.HasPrefix(cfg.Host, "wss://") {
		return TickerConfig{}, errors.Newf("TICKER_HOST must use ws:// or wss://, got %q", cfg.Host)
	}
	cfg.GetBaseURL = strings.TrimSpace(getEnv("TICKER_GET_BASE_URL", DefaultTickerGetBaseURL))
	if !strings.HasPrefix(cfg.GetBaseURL, "http://") && !strings.HasPrefix(cfg.GetBaseURL, "https://") {
		return TickerConfig{}, errors.Newf("TICKER_GET_BASE_URL must use http:// or https://, got %q", cfg.GetBaseURL)
	}

	durations := []struct {
		key      string
		fallback string
		target   *time.Duration
	}{
		{key: "TICKER_FETCH_TIMEOUT", fallback: "10s", target: &cfg.FetchTimeout},
		{key: "TICKER_TICK_INTERVAL", fallback: "30s", target: &cfg.TickInterval},
		{key: "TICKER_GAME_FETCH_INTERVAL", fallback: "5m", target: &cfg.GameFetchInterval},
		{key: "TICKER_IDLE_FETCH_INTERVAL", fallback: "60m", target: &cfg.IdleFetchInterval},
		{key: "TICKER_NEAR_GAME_TIMEOUT", fallback: "12m", target: &cfg.NearGameTimeout},
		{key: "TICKER_IN_GAME_TIMEOUT", fallback: "5m", target: &cfg.InGameTimeout},
		{key: "TICKER_CATALOG_CACHE_TTL", fallback: "10m", target: &cfg.CatalogCacheTTL},
	}
	for _, item := range durations {
		if *item.target, err = getEnvAsPositiveDuration(item.key, item.fallback); err != nil {
			return TickerConfig{}, err
		}
	}
	if cfg.InGameTimeout > cfg.NearGameTimeout {
		return TickerConfig{}, errors.New("TICKER_IN_GAME_TIMEOUT must not exceed TICKER_NEAR_GAME_TIMEOUT")
	}

	cfg.ReconnectMinGap, err = time.ParseDuration(getEnv("TICKER_RECONNECT_MIN_GAP", "20s"))
	if err != nil {
		return TickerConfig{}, errors.Wrap(err, "parse TICKER_RECONNECT_MIN_GAP")
	}
	if cfg.ReconnectMinGap < 0 {
		return TickerConfig{}, errors.New("TICKER_RECONNECT_MIN_GAP must be >= 0")
	}

	if cfg.FetchMaxRetries, err = getEnvAsInt("TICKER_FETCH_MAX_RETRIES", 1); err != nil {
		return TickerConfig{}, errors.Wrap(err, "parse TICKER_FETCH_MAX_RETRIES")
	}
	if cfg.FetchMaxRetries < 0 {
		return TickerConfig{}, errors.New("TICKER_FETCH_MAX_RETRIES must be >= 0")
	}

	cfg.Locale = strings.TrimSpace(getEnv("TICKER_LOCALE", "de"))
	cfg.Location, err = time.LoadLocation(getEnv("TICKER_TIMEZONE", "Europe/Berlin"))
	if err != nil {
		return TickerConfig{}, errors.Wrap(err, "parse TICKER_TIMEZONE")
	}

	cfg.Circuit, err = loadCircuit("TICKER_CIRCUIT")
	if err != nil {
		return TickerConfig{}, err
	}
	return cfg, nil
}

func loadCircuit(prefix string) (resilience.CircuitBreakerConfig, error) {
	defaults := resilience.DefaultCircuitBreakerConfig()
	var (
		cfg resilience.CircuitBreakerConfig
		err error
	)
	if cfg.Enabled, err = getEnvAsBool(prefix+"_ENABLED", defaults.Enabled); err != nil {
		return cfg, err
	}
	if cfg.FailureThreshold, err = getEnvAsInt(prefix+"_FAILURE_COUNT", defaults.FailureThreshold); err != nil {
		return cfg, errors.Wrapf(err, "parse %s_FAILURE_COUNT", prefix)
	}
	if cfg.FailureThreshold < 1 {
		return cfg, errors.Newf("%s_FAILURE_COUNT must be >= 1", prefix)
	}
	if cfg.OpenTimeout, err = getEnvAsPositiveDuration(prefix+"_OPEN_TIMEOUT", defaults.OpenTimeout.String()); err != nil {
		return cfg, err
	}
	if cfg.HalfOpenMaxReq, err = getEnvAsInt(prefix+"_HALF_OPEN_MAX_REQ", defaults.HalfOpenMaxReq); err != nil {
		return cfg, errors.Wrapf(err, "parse %s_HALF_OPEN_MAX_REQ", prefix)
	}
	if cfg.HalfOpenMaxReq < 1 {
		return cfg, errors.Newf("%s_HALF_OPEN_MAX_REQ must be >= 1", prefix)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}
	return strconv.Atoi(value)
}

func getEnvAsBool(key string, fallback bool) (bool, error) {
	out, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(fallback)))
	if err != nil {
		return false, errors.Wrapf(err, "parse %s", key)
	}
	return out, nil
}

func getEnvAsPositiveDuration(key, fallback string) (time.Duration, error) {
	out, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		return 0, errors.Wrapf(err, "parse %s", key)
	}
	if out <= 0 {
		return 0, errors.Newf("%s must be > 0", key)
	}
	return out, nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if item := strings.TrimSpace(part); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseUptraceDSNFromOTLPHeaders(raw string) string {
	for _, item := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(item), "=", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(parts[0]), "uptrace-dsn") {
			return strings.Trim(strings.TrimSpace(parts[1]), "\"'")
		}
	}
	return ""
}

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", errors.Newf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}
