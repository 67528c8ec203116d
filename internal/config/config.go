package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	DBDriver         string // postgres / sqlite
	DatabaseURL      string // あればPOSTGRES_*より優先
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     int
	PostgresSSLMode  string
	SQLitePath       string // DB_DRIVER=sqlite の時だけ使う

	RedisAddr     string // 空ならカートはメモリ保存
	RedisPassword string
	CartTTL       time.Duration

	KafkaBrokers     []string // 空ならイベントは送らない
	OrderEventsTopic string

	JWTSecret string // 空なら認証なし

	OrderVerifyTotal  bool          // trueならtotalをサーバー側で再計算して比較
	OrderStepTimeout  time.Duration // 永続化1回あたりの上限
	OrderEventTimeout time.Duration // Kafka送信1回あたりの上限

	LogLevel    string
	TraceStdout bool
	SeedCatalog bool

	GoEnv string // dev/prod
}

// Loadは環境変数
func Load() (Config, error) {
	pgPort, err := atoiDefault("POSTGRES_PORT", 5432)
	if err != nil {
		return Config{}, err
	}
	cartTTL, err := durationDefault("CART_TTL", 7*24*time.Hour)
	if err != nil {
		return Config{}, err
	}
	stepTimeout, err := durationDefault("ORDER_STEP_TIMEOUT", 5*time.Second)
	if err != nil {
		return Config{}, err
	}
	eventTimeout, err := durationDefault("ORDER_EVENT_TIMEOUT", 2*time.Second)
	if err != nil {
		return Config{}, err
	}
	verifyTotal, err := boolDefault("ORDER_VERIFY_TOTAL", false)
	if err != nil {
		return Config{}, err
	}
	traceStdout, err := boolDefault("TRACE_STDOUT", false)
	if err != nil {
		return Config{}, err
	}
	seed, err := boolDefault("SEED_CATALOG", true)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port: getenv("PORT", "8080"),

		DBDriver:         getenv("DB_DRIVER", "postgres"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresUser:     getenv("POSTGRES_USER", "postgres"),
		PostgresPassword: getenv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:       getenv("POSTGRES_DB", "storefront"),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresPort:     pgPort,
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),
		SQLitePath:       getenv("SQLITE_PATH", "storefront.db"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		CartTTL:       cartTTL,

		KafkaBrokers:     splitList(os.Getenv("KAFKA_BROKERS")),
		OrderEventsTopic: getenv("ORDER_EVENTS_TOPIC", "orders.events"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		OrderVerifyTotal:  verifyTotal,
		OrderStepTimeout:  stepTimeout,
		OrderEventTimeout: eventTimeout,

		LogLevel:    getenv("LOG_LEVEL", "info"),
		TraceStdout: traceStdout,
		SeedCatalog: seed,

		GoEnv: getenv("GO_ENV", "dev"),
	}

	//必須チェック
	switch cfg.DBDriver {
	case "postgres", "sqlite":
	default:
		return Config{}, fmt.Errorf("DB_DRIVER must be postgres or sqlite")
	}
	if cfg.OrderStepTimeout <= 0 {
		return Config{}, fmt.Errorf("ORDER_STEP_TIMEOUT must be > 0")
	}
	if cfg.OrderEventTimeout <= 0 {
		return Config{}, fmt.Errorf("ORDER_EVENT_TIMEOUT must be > 0")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.OrderEventsTopic == "" {
		return Config{}, fmt.Errorf("ORDER_EVENTS_TOPIC is required when KAFKA_BROKERS is set")
	}
	if cfg.GoEnv == "prod" && cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

// Addr はecho.Startに渡す形（":8080"）
func (c Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func atoiDefault(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func durationDefault(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be duration: %w", key, err)
	}
	return d, nil
}

func boolDefault(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be bool: %w", key, err)
	}
	return b, nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
