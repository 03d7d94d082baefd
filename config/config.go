package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config 应用配置
type Config struct {
	Port string

	// 上游抓取服务
	ScraperURL           string
	ScraperTimeout       time.Duration
	ScraperRatePerMinute int

	// 附件解析
	PublicBaseURL        string   // 通知渠道可访问的外部地址
	InternalHostPrefixes []string // 只在集群内部可达的地址前缀
	ArtifactFetchTimeout time.Duration
	CSVInlineLimit       int    // 字节，超过且渠道支持 URL 引用时不内联
	ArtifactBackend      string // dir | minio
	ArtifactDir          string

	// MinIO
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool

	// 历史序列存储
	SeriesBackend string // redis | mysql | memory
	SeriesLockTTL time.Duration

	// Redis配置
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// MySQL
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// 通知渠道
	NotifierURL     string
	NotifierTimeout time.Duration
	NotifierURLRefs bool // 渠道是否接受 CSV 的 URL 引用

	// 单次后台聚合的总超时
	PipelineTimeout time.Duration

	// 日志
	LogLevel      string
	LogFile       string
	LogMaxSize    int
	LogMaxBackups int
	LogMaxAge     int
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && intVal > 0 {
			return intVal
		}
	}
	return fallback
}

// getEnvIntAllowZero 与 getEnvInt 相同，但接受 0（例如 Redis DB 编号）
func getEnvIntAllowZero(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && intVal >= 0 {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration 支持 "10s" 这类写法，也接受纯数字（按秒计）
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

// getEnvList 逗号分隔，忽略空项
func getEnvList(key string, fallback []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func oneOf(value string, allowed []string, fallback string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, a := range allowed {
		if value == a {
			return value
		}
	}
	return fallback
}

// Load 从环境变量（以及 .env 文件）加载配置
func Load() *Config {
	// godotenv.Load 不会覆盖已有的环境变量
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on existing environment variables and defaults.")
	}
	return fromEnv()
}

func fromEnv() *Config {
	scraperURL := strings.TrimRight(getEnv("SCRAPER_URL", "http://127.0.0.1:8000"), "/")

	return &Config{
		Port: getEnv("PORT", "8080"),

		ScraperURL:           scraperURL,
		ScraperTimeout:       getEnvDuration("SCRAPER_TIMEOUT", 5*time.Minute),
		ScraperRatePerMinute: getEnvInt("SCRAPER_RATE_PER_MINUTE", 30),

		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		InternalHostPrefixes: getEnvList("INTERNAL_HOST_PREFIXES", []string{
			scraperURL,
			"http://127.0.0.1:8000",
			"http://localhost:8000",
		}),
		ArtifactFetchTimeout: getEnvDuration("ARTIFACT_FETCH_TIMEOUT", 10*time.Second),
		CSVInlineLimit:       getEnvInt("CSV_INLINE_LIMIT", 5<<20),
		ArtifactBackend:      oneOf(getEnv("ARTIFACT_BACKEND", "dir"), []string{"dir", "minio"}, "dir"),
		ArtifactDir:          getEnv("ARTIFACT_DIR", "artifacts"),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "trackpulse"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		SeriesBackend: oneOf(getEnv("SERIES_BACKEND", "redis"), []string{"redis", "mysql", "memory"}, "redis"),
		SeriesLockTTL: getEnvDuration("SERIES_LOCK_TTL", 10*time.Second),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvIntAllowZero("REDIS_DB", 0),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "trackpulse"),

		NotifierURL:     getEnv("NOTIFIER_URL", "http://127.0.0.1:5001/send-report"),
		NotifierTimeout: getEnvDuration("NOTIFIER_TIMEOUT", 30*time.Second),
		NotifierURLRefs: getEnvBool("NOTIFIER_URL_REFS", false),

		PipelineTimeout: getEnvDuration("PIPELINE_TIMEOUT", 10*time.Minute),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFile:       getEnv("LOG_FILE", ""),
		LogMaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
		LogMaxAge:     getEnvInt("LOG_MAX_AGE", 30),
	}
}
