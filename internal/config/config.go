package config

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"os"
)

// AWS SDK environment variables (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY,
// AWS_REGION, AWS_ENDPOINT_URL) are read directly by the SDK's default
// credential chain and do not appear in this struct.

// Config is this proxy's entire runtime configuration, loaded from the
// environment.
type Config struct {
	ListenAddr            string
	TranslationSocketPath string

	TranslationCacheSize int
	UpstreamPoolIdleMax  int
	SlabPoolSize         int

	ResponseCacheMaxBody    int64
	ResponseCacheBackend    string // "rubber" or "s3"
	S3Bucket                string
	S3Prefix                string
	S3ForcePathStyle        bool

	GenerateSelfSignedTLS bool
	LogLevel              slog.Level

	ShutdownGrace time.Duration
}

func Load() Config {
	selfSigned := envOr("GENERATE_SELF_SIGNED_TLS", "false") == "true"
	defaultAddr := ":8080"
	if selfSigned {
		defaultAddr = ":8443"
	}

	translationCacheSize, _ := strconv.Atoi(envOr("TRANSLATION_CACHE_SIZE", "4096"))
	poolIdleMax, _ := strconv.Atoi(envOr("UPSTREAM_POOL_IDLE_MAX", "16"))
	slabPoolSize, _ := strconv.Atoi(envOr("SLAB_POOL_SIZE", "4096"))
	maxBody, _ := strconv.ParseInt(envOr("RESPONSE_CACHE_MAX_BODY", "262144"), 10, 64)

	return Config{
		ListenAddr:            envOr("LISTEN_ADDR", defaultAddr),
		TranslationSocketPath: envOr("TRANSLATION_SOCKET", "/run/beng-proxy/translation.socket"),

		TranslationCacheSize: translationCacheSize,
		UpstreamPoolIdleMax:  poolIdleMax,
		SlabPoolSize:         slabPoolSize,

		ResponseCacheMaxBody: maxBody,
		ResponseCacheBackend: envOr("RESPONSE_CACHE_BACKEND", "rubber"),
		S3Bucket:             os.Getenv("S3_BUCKET"),
		S3Prefix:             os.Getenv("S3_PREFIX"),
		S3ForcePathStyle:     envOr("S3_FORCE_PATH_STYLE", "true") == "true",

		GenerateSelfSignedTLS: selfSigned,
		LogLevel:              parseLogLevel(envOr("LOG_LEVEL", "info")),

		ShutdownGrace: 15 * time.Second,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
