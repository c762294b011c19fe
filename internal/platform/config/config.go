package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"kycgate/pkg/platform/middleware/metadata"
	strs "kycgate/pkg/platform/strings"
)

// DefaultSecretKey is the development signing secret. Running with it turns on
// error details in responses and is refused in production.
const DefaultSecretKey = "your-secret-key-change-in-production"

// DefaultAdminTokenTTL is the lifetime of tokens issued by cmd/admintoken.
const DefaultAdminTokenTTL = 12 * time.Hour

// Config is the full process configuration.
type Config struct {
	Server     Server
	Database   Database
	Redis      Redis
	Storage    Storage
	Upload     Upload
	Pagination Pagination
	RateLimit  RateLimit
}

// Server captures HTTP server level configuration. TrustedProxies lists the
// CIDRs or addresses allowed to set X-Forwarded-For. ReadTimeout bounds
// receiving a whole request body, so it must fit slow multipart uploads.
type Server struct {
	Addr           string
	ReadTimeout    time.Duration
	Environment    string
	LogLevel       string
	SecretKey      string
	JWTIssuer      string
	CORSOrigins    []string
	TrustedProxies []string
}

type Database struct {
	URL      string
	MaxConns int32
}

type Redis struct {
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Storage configures the S3-compatible object store and the two KYC buckets.
type Storage struct {
	Endpoint        string
	Region          string
	AccessKey       string
	SecretKey       string
	PublicURL       string
	DocumentsBucket string
	SelfiesBucket   string
	SignedURLs      bool
	SignedURLTTL    time.Duration
}

// Upload bounds what applicants may send and how images are normalized.
type Upload struct {
	MaxFileSize       int64
	AllowedExtensions []string
	AllowedMIMETypes  []string
	MaxWidth          int
	Quality           int
	Timeout           time.Duration
}

type Pagination struct {
	DefaultPageSize int
	MaxPageSize     int
}

// RateLimit applies to verification submissions, per client IP.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

// FromEnv builds a Config from environment variables, loading a .env file
// first when one exists.
func FromEnv() Config {
	_ = godotenv.Load()

	return Config{
		Server: Server{
			Addr:           envString("KYC_ADDR", ":8000"),
			ReadTimeout:    envDuration("READ_TIMEOUT", 2*time.Minute),
			Environment:    envString("ENVIRONMENT", "development"),
			LogLevel:       envString("LOG_LEVEL", "info"),
			SecretKey:      envString("SECRET_KEY", DefaultSecretKey),
			JWTIssuer:      envString("JWT_ISSUER", "kycgate"),
			CORSOrigins:    envList("CORS_ORIGINS", []string{"http://localhost:3000", "http://127.0.0.1:3000"}, false),
			TrustedProxies: envList("TRUSTED_PROXIES", nil, false),
		},
		Database: Database{
			URL:      os.Getenv("DATABASE_URL"),
			MaxConns: int32(envInt("DB_MAX_CONNS", 10)),
		},
		Redis: Redis{
			URL:          os.Getenv("REDIS_URL"),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Storage: Storage{
			Endpoint:        os.Getenv("STORAGE_ENDPOINT"),
			Region:          envString("STORAGE_REGION", "us-east-1"),
			AccessKey:       os.Getenv("STORAGE_ACCESS_KEY"),
			SecretKey:       os.Getenv("STORAGE_SECRET_KEY"),
			PublicURL:       os.Getenv("STORAGE_PUBLIC_URL"),
			DocumentsBucket: envString("KYC_DOCUMENTS_BUCKET", "kyc-documents"),
			SelfiesBucket:   envString("KYC_SELFIES_BUCKET", "kyc-selfies"),
			SignedURLs:      envBool("STORAGE_SIGNED_URLS", false),
			SignedURLTTL:    envDuration("STORAGE_SIGNED_URL_TTL", time.Hour),
		},
		Upload: Upload{
			MaxFileSize:       int64(envInt("MAX_FILE_SIZE", 20*1024*1024)),
			AllowedExtensions: envList("ALLOWED_EXTENSIONS", []string{"jpg", "jpeg", "png"}, true),
			AllowedMIMETypes:  envList("ALLOWED_MIME_TYPES", []string{"image/jpeg", "image/png"}, true),
			MaxWidth:          envInt("IMAGE_MAX_WIDTH", 1920),
			Quality:           envInt("IMAGE_QUALITY", 85),
			Timeout:           envDuration("UPLOAD_TIMEOUT", 30*time.Second),
		},
		Pagination: Pagination{
			DefaultPageSize: envInt("DEFAULT_PAGE_SIZE", 10),
			MaxPageSize:     envInt("MAX_PAGE_SIZE", 100),
		},
		RateLimit: RateLimit{
			Requests: envInt("RATE_LIMIT_REQUESTS", 10),
			Window:   envDuration("RATE_LIMIT_WINDOW", 60*time.Second),
		},
	}
}

// IsProduction reports whether the service runs in production mode.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}

// DebugErrors reports whether internal error details may be returned to
// clients. True only with the insecure default secret.
func (c Config) DebugErrors() bool {
	return c.Server.SecretKey == DefaultSecretKey
}

// Validate lists every configuration problem instead of stopping at the first.
func (c Config) Validate() []string {
	var problems []string

	if c.Database.URL == "" {
		problems = append(problems, "DATABASE_URL is required")
	}
	if c.Storage.Endpoint == "" {
		problems = append(problems, "STORAGE_ENDPOINT is required")
	} else if c.IsProduction() && !strings.HasPrefix(c.Storage.Endpoint, "https://") {
		problems = append(problems, "STORAGE_ENDPOINT must start with https://")
	}
	if c.Storage.Endpoint != "" && (c.Storage.AccessKey == "" || c.Storage.SecretKey == "") {
		problems = append(problems, "STORAGE_ACCESS_KEY and STORAGE_SECRET_KEY are required")
	}
	if c.IsProduction() && c.Server.SecretKey == DefaultSecretKey {
		problems = append(problems, "SECRET_KEY must be changed in production")
	}
	if c.Upload.MaxFileSize <= 0 {
		problems = append(problems, "MAX_FILE_SIZE must be positive")
	}
	if c.Upload.Quality < 1 || c.Upload.Quality > 100 {
		problems = append(problems, "IMAGE_QUALITY must be between 1 and 100")
	}
	if c.Upload.MaxWidth <= 0 {
		problems = append(problems, "IMAGE_MAX_WIDTH must be positive")
	}
	if c.Pagination.DefaultPageSize < 1 || c.Pagination.DefaultPageSize > c.Pagination.MaxPageSize {
		problems = append(problems, fmt.Sprintf("DEFAULT_PAGE_SIZE must be between 1 and MAX_PAGE_SIZE (%d)", c.Pagination.MaxPageSize))
	}
	if _, err := metadata.NewResolver(c.Server.TrustedProxies); err != nil {
		problems = append(problems, "TRUSTED_PROXIES: "+err.Error())
	}
	if c.Server.ReadTimeout < 0 {
		problems = append(problems, "READ_TIMEOUT must not be negative")
	}
	if c.RateLimit.Requests < 0 {
		problems = append(problems, "RATE_LIMIT_REQUESTS must not be negative")
	}
	return problems
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// envDuration accepts Go durations ("90s", "1h") and bare integers, which are
// read as seconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// envList reads a comma separated list. Folded lists are lowercased, for
// settings compared case-insensitively such as extensions and MIME types.
func envList(key string, fallback []string, fold bool) []string {
	out := strs.SplitList(os.Getenv(key), fold)
	if len(out) == 0 {
		return fallback
	}
	return out
}
