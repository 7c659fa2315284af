package config

import (
	"errors"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	UploadModeDisk   = "disk"
	UploadModeCloud  = "cloud"
	UploadModeInline = "inline"

	MailDriverSMTP  = "smtp"
	MailDriverBrevo = "brevo"
)

type MailAccount struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string
	APIKey   string
}

// Configured reports whether enough settings exist to build a transport.
func (a MailAccount) Configured() bool {
	switch a.Driver {
	case MailDriverBrevo:
		return a.APIKey != "" && a.From != ""
	case MailDriverSMTP:
		return a.Host != "" && a.User != "" && a.Password != ""
	default:
		return false
	}
}

type Config struct {
	Env             string
	MongoURI        string
	MongoDB         string
	ServerAddr      string
	FrontendOrigins []string

	JWTSecret string
	JWTTTL    time.Duration

	SetupAdminEmail    string
	SetupAdminPassword string
	AdminEmail         string

	UploadMode       string
	UploadDir        string
	MaxUploadBytes   int64
	CloudinaryURL    string
	CloudinaryName   string
	CloudinaryKey    string
	CloudinarySecret string
	CloudinaryFolder string

	MailPrimary   MailAccount
	MailSecondary MailAccount
	MailRetries   int

	RedisURL        string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	CacheTTLSeconds int

	RateLimitContact   int
	RateLimitRequests  int
	RateLimitLogin     int
	RateLimitWindowSec int

	Timezone *time.Location
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) CloudConfigured() bool {
	return c.CloudinaryURL != "" || (c.CloudinaryName != "" && c.CloudinaryKey != "" && c.CloudinarySecret != "")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimRight(strings.TrimSpace(p), "/")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func mailAccount(prefix string) MailAccount {
	acc := MailAccount{
		Driver:   strings.ToLower(getEnv(prefix+"_DRIVER", MailDriverSMTP)),
		Host:     getEnv(prefix+"_HOST", "smtp.gmail.com"),
		Port:     getEnvInt(prefix+"_PORT", 587),
		User:     getEnv(prefix+"_USER", ""),
		Password: getEnv(prefix+"_PASSWORD", ""),
		From:     getEnv(prefix+"_FROM", ""),
		FromName: getEnv(prefix+"_FROM_NAME", "SmartHub"),
		APIKey:   getEnv(prefix+"_API_KEY", ""),
	}
	if acc.From == "" {
		acc.From = acc.User
	}
	return acc
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	loc, err := time.LoadLocation(getEnv("TZ", "UTC"))
	if err != nil {
		return nil, err
	}

	mongoURI := getEnv("MONGO_URI", "mongodb://localhost:27017/smarthub")
	mongoDB := getEnv("MONGO_DB", "")
	if mongoDB == "" {
		mongoDB = mongoDBFromURI(mongoURI)
	}
	if mongoDB == "" {
		mongoDB = "smarthub"
	}

	cfg := &Config{
		Env:                getEnv("APP_ENV", "development"),
		MongoURI:           mongoURI,
		MongoDB:            mongoDB,
		ServerAddr:         getEnv("SERVER_ADDR", ":5000"),
		FrontendOrigins:    getEnvList("FRONTEND_ORIGIN", "http://localhost:5173"),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		JWTTTL:             time.Duration(getEnvInt("JWT_TTL_HOURS", 168)) * time.Hour,
		SetupAdminEmail:    strings.ToLower(getEnv("SETUP_ADMIN_EMAIL", "admin@example.com")),
		SetupAdminPassword: getEnv("SETUP_ADMIN_PASSWORD", ""),
		AdminEmail:         getEnv("ADMIN_EMAIL", ""),
		UploadDir:          getEnv("UPLOAD_DIR", "uploads"),
		MaxUploadBytes:     int64(getEnvInt("MAX_UPLOAD_MB", 10)) << 20,
		CloudinaryURL:      getEnv("CLOUDINARY_URL", ""),
		CloudinaryName:     getEnv("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryKey:      getEnv("CLOUDINARY_API_KEY", ""),
		CloudinarySecret:   getEnv("CLOUDINARY_API_SECRET", ""),
		CloudinaryFolder:   getEnv("CLOUDINARY_FOLDER", "portfolio"),
		MailPrimary:        mailAccount("MAIL_PRIMARY"),
		MailSecondary:      mailAccount("MAIL_SECONDARY"),
		MailRetries:        getEnvInt("MAIL_RETRIES", 2),
		RedisURL:           getEnv("REDIS_URL", ""),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		CacheTTLSeconds:    getEnvInt("CACHE_TTL_SECONDS", 60),
		RateLimitContact:   getEnvInt("RATE_LIMIT_CONTACT", 5),
		RateLimitRequests:  getEnvInt("RATE_LIMIT_REQUESTS", 5),
		RateLimitLogin:     getEnvInt("RATE_LIMIT_LOGIN", 10),
		RateLimitWindowSec: getEnvInt("RATE_LIMIT_WINDOW_SEC", 60),
		Timezone:           loc,
	}
	cfg.UploadMode = resolveUploadMode(getEnv("UPLOAD_MODE", ""), cfg)

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.UploadMode == UploadModeCloud && !cfg.CloudConfigured() {
		return nil, errors.New("UPLOAD_MODE=cloud requires cloudinary credentials")
	}
	if cfg.MailRetries < 1 {
		cfg.MailRetries = 1
	}

	return cfg, nil
}

// resolveUploadMode honours an explicit mode, otherwise production with cloud
// credentials uploads to the cloud and everything else writes to disk.
func resolveUploadMode(explicit string, cfg *Config) string {
	switch mode := strings.ToLower(strings.TrimSpace(explicit)); mode {
	case UploadModeDisk, UploadModeCloud, UploadModeInline:
		return mode
	}
	if cfg.IsProduction() {
		if cfg.CloudConfigured() {
			return UploadModeCloud
		}
		return UploadModeInline
	}
	return UploadModeDisk
}

func mongoDBFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	db := strings.Trim(u.Path, "/")
	if db == "" {
		return ""
	}
	// mongodb URIs sometimes include extra path segments; we only support the first one as db name.
	if idx := strings.Index(db, "/"); idx >= 0 {
		db = db[:idx]
	}
	return db
}
