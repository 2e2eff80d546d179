package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	RoomScopePair        = "pair"
	RoomScopePairProduct = "pair_product"

	AuthProviderFirebase = "firebase"
	AuthProviderJWT      = "jwt"

	DirectoryStore     = "store"
	DirectoryFirestore = "firestore"
)

type Config struct {
	ServerPort     string
	Environment    string
	AllowedOrigins []string

	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	RedisURL string

	// DirectoryBackend is where user and product records are read from.
	DirectoryBackend string
	// SeedFile loads users and products into the in-memory directory.
	SeedFile string

	AuthProvider            string
	JWTSecret               string
	JWTExpiry               int64
	FirebaseProject         string
	FirebaseCredentialsJSON string
	FirebaseCredentialsFile string
	FirebaseCheckRevoked    bool

	RoomScope          string
	RoomCreateAttempts int

	PushEnabled      bool
	NotifyWorkers    int
	NotifyQueueSize  int
	MediaPlaceholder string

	SMSSenderID     string
	ArkeselAPIKey   string
	ArkeselBaseURL  string
	SMTPHost        string
	SMTPPort        int
	SMTPUsername    string
	SMTPPassword    string
	DefaultFromMail string

	SendPerMinute       int
	CreateRoomPerMinute int

	ShutdownTimeout time.Duration
}

func Load() (*Config, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{"*"}),

		DatabaseURL:       getEnv("DATABASE_URL", ""),
		DBMaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),

		RedisURL: getEnv("REDIS_URL", ""),

		DirectoryBackend: getEnv("DIRECTORY_BACKEND", DirectoryStore),
		SeedFile:         getEnv("DEV_SEED_FILE", ""),

		AuthProvider:            getEnv("AUTH_PROVIDER", AuthProviderFirebase),
		JWTSecret:               getEnv("JWT_SECRET", "your-secret-key"),
		JWTExpiry:               getEnvAsInt64("JWT_EXPIRY", 24*60*60),
		FirebaseProject:         getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseCredentialsJSON: getEnv("FIREBASE_CREDENTIALS_JSON", ""),
		FirebaseCredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
		FirebaseCheckRevoked:    getEnvAsBool("FIREBASE_CHECK_REVOKED", false),

		RoomScope:          getEnv("ROOM_SCOPE", RoomScopePairProduct),
		RoomCreateAttempts: getEnvAsInt("ROOM_CREATE_ATTEMPTS", 2),

		PushEnabled:      getEnvAsBool("PUSH_ENABLED", true),
		NotifyWorkers:    getEnvAsInt("NOTIFY_WORKERS", 4),
		NotifyQueueSize:  getEnvAsInt("NOTIFY_QUEUE_SIZE", 1024),
		MediaPlaceholder: getEnv("MEDIA_PLACEHOLDER", "Sent an attachment"),

		SMSSenderID:     getEnv("SMS_SENDER_ID", ""),
		ArkeselAPIKey:   getEnv("ARKESEL_SMS_API_KEY", ""),
		ArkeselBaseURL:  getEnv("ARKESEL_BASE_URL", "https://sms.arkesel.com"),
		SMTPHost:        getEnv("SMTP_HOST", ""),
		SMTPPort:        getEnvAsInt("SMTP_PORT", 587),
		SMTPUsername:    getEnv("SMTP_USERNAME", ""),
		SMTPPassword:    getEnv("SMTP_PASSWORD", ""),
		DefaultFromMail: getEnv("DEFAULT_FROM_EMAIL", ""),

		SendPerMinute:       getEnvAsInt("RATE_SEND_PER_MIN", 60),
		CreateRoomPerMinute: getEnvAsInt("RATE_CREATE_ROOM_PER_MIN", 20),

		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.RoomScope {
	case RoomScopePair, RoomScopePairProduct:
	default:
		return fmt.Errorf("ROOM_SCOPE must be %q or %q, got %q", RoomScopePair, RoomScopePairProduct, c.RoomScope)
	}
	switch c.AuthProvider {
	case AuthProviderFirebase, AuthProviderJWT:
	default:
		return fmt.Errorf("AUTH_PROVIDER must be %q or %q, got %q", AuthProviderFirebase, AuthProviderJWT, c.AuthProvider)
	}
	switch c.DirectoryBackend {
	case DirectoryStore, DirectoryFirestore:
	default:
		return fmt.Errorf("DIRECTORY_BACKEND must be %q or %q, got %q", DirectoryStore, DirectoryFirestore, c.DirectoryBackend)
	}
	if c.RoomCreateAttempts < 1 {
		return fmt.Errorf("ROOM_CREATE_ATTEMPTS must be at least 1")
	}
	if c.NotifyWorkers < 1 {
		return fmt.Errorf("NOTIFY_WORKERS must be at least 1")
	}
	if c.MemoryDirectory() && c.SeedFile == "" {
		return fmt.Errorf("no user directory configured: set DATABASE_URL, DIRECTORY_BACKEND=%s or DEV_SEED_FILE", DirectoryFirestore)
	}
	return nil
}

// MemoryDirectory reports whether users and products live in the in-memory store,
// which starts empty.
func (c *Config) MemoryDirectory() bool {
	return c.DatabaseURL == "" && c.DirectoryBackend == DirectoryStore
}

func (c *Config) NeedsFirebase() bool {
	return c.AuthProvider == AuthProviderFirebase || c.PushEnabled || c.DirectoryBackend == DirectoryFirestore
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// SMSEnabled reports whether alert SMS can be sent.
func (c *Config) SMSEnabled() bool {
	return c.ArkeselAPIKey != "" && c.SMSSenderID != ""
}

func (c *Config) EmailEnabled() bool {
	return c.SMTPHost != "" && c.DefaultFromMail != ""
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	return int(getEnvAsInt64(key, int64(defaultValue)))
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
