package types

type Config struct {
	Environment     string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel        string `envconfig:"LOG_LEVEL" default:"info"`
	ServerPort      uint   `envconfig:"SERVER_PORT" default:"8081"`
	ReadTimeoutSec  uint   `envconfig:"READ_TIMEOUT_SEC" default:"10"`
	WriteTimeoutSec uint   `envconfig:"WRITE_TIMEOUT_SEC" default:"60"`

	// Read deadline for media uploads, which outlast READ_TIMEOUT_SEC
	UploadTimeoutSec uint `envconfig:"UPLOAD_TIMEOUT_SEC" default:"900"`

	// Referral backend
	BackendURL string `envconfig:"BACKEND_URL" default:"http://localhost:8080"`

	// Submission policy
	SubmitTimeoutSec   uint   `envconfig:"SUBMIT_TIMEOUT_SEC" default:"30"`
	SubmitMaxAttempts  uint   `envconfig:"SUBMIT_MAX_ATTEMPTS" default:"3"`
	SubmitRetryDelayMs uint   `envconfig:"SUBMIT_RETRY_DELAY_MS" default:"2000"`
	WireVariant        string `envconfig:"WIRE_VARIANT" default:"web"`

	// Reference data
	LocationFallback    bool   `envconfig:"LOCATION_FALLBACK" default:"true"`
	CityPolicy          string `envconfig:"CITY_POLICY" default:"last-resolved"`
	RedisURL            string `envconfig:"REDIS_URL"`
	LocationCacheTTLSec uint   `envconfig:"LOCATION_CACHE_TTL_SEC" default:"3600"`

	// Drafts are kept in memory when unset
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	DraftTTLHours uint   `envconfig:"DRAFT_TTL_HOURS" default:"72"`

	// Uploaded media is staged on local disk when unset
	UploadBucket string `envconfig:"UPLOAD_BUCKET"`
	UploadDir    string `envconfig:"UPLOAD_DIR"`

	// Optional token verification against the backend's key set
	JWKSURL string `envconfig:"JWKS_URL"`

	// CLI identity file, defaults to the user config dir
	SessionFile string `envconfig:"SESSION_FILE"`

	// Cookie encryption keys (base64 encoded)
	// openssl rand -base64 32
	// to generate values
	CookieHashKey    string `envconfig:"COOKIE_HASH_KEY"`  // 32 or 64 bytes
	CookieBlockKey   string `envconfig:"COOKIE_BLOCK_KEY"` // 16, 24, or 32 bytes
	SessionMaxAgeSec int    `envconfig:"SESSION_MAX_AGE_SEC" default:"43200"` // 12 hours
}
