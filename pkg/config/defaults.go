package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "confdesk"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	// Credential TTL bounds in minutes. Requested TTLs outside the range are
	// rejected; the expiry is always capped at the session's end time.
	MinTokenTTLMinutes     = 1
	MaxTokenTTLMinutes     = 180
	DefaultTokenTTLMinutes = 30

	DefaultAuditTopic = "attendance-audit"

	DefaultRateLimitRequests = 60
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultPaginationLimit = 100

	// HallLockTTL bounds how long an abandoned advisory lock can block a hall.
	HallLockTTL = 10 * time.Second
)
