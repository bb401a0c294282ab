package main

import (
	"errors"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/jwt"
)

// Backend names accepted by STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMongo    = "mongo"

	// RATE_LIMIT_STORE additionally accepts "off".
	RateLimitOff = "off"
)

type appConfig struct {
	Env           string        `env:"APP_ENV" envDefault:"development"`
	ServiceName   string        `env:"SERVICE_NAME" envDefault:"notifyd"`
	StoreBackend  string        `env:"STORE_BACKEND" envDefault:"memory"`
	RedisPrefix   string        `env:"REDIS_KEY_PREFIX" envDefault:"notifykit"`
	JWTSecret     string        `env:"JWT_SECRET,required"`
	JWTIssuer     string        `env:"JWT_ISSUER"`
	IngressSecret string        `env:"INGRESS_JWT_SECRET"`
	SSEHeartbeat  time.Duration `env:"SSE_HEARTBEAT" envDefault:"25s"`
	SSEBuffer     int           `env:"SSE_BUFFER_SIZE" envDefault:"16"`
	MaxStreamKeys int           `env:"SSE_MAX_USERS" envDefault:"10000"`
	RateLimit     string        `env:"RATE_LIMIT_STORE" envDefault:"memory"`
	ProxyHeaders  []string      `env:"HTTP_TRUSTED_IP_HEADERS" envSeparator:","`
}

var errSharedIngressSecret = errors.New("notifyd: INGRESS_JWT_SECRET must differ from JWT_SECRET")

// ingressTokens returns the verifier for the service ingress route, or nil
// when the route is disabled.
func (c appConfig) ingressTokens() (*jwt.Service, error) {
	if c.IngressSecret == "" {
		return nil, nil
	}
	if c.IngressSecret == c.JWTSecret {
		return nil, errSharedIngressSecret
	}
	return jwt.New([]byte(c.IngressSecret), jwt.WithIssuer(c.JWTIssuer))
}
