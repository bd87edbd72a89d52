package router

import (
	"os"
	"strconv"
	"strings"
)

const DefaultAddr = "0.0.0.0:8431"

// Config holds the HTTP surface settings read at startup.
type Config struct {
	Addr           string
	AllowedOrigins []string
	// AuthPerMinute and AuthBurst bound requests per client to the public
	// /auth endpoints.
	AuthPerMinute int
	AuthBurst     int
	// TrustProxyHeaders keys the rate limiter on X-Forwarded-For / X-Real-IP.
	TrustProxyHeaders bool
}

// ConfigFromEnv reads HTTP_ADDR, CORS_ALLOWED_ORIGINS (comma separated),
// RATELIMIT_AUTH_PER_MIN, RATELIMIT_AUTH_BURST and TRUST_PROXY_HEADERS.
func ConfigFromEnv() Config {
	cfg := Config{
		Addr:          os.Getenv("HTTP_ADDR"),
		AuthPerMinute: 10,
		AuthBurst:     5,
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	for _, o := range strings.Split(os.Getenv("CORS_ALLOWED_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}
	if n := positiveInt("RATELIMIT_AUTH_PER_MIN"); n > 0 {
		cfg.AuthPerMinute = n
	}
	if n := positiveInt("RATELIMIT_AUTH_BURST"); n > 0 {
		cfg.AuthBurst = n
	}
	cfg.TrustProxyHeaders, _ = strconv.ParseBool(os.Getenv("TRUST_PROXY_HEADERS"))
	return cfg
}

func positiveInt(key string) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
