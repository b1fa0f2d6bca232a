package steam

import (
	"os"
	"strings"
	"time"

	"github.com/storepulse/reconciler/internal/config"
)

const (
	defaultPartnerBaseURL  = "https://partner.steam-api.com/IPartnerFinancialsService/"
	defaultStoreBaseURL    = "https://store.steampowered.com/"
	defaultTimeoutSeconds  = 10
	defaultRateLimitPerSec = 4
	defaultRateLimitBurst  = 2
	defaultUserAgent       = "storepulse-reconciler/1.0"
)

type Config struct {
	PartnerBaseURL  string
	StoreBaseURL    string
	APIKey          string
	Timeout         time.Duration
	RateLimitPerSec int
	RateLimitBurst  int
	UserAgent       string
}

// ConfigFromEnv reads the STEAM_* variables. The API key is supplied
// separately by the credential package.
func ConfigFromEnv() Config {
	return Config{
		PartnerBaseURL:  getenv("STEAM_PARTNER_BASE_URL", defaultPartnerBaseURL),
		StoreBaseURL:    getenv("STEAM_STORE_BASE_URL", defaultStoreBaseURL),
		Timeout:         time.Duration(config.GetenvInt("STEAM_TIMEOUT_SECONDS", defaultTimeoutSeconds)) * time.Second,
		RateLimitPerSec: config.GetenvInt("STEAM_RATE_LIMIT_PER_SEC", defaultRateLimitPerSec),
		RateLimitBurst:  config.GetenvInt("STEAM_RATE_LIMIT_BURST", defaultRateLimitBurst),
		UserAgent:       getenv("STEAM_USER_AGENT", defaultUserAgent),
	}
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.PartnerBaseURL) == "" {
		c.PartnerBaseURL = defaultPartnerBaseURL
	}
	if strings.TrimSpace(c.StoreBaseURL) == "" {
		c.StoreBaseURL = defaultStoreBaseURL
	}
	if !strings.HasSuffix(c.PartnerBaseURL, "/") {
		c.PartnerBaseURL += "/"
	}
	if !strings.HasSuffix(c.StoreBaseURL, "/") {
		c.StoreBaseURL += "/"
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeoutSeconds * time.Second
	}
	if c.RateLimitPerSec <= 0 {
		c.RateLimitPerSec = defaultRateLimitPerSec
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = defaultRateLimitBurst
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	return c
}

func getenv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
