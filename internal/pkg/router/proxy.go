package router

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/Arcana/internal/pkg/env"
)

// ProxyConfig decides where c.IP() takes the client address from. IP scoped
// rate limits key on that address.
type ProxyConfig struct {
	// Header is set by the reverse proxy, e.g. X-Real-IP. The proxy must
	// overwrite any value the client sent.
	Header         string
	TrustedProxies []string
}

func ProxyConfigFromEnv() ProxyConfig {
	return ProxyConfig{
		Header:         strings.TrimSpace(env.GetEnv("PROXY_HEADER", "")),
		TrustedProxies: env.GetEnvList("TRUSTED_PROXIES"),
	}
}

// Apply sets the proxy fields of cfg. The header is only read for requests
// from a trusted proxy; without trusted proxies it is ignored and c.IP() is
// the peer address.
func (p ProxyConfig) Apply(cfg *fiber.Config) {
	cfg.EnableIPValidation = true
	if p.Header == "" || len(p.TrustedProxies) == 0 {
		cfg.ProxyHeader = ""
		cfg.EnableTrustedProxyCheck = false
		cfg.TrustedProxies = nil
		return
	}
	cfg.ProxyHeader = p.Header
	cfg.EnableTrustedProxyCheck = true
	cfg.TrustedProxies = p.TrustedProxies
}

// Enabled reports whether a proxy header is honoured at all.
func (p ProxyConfig) Enabled() bool {
	return p.Header != "" && len(p.TrustedProxies) > 0
}
