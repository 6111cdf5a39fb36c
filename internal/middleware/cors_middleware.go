package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	defaultCORSMethods = []string{
		http.MethodGet, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions,
	}
	defaultCORSHeaders = []string{"Authorization", "Content-Type"}
)

type CORSOptions struct {
	// AllowedOrigins holds exact origins, "*" for any origin, or a
	// "https://*.example.com" style pattern for subdomains.
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         time.Duration
}

type originMatcher struct {
	any      bool
	exact    map[string]struct{}
	suffixes []string
	prefixes []string
}

func newOriginMatcher(origins []string) originMatcher {
	m := originMatcher{exact: make(map[string]struct{}, len(origins))}
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		switch {
		case origin == "":
		case origin == "*":
			m.any = true
		case strings.Contains(origin, "://*."):
			scheme, host, _ := strings.Cut(origin, "://*")
			m.prefixes = append(m.prefixes, scheme+"://")
			m.suffixes = append(m.suffixes, host)
		default:
			m.exact[origin] = struct{}{}
		}
	}
	return m
}

func (m originMatcher) allows(origin string) bool {
	if _, ok := m.exact[origin]; ok {
		return true
	}
	for i, suffix := range m.suffixes {
		if strings.HasPrefix(origin, m.prefixes[i]) && strings.HasSuffix(origin, suffix) &&
			len(origin) > len(m.prefixes[i])+len(suffix) {
			return true
		}
	}
	return false
}

func CORS(opts CORSOptions) gin.HandlerFunc {
	matcher := newOriginMatcher(opts.AllowedOrigins)

	methods := opts.AllowedMethods
	if len(methods) == 0 {
		methods = defaultCORSMethods
	}
	headers := opts.AllowedHeaders
	if len(headers) == 0 {
		headers = defaultCORSHeaders
	}
	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}

	allowMethods := strings.Join(methods, ",")
	allowHeaders := strings.Join(headers, ",")
	maxAgeSeconds := strconv.Itoa(int(maxAge / time.Second))

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if matcher.any {
				c.Header("Access-Control-Allow-Origin", "*")
			} else if matcher.allows(origin) {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
		}

		c.Header("Access-Control-Allow-Methods", allowMethods)
		c.Header("Access-Control-Allow-Headers", allowHeaders)
		c.Header("Access-Control-Max-Age", maxAgeSeconds)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
