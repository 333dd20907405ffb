package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
	"vitalwatch/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowAllOrigins  bool
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// DefaultCORSConfig returns default CORS configuration
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowAllOrigins: false,
		AllowOrigins: []string{
			"http://localhost:3000",
			"http://localhost:8080",
			"https://vitalwatch.health",
			"https://app.vitalwatch.health",
		},
		AllowMethods: []string{
			"GET",
			"POST",
			"PUT",
			"PATCH",
			"DELETE",
			"HEAD",
			"OPTIONS",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Length",
			"Content-Type",
			"Authorization",
			"Accept",
			"Cache-Control",
			"X-Requested-With",
			"X-CSRF-Token",
			"X-Forwarded-For",
			"X-Real-IP",
		},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
}

// CORS returns a CORS middleware with the given configuration
func CORS(config CORSConfig) gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		requestMethod := c.Request.Header.Get("Access-Control-Request-Method")

		if c.Request.Method == "OPTIONS" {
			handlePreflightRequest(c, config, origin, requestMethod)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		handleActualRequest(c, config, origin)

		c.Next()
	})
}

func handlePreflightRequest(c *gin.Context, config CORSConfig, origin, requestMethod string) {
	if !isOriginAllowed(config, origin) {
		logrus.Warnf("CORS: Origin not allowed: %s", origin)
		return
	}

	setAllowOrigin(c, config, origin)

	if config.AllowCredentials {
		c.Header("Access-Control-Allow-Credentials", "true")
	}

	if requestMethod != "" && isMethodAllowed(config, requestMethod) {
		c.Header("Access-Control-Allow-Methods", strings.Join(config.AllowMethods, ", "))
	}

	if len(config.AllowHeaders) > 0 {
		c.Header("Access-Control-Allow-Headers", strings.Join(config.AllowHeaders, ", "))
	}

	if config.MaxAge > 0 {
		c.Header("Access-Control-Max-Age", strconv.Itoa(int(config.MaxAge.Seconds())))
	}
}

func handleActualRequest(c *gin.Context, config CORSConfig, origin string) {
	if !isOriginAllowed(config, origin) {
		return
	}

	setAllowOrigin(c, config, origin)

	if config.AllowCredentials {
		c.Header("Access-Control-Allow-Credentials", "true")
	}

	if len(config.ExposeHeaders) > 0 {
		c.Header("Access-Control-Expose-Headers", strings.Join(config.ExposeHeaders, ", "))
	}

	c.Header("Vary", "Origin")
}

func setAllowOrigin(c *gin.Context, config CORSConfig, origin string) {
	switch {
	case config.AllowCredentials:
		c.Header("Access-Control-Allow-Origin", origin)
	case config.AllowAllOrigins:
		c.Header("Access-Control-Allow-Origin", "*")
	case origin != "":
		c.Header("Access-Control-Allow-Origin", origin)
	}
}

func isOriginAllowed(config CORSConfig, origin string) bool {
	if config.AllowAllOrigins {
		return true
	}

	if origin == "" {
		return false
	}

	for _, allowedOrigin := range config.AllowOrigins {
		if allowedOrigin == "*" || allowedOrigin == origin {
			return true
		}
		// Wildcard subdomains (*.example.com)
		if strings.HasPrefix(allowedOrigin, "*.") {
			domain := allowedOrigin[2:]
			if strings.HasSuffix(origin, "."+domain) || origin == domain {
				return true
			}
		}
	}

	return false
}

func isMethodAllowed(config CORSConfig, method string) bool {
	return utils.StringInSlice(method, config.AllowMethods)
}

// DevelopmentCORS returns permissive CORS for development
func DevelopmentCORS() gin.HandlerFunc {
	return CORS(CORSConfig{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"*"},
		ExposeHeaders:    []string{"*"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// CORSMiddleware selects the CORS configuration for the environment.
func CORSMiddleware(environment string) gin.HandlerFunc {
	if environment == "development" {
		return DevelopmentCORS()
	}
	return CORS(DefaultCORSConfig())
}
