package rex

import (
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"

	"github.com/magnetde/starlark-rex/regex"
)

// Environment variables read by ConfigFromEnv.
const (
	cacheSizeKey     = "REX_CACHE_SIZE"
	maxBufferSizeKey = "REX_MAX_BUFFER_SIZE"
	matchTimeoutKey  = "REX_MATCH_TIMEOUT"
	gnuSyntaxKey     = "REX_GNU_SYNTAX"
	localeKey        = "REX_LOCALE"
)

// Default cache size; 32 should be more than enough, because Starlark scripts stay relatively small.
const defaultCacheSize = 32

// Config configures a module. It is fixed when the module is created.
type Config struct {
	// Options are the compile options used when a call does not pass its own.
	Options regex.Options

	// CacheSize is the number of compiled string patterns kept per module; 0 disables the cache.
	CacheSize int

	// MaxBufferSize limits the size of substitution results in bytes; 0 means unlimited.
	MaxBufferSize int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Options: regex.Options{
			Syntax: regex.DefaultGNUSyntax,
		},
		CacheSize: defaultCacheSize,
	}
}

// ConfigFromEnv returns the default configuration, overridden by environment variables.
// Invalid values are logged and ignored.
func ConfigFromEnv() Config {
	c := DefaultConfig()

	if n, ok := envInt(cacheSizeKey); ok {
		c.CacheSize = n
	}
	if n, ok := envInt(maxBufferSizeKey); ok {
		c.MaxBufferSize = n
	}

	if v, ok := os.LookupEnv(matchTimeoutKey); ok {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			logrus.Warnf("invalid value %q given to %s environment variable", v, matchTimeoutKey)
		} else {
			c.Options.MatchTimeout = d
		}
	}

	if v, ok := os.LookupEnv(gnuSyntaxKey); ok {
		if !isSyntax(v) {
			logrus.Warnf("invalid value %q given to %s environment variable", v, gnuSyntaxKey)
		} else {
			c.Options.Syntax = strings.ToUpper(v)
		}
	}

	if v, ok := os.LookupEnv(localeKey); ok {
		c.Options.Locale = v
	}

	return c
}

func envInt(key string) (int, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}

	n, err := cast.ToIntE(strings.TrimSpace(v))
	if err != nil || n < 0 {
		logrus.Warnf("invalid value %q given to %s environment variable", v, key)
		return 0, false
	}

	return n, true
}

func isSyntax(name string) bool {
	for _, s := range regex.Syntaxes() {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}
