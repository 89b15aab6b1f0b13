// Package config loads pipeline settings from the environment and parses the
// persisted color and position files.
package config

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	apperr "github.com/GriffinCanCode/apexclick/internal/errors"
	"github.com/GriffinCanCode/apexclick/internal/framebuf"
	"github.com/GriffinCanCode/apexclick/internal/matcher"
	"github.com/GriffinCanCode/apexclick/internal/window"
)

type Config struct {
	Window              window.Handle
	Colors              []matcher.Color
	Positions           []Position
	Tolerance           int
	MinDistance         int
	Workers             int
	QueueCapacity       int
	FrameSlots          int
	CaptureRate         float64 // Hz, 0 = as fast as possible
	SkipUnchanged       bool
	LogLevel            string
	ClickReportInterval time.Duration
}

// Load reads APEX_* variables. Malformed numbers fall back to defaults;
// malformed handles, colors or files are errors.
func Load() (*Config, error) {
	cfg := &Config{
		Tolerance:           getEnvInt("APEX_TOLERANCE", matcher.DefaultTolerance),
		MinDistance:         getEnvInt("APEX_MIN_DISTANCE", matcher.DefaultMinDistance),
		Workers:             getEnvInt("APEX_WORKERS", runtime.NumCPU()),
		QueueCapacity:       getEnvInt("APEX_QUEUE_CAPACITY", 2000),
		FrameSlots:          getEnvInt("APEX_FRAME_SLOTS", framebuf.DefaultSlots),
		CaptureRate:         getEnvFloat("APEX_CAPTURE_RATE", 0),
		SkipUnchanged:       getEnvBool("APEX_SKIP_UNCHANGED", false),
		LogLevel:            getEnv("APEX_LOG_LEVEL", "info"),
		ClickReportInterval: getEnvDuration("APEX_CLICK_REPORT_INTERVAL", 200*time.Millisecond),
	}

	if v := getEnv("APEX_WINDOW", ""); v != "" {
		h, err := window.ParseHandle(v)
		if err != nil {
			return nil, err
		}
		cfg.Window = h
	}

	colors, err := ParseColors(getEnvList("APEX_COLORS", nil))
	if err != nil {
		return nil, err
	}
	cfg.Colors = colors

	if path := getEnv("APEX_COLORS_FILE", ""); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, apperr.Wrapf(err, apperr.CodeConfigInvalid, "read colors file %s", path)
		}
		fromFile, err := ParseColorFile(data)
		if err != nil {
			return nil, err
		}
		cfg.Colors = append(cfg.Colors, fromFile...)
	}

	if path := getEnv("APEX_POSITIONS_FILE", ""); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, apperr.Wrapf(err, apperr.CodeConfigInvalid, "read positions file %s", path)
		}
		if cfg.Positions, err = ParsePositionFile(data); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate rejects configurations the pipeline must never start with.
func (c *Config) Validate() error {
	switch {
	case c.Window == 0:
		return apperr.New(apperr.CodeConfigMissing, "Please select a valid target window.")
	case len(c.Colors) == 0:
		return apperr.New(apperr.CodeConfigMissing, "No target colors defined!")
	case c.Tolerance < 0 || c.Tolerance > matcher.MaxTolerance:
		return apperr.Newf(apperr.CodeConfigInvalid, "tolerance %d outside 0..%d", c.Tolerance, matcher.MaxTolerance)
	case c.MinDistance < 0:
		return apperr.Newf(apperr.CodeConfigInvalid, "min distance %d is negative", c.MinDistance)
	case c.Workers < 1:
		return apperr.Newf(apperr.CodeConfigInvalid, "workers %d, need at least 1", c.Workers)
	case c.QueueCapacity < 1:
		return apperr.Newf(apperr.CodeConfigInvalid, "queue capacity %d, need at least 1", c.QueueCapacity)
	case c.FrameSlots < framebuf.DefaultSlots:
		return apperr.Newf(apperr.CodeConfigInvalid, "frame slots %d, need at least %d", c.FrameSlots, framebuf.DefaultSlots)
	case c.CaptureRate < 0:
		return apperr.Newf(apperr.CodeConfigInvalid, "capture rate %g is negative", c.CaptureRate)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				result = append(result, t)
			}
		}
		return result
	}
	return def
}
