// Package config loads pizzaflow settings from the environment, reading a
// .env file first when one is present.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/petrijr/pizzaflow/internal/classifier"
	"github.com/petrijr/pizzaflow/internal/kitchen"
	"github.com/petrijr/pizzaflow/pkg/api"
)

// Environment variables.
const (
	EnvAddr            = "PIZZAFLOW_ADDR"
	EnvFlavors         = "PIZZAFLOW_FLAVORS"
	EnvMenuDB          = "PIZZAFLOW_MENU_DB"
	EnvMaxAttempts     = "PIZZAFLOW_MAX_ATTEMPTS"
	EnvInitialInterval = "PIZZAFLOW_INITIAL_INTERVAL"
	EnvBackoffRate     = "PIZZAFLOW_BACKOFF_RATE"
	EnvRetryOn         = "PIZZAFLOW_RETRY_ON"
	EnvWorkflowTimeout = "PIZZAFLOW_WORKFLOW_TIMEOUT"
	EnvPrepareTime     = "PIZZAFLOW_PREPARE_TIME"
	EnvDeliveryTime    = "PIZZAFLOW_DELIVERY_TIME"
	EnvLogLevel        = "PIZZAFLOW_LOG_LEVEL"
	EnvTraceStdout     = "PIZZAFLOW_TRACE_STDOUT"
	EnvTemporalAddress = "TEMPORAL_ADDRESS"
	EnvTemporalQueue   = "TEMPORAL_TASK_QUEUE"
)

// DefaultTaskQueue is the Temporal task queue used when none is configured.
const DefaultTaskQueue = "pizzaflow-orders"

// Config is the resolved process configuration.
type Config struct {
	Addr string

	// Flavors is the classifier allow-set. It is replaced by the menu
	// database contents when MenuDB is set.
	Flavors []string
	MenuDB  string

	Definition api.Definition

	PrepareTime  time.Duration
	DeliveryTime time.Duration

	LogLevel    slog.Level
	TraceStdout bool

	// TemporalAddress enables the Temporal worker when non-empty.
	TemporalAddress string
	TaskQueue       string
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Addr:         ":8080",
		Flavors:      append([]string(nil), classifier.DefaultFlavors...),
		Definition:   api.DefaultDefinition(),
		PrepareTime:  kitchen.DefaultPrepareTime,
		DeliveryTime: kitchen.DefaultDeliveryTime,
		LogLevel:     slog.LevelInfo,
		TaskQueue:    DefaultTaskQueue,
	}
}

// Load reads the given .env files (".env" when none are named) and then the
// process environment. A missing .env file is not an error; variables that
// are already set in the environment win over .env entries.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv resolves a Config using lookup. Every malformed value is reported.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	p := parser{lookup: lookup}

	cfg.Addr = p.asString(EnvAddr, cfg.Addr)
	if v := p.asList(EnvFlavors); v != nil {
		cfg.Flavors = v
	}
	cfg.MenuDB = p.asString(EnvMenuDB, "")

	cfg.Definition.Retry.MaxAttempts = p.asInt(EnvMaxAttempts, cfg.Definition.Retry.MaxAttempts)
	cfg.Definition.Retry.InitialInterval = p.asDuration(EnvInitialInterval, cfg.Definition.Retry.InitialInterval)
	cfg.Definition.Retry.BackoffRate = p.asFloat(EnvBackoffRate, cfg.Definition.Retry.BackoffRate)
	if v := p.asList(EnvRetryOn); v != nil {
		kinds := make([]api.ErrorKind, len(v))
		for i, k := range v {
			kinds[i] = api.ErrorKind(k)
		}
		cfg.Definition.Retry.RetryOn = kinds
	}
	cfg.Definition.Timeout = p.asDuration(EnvWorkflowTimeout, cfg.Definition.Timeout)

	cfg.PrepareTime = p.asDuration(EnvPrepareTime, cfg.PrepareTime)
	cfg.DeliveryTime = p.asDuration(EnvDeliveryTime, cfg.DeliveryTime)

	cfg.LogLevel = p.asLevel(EnvLogLevel, cfg.LogLevel)
	cfg.TraceStdout = p.asBool(EnvTraceStdout, cfg.TraceStdout)

	cfg.TemporalAddress = p.asString(EnvTemporalAddress, "")
	cfg.TaskQueue = p.asString(EnvTemporalQueue, cfg.TaskQueue)

	if err := cfg.Definition.Validate(); err != nil {
		p.errs = append(p.errs, err)
	}
	if len(p.errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(p.errs...))
	}
	return cfg, nil
}

type parser struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (p *parser) raw(key string) (string, bool) {
	v, ok := p.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (p *parser) asString(key, def string) string {
	if v, ok := p.raw(key); ok {
		return v
	}
	return def
}

func (p *parser) asList(key string) []string {
	v, ok := p.raw(key)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (p *parser) asInt(key string, def int) int {
	v, ok := p.raw(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (p *parser) asFloat(key string, def float64) float64 {
	v, ok := p.raw(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

// asDuration accepts Go duration strings ("2s", "5m") and bare numbers of
// seconds ("300").
func (p *parser) asDuration(key string, def time.Duration) time.Duration {
	v, ok := p.raw(key)
	if !ok {
		return def
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (p *parser) asBool(key string, def bool) bool {
	v, ok := p.raw(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (p *parser) asLevel(key string, def slog.Level) slog.Level {
	v, ok := p.raw(key)
	if !ok {
		return def
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(v)); err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return l
}
