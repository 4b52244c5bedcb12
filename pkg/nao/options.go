package nao

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/hfzizz/nao-llm/internal/config"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	configPath string
	env        string
	config     *config.Config
	dataset    string

	logger         *slog.Logger
	pipelineLogger *zap.Logger
	metricsReg     prometheus.Registerer
}

// WithConfigFile loads settings from an explicit YAML file.
func WithConfigFile(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.configPath = path
	})
}

// WithEnv loads config/<env>.yaml. Ignored when WithConfigFile is set.
func WithEnv(env string) Option {
	return optionFunc(func(c *clientConfig) {
		c.env = env
	})
}

// WithConfig uses an already built configuration. Defaults are applied to a copy.
func WithConfig(cfg config.Config) Option {
	return optionFunc(func(c *clientConfig) {
		c.config = &cfg
	})
}

// WithDataset overrides the knowledge base dataset path.
func WithDataset(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.dataset = path
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPipelineLogger sets the zap logger used inside the pipeline. Default: no-op.
func WithPipelineLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.pipelineLogger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
