package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ReportingConfig tunes the summary aggregation.
type ReportingConfig struct {
	RevenueWindowDays    int      `mapstructure:"revenueWindowDays"`
	ExcludedPaymentModes []string `mapstructure:"excludedPaymentModes"`
	Timezone             string   `mapstructure:"timezone"`
}

// Location resolves the configured timezone, falling back to UTC.
func (c ReportingConfig) Location() *time.Location {
	loc, err := time.LoadLocation(strings.TrimSpace(c.Timezone))
	if err != nil || strings.TrimSpace(c.Timezone) == "" {
		return time.UTC
	}
	return loc
}

func DefaultReportingConfig() ReportingConfig {
	return ReportingConfig{
		RevenueWindowDays:    30,
		ExcludedPaymentModes: []string{"DISCOUNT"},
		Timezone:             "UTC",
	}
}

type ReportingConfigHolder struct {
	current atomic.Value // holds ReportingConfig
}

// NewStaticReportingConfigHolder returns a holder that never reloads.
func NewStaticReportingConfigHolder(cfg ReportingConfig) *ReportingConfigHolder {
	holder := &ReportingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewReportingConfigHolder(log *zap.Logger) (*ReportingConfigHolder, error) {
	log = log.Named("config.reporting")
	v := viper.New()

	v.SetConfigName("reporting")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/alankar")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ALANKAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultReportingConfig()
	v.SetDefault("reporting.revenueWindowDays", defaults.RevenueWindowDays)
	v.SetDefault("reporting.excludedPaymentModes", defaults.ExcludedPaymentModes)
	v.SetDefault("reporting.timezone", defaults.Timezone)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg ReportingConfig
	if err := v.UnmarshalKey("reporting", &cfg); err != nil {
		return nil, err
	}
	cfg = normalizeReportingConfig(cfg)
	if err := validateReportingConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticReportingConfigHolder(cfg)

	if fileLoaded {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated ReportingConfig
			if err := v.UnmarshalKey("reporting", &updated); err != nil {
				log.Warn("reload failed", zap.Error(err))
				return
			}
			updated = normalizeReportingConfig(updated)
			if err := validateReportingConfig(updated); err != nil {
				log.Warn("invalid config ignored", zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("reloaded", zap.String("file", e.Name))
		})
	}

	return holder, nil
}

func (h *ReportingConfigHolder) Get() ReportingConfig {
	return h.current.Load().(ReportingConfig)
}

func normalizeReportingConfig(cfg ReportingConfig) ReportingConfig {
	modes := make([]string, 0, len(cfg.ExcludedPaymentModes))
	for _, mode := range cfg.ExcludedPaymentModes {
		mode = strings.ToUpper(strings.TrimSpace(mode))
		if mode == "" {
			continue
		}
		modes = append(modes, mode)
	}
	cfg.ExcludedPaymentModes = modes
	cfg.Timezone = strings.TrimSpace(cfg.Timezone)
	return cfg
}

func validateReportingConfig(cfg ReportingConfig) error {
	if cfg.RevenueWindowDays <= 0 {
		return errors.New("reporting.revenueWindowDays must be positive")
	}
	if cfg.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Timezone); err != nil {
			return fmt.Errorf("reporting.timezone: %w", err)
		}
	}
	return nil
}
