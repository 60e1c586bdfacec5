package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	DefaultStalenessWindow      = 2 * time.Minute
	DefaultCapitalSectionNumber = 1
	DefaultSummaryTTL           = 5 * time.Second
)

// EngineConfig tunes the progress engine. It is reloaded from engine.yml at runtime.
type EngineConfig struct {
	// StalenessWindow is how long a mesa claim blocks other operators.
	StalenessWindow time.Duration `mapstructure:"staleness_window"`
	// CurrentElection is the slug of the election screens default to.
	CurrentElection      string        `mapstructure:"current_election"`
	CapitalSectionNumber int           `mapstructure:"capital_section_number"`
	SummaryTTL           time.Duration `mapstructure:"summary_ttl"`
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		StalenessWindow:      DefaultStalenessWindow,
		CapitalSectionNumber: DefaultCapitalSectionNumber,
		SummaryTTL:           DefaultSummaryTTL,
	}
}

type EngineConfigHolder struct {
	current atomic.Value // holds EngineConfig
}

// NewStaticEngineConfigHolder returns a holder that never reloads.
func NewStaticEngineConfigHolder(cfg EngineConfig) *EngineConfigHolder {
	holder := &EngineConfigHolder{}
	holder.current.Store(normalizeEngineConfig(cfg))
	return holder
}

// NewEngineConfigHolder reads engine.yml from dir, falling back to base when the
// file is missing, and hot reloads it on change.
func NewEngineConfigHolder(dir string, base EngineConfig) (*EngineConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("engine")
	v.SetConfigType("yml")
	if strings.TrimSpace(dir) != "" {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath("/etc/escrutinio")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ESCRUTINIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("engine.staleness_window", base.StalenessWindow)
	v.SetDefault("engine.current_election", base.CurrentElection)
	v.SetDefault("engine.capital_section_number", base.CapitalSectionNumber)
	v.SetDefault("engine.summary_ttl", base.SummaryTTL)

	found := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		found = false
	}

	cfg := readEngineConfig(v)
	if err := validateEngineConfig(cfg); err != nil {
		return nil, err
	}

	holder := &EngineConfigHolder{}
	holder.current.Store(normalizeEngineConfig(cfg))

	if !found {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		log := zap.L().Named("engine.config")
		updated := readEngineConfig(v)
		if err := validateEngineConfig(updated); err != nil {
			log.Warn("invalid engine config ignored", zap.Error(err))
			return
		}
		holder.current.Store(normalizeEngineConfig(updated))
		log.Info("engine config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *EngineConfigHolder) Get() EngineConfig {
	return h.current.Load().(EngineConfig)
}

// readEngineConfig reads key by key so defaults fill whatever engine.yml omits.
func readEngineConfig(v *viper.Viper) EngineConfig {
	return EngineConfig{
		StalenessWindow:      v.GetDuration("engine.staleness_window"),
		CurrentElection:      v.GetString("engine.current_election"),
		CapitalSectionNumber: v.GetInt("engine.capital_section_number"),
		SummaryTTL:           v.GetDuration("engine.summary_ttl"),
	}
}

func validateEngineConfig(cfg EngineConfig) error {
	if cfg.StalenessWindow < 0 {
		return errors.New("engine.staleness_window cannot be negative")
	}
	if cfg.SummaryTTL < 0 {
		return errors.New("engine.summary_ttl cannot be negative")
	}
	return nil
}

func normalizeEngineConfig(cfg EngineConfig) EngineConfig {
	if cfg.StalenessWindow == 0 {
		cfg.StalenessWindow = DefaultStalenessWindow
	}
	if cfg.CapitalSectionNumber == 0 {
		cfg.CapitalSectionNumber = DefaultCapitalSectionNumber
	}
	cfg.CurrentElection = strings.TrimSpace(cfg.CurrentElection)
	return cfg
}
