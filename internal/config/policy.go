package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Policy holds the channel business rules that can change without a restart.
type Policy struct {
	MinimumDeposit       float64       `mapstructure:"minimumDeposit"`
	EstimatedOpenSeconds int           `mapstructure:"estimatedOpenSeconds"`
	OpenPollAttempts     int           `mapstructure:"openPollAttempts"`
	OpenPollInterval     time.Duration `mapstructure:"openPollInterval"`
	HistoryLimit         int           `mapstructure:"historyLimit"`
	L1Fee                float64       `mapstructure:"l1Fee"`
	L1Latency            time.Duration `mapstructure:"l1Latency"`
}

func DefaultPolicy() Policy {
	return Policy{
		MinimumDeposit:       5,
		EstimatedOpenSeconds: 2,
		OpenPollAttempts:     15,
		OpenPollInterval:     time.Second,
		HistoryLimit:         50,
		L1Fee:                0.17,
		L1Latency:            18 * time.Second,
	}
}

func (p Policy) MinimumDepositAmount() decimal.Decimal {
	return decimal.NewFromFloat(p.MinimumDeposit)
}

func (p Policy) L1FeeAmount() decimal.Decimal {
	return decimal.NewFromFloat(p.L1Fee)
}

type PolicyHolder struct {
	current atomic.Value // holds Policy
}

// NewPolicyHolder reads policy.yml from the first matching path and watches it
// for changes. A missing file yields the defaults.
func NewPolicyHolder(paths ...string) (*PolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("policy")
	v.SetConfigType("yml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("HYDRAPAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPolicy()
	v.SetDefault("channel.minimumDeposit", defaults.MinimumDeposit)
	v.SetDefault("channel.estimatedOpenSeconds", defaults.EstimatedOpenSeconds)
	v.SetDefault("channel.openPollAttempts", defaults.OpenPollAttempts)
	v.SetDefault("channel.openPollInterval", defaults.OpenPollInterval)
	v.SetDefault("channel.historyLimit", defaults.HistoryLimit)
	v.SetDefault("channel.l1Fee", defaults.L1Fee)
	v.SetDefault("channel.l1Latency", defaults.L1Latency)

	found := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		found = false
	}

	policy, err := decodePolicy(v)
	if err != nil {
		return nil, err
	}
	if err := validatePolicy(policy); err != nil {
		return nil, err
	}

	holder := &PolicyHolder{}
	holder.current.Store(policy)

	if !found {
		return holder, nil
	}

	log := zap.L().Named("policy")
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodePolicy(v)
		if err != nil {
			log.Warn("policy reload failed", zap.Error(err))
			return
		}
		if err := validatePolicy(updated); err != nil {
			log.Warn("invalid policy ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("policy reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

// decodePolicy goes through the merged settings so keys missing from a
// partial channel block keep their defaults.
func decodePolicy(v *viper.Viper) (Policy, error) {
	var settings struct {
		Channel Policy `mapstructure:"channel"`
	}
	if err := v.Unmarshal(&settings); err != nil {
		return Policy{}, err
	}
	return settings.Channel, nil
}

// StaticPolicy returns a holder that never reloads.
func StaticPolicy(p Policy) *PolicyHolder {
	holder := &PolicyHolder{}
	holder.current.Store(p)
	return holder
}

func (h *PolicyHolder) Get() Policy {
	if h == nil {
		return DefaultPolicy()
	}
	return h.current.Load().(Policy)
}

func validatePolicy(p Policy) error {
	if p.MinimumDeposit <= 0 {
		return errors.New("channel.minimumDeposit must be positive")
	}
	if p.OpenPollAttempts <= 0 {
		return errors.New("channel.openPollAttempts must be positive")
	}
	if p.OpenPollInterval <= 0 {
		return errors.New("channel.openPollInterval must be positive")
	}
	if p.HistoryLimit <= 0 {
		return errors.New("channel.historyLimit must be positive")
	}
	if p.L1Fee < 0 || p.L1Latency < 0 {
		return errors.New("channel.l1Fee and channel.l1Latency cannot be negative")
	}
	return nil
}
