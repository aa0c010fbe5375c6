package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/smallbiznis/dormitory/internal/fridge/domain"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// FridgePolicy is the per-compartment occupancy policy used by the preview
// planner. A zero capacity means no limit.
type FridgePolicy struct {
	CompartmentCapacity int `mapstructure:"compartment_capacity"`
	ChillCapacity       int `mapstructure:"chill_capacity"`
	FreezeCapacity      int `mapstructure:"freeze_capacity"`
}

// CapacityFor returns the room capacity for a compartment type, falling back to
// CompartmentCapacity when no type override is set.
func (p FridgePolicy) CapacityFor(t domain.CompartmentType) int {
	switch t {
	case domain.CompartmentTypeChill:
		if p.ChillCapacity > 0 {
			return p.ChillCapacity
		}
	case domain.CompartmentTypeFreeze:
		if p.FreezeCapacity > 0 {
			return p.FreezeCapacity
		}
	}
	return p.CompartmentCapacity
}

// FridgePolicyHolder serves the current policy and swaps it when the policy
// file changes on disk.
type FridgePolicyHolder struct {
	current atomic.Value // holds FridgePolicy
}

// NewStaticFridgePolicy returns a holder that never reloads.
func NewStaticFridgePolicy(policy FridgePolicy) *FridgePolicyHolder {
	holder := &FridgePolicyHolder{}
	holder.current.Store(policy)
	return holder
}

// NewFridgePolicyHolder reads the policy from FRIDGE_POLICY_FILE (optional)
// with FRIDGE_* environment overrides and watches the file for changes.
func NewFridgePolicyHolder(cfg Config, log *zap.Logger) (*FridgePolicyHolder, error) {
	v, err := newFridgeViper(cfg.Fridge.PolicyFile)
	if err != nil {
		return nil, err
	}

	policy, err := decodeFridgePolicy(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticFridgePolicy(policy)
	if cfg.Fridge.PolicyFile == "" {
		return holder, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeFridgePolicy(v)
		if err != nil {
			log.Warn("fridge policy reload ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("fridge policy reloaded",
			zap.String("file", e.Name),
			zap.Int("compartment_capacity", updated.CompartmentCapacity),
			zap.Int("chill_capacity", updated.ChillCapacity),
			zap.Int("freeze_capacity", updated.FreezeCapacity),
		)
	})
	v.WatchConfig()

	return holder, nil
}

func (h *FridgePolicyHolder) Get() FridgePolicy {
	return h.current.Load().(FridgePolicy)
}

// LoadFridgePolicy reads the policy once without watching.
func LoadFridgePolicy(path string) (FridgePolicy, error) {
	v, err := newFridgeViper(path)
	if err != nil {
		return FridgePolicy{}, err
	}
	return decodeFridgePolicy(v)
}

func newFridgeViper(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("FRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("compartment_capacity", 0)
	v.SetDefault("chill_capacity", 0)
	v.SetDefault("freeze_capacity", 0)

	if path == "" {
		return v, nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read fridge policy %q: %w", path, err)
		}
	}
	return v, nil
}

func decodeFridgePolicy(v *viper.Viper) (FridgePolicy, error) {
	var policy FridgePolicy
	if err := v.Unmarshal(&policy); err != nil {
		return FridgePolicy{}, fmt.Errorf("decode fridge policy: %w", err)
	}
	if err := validateFridgePolicy(policy); err != nil {
		return FridgePolicy{}, err
	}
	return policy, nil
}

func validateFridgePolicy(policy FridgePolicy) error {
	if policy.CompartmentCapacity < 0 || policy.ChillCapacity < 0 || policy.FreezeCapacity < 0 {
		return errors.New("fridge policy capacities must not be negative")
	}
	return nil
}
