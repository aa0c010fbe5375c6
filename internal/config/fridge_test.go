package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smallbiznis/dormitory/internal/fridge/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadFridgePolicyDefaultsToUnlimited(t *testing.T) {
	policy, err := LoadFridgePolicy("")
	require.NoError(t, err)
	assert.Equal(t, 0, policy.CapacityFor(domain.CompartmentTypeChill))
	assert.Equal(t, 0, policy.CapacityFor(domain.CompartmentTypeFreeze))
}

func TestLoadFridgePolicyFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("compartment_capacity: 4\nfreeze_capacity: 8\n"), 0o600))

	policy, err := LoadFridgePolicy(path)
	require.NoError(t, err)
	assert.Equal(t, 4, policy.CapacityFor(domain.CompartmentTypeChill))
	assert.Equal(t, 8, policy.CapacityFor(domain.CompartmentTypeFreeze))
}

func TestLoadFridgePolicyEnvOverride(t *testing.T) {
	t.Setenv("FRIDGE_CHILL_CAPACITY", "3")

	policy, err := LoadFridgePolicy("")
	require.NoError(t, err)
	assert.Equal(t, 3, policy.CapacityFor(domain.CompartmentTypeChill))
}

func TestLoadFridgePolicyRejectsNegative(t *testing.T) {
	t.Setenv("FRIDGE_COMPARTMENT_CAPACITY", "-1")

	_, err := LoadFridgePolicy("")
	assert.Error(t, err)
}

func TestNewFridgePolicyHolderWithoutFile(t *testing.T) {
	t.Setenv("FRIDGE_COMPARTMENT_CAPACITY", "2")

	holder, err := NewFridgePolicyHolder(Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 2, holder.Get().CompartmentCapacity)
}

func TestStaticFridgePolicy(t *testing.T) {
	holder := NewStaticFridgePolicy(FridgePolicy{ChillCapacity: 5})
	assert.Equal(t, 5, holder.Get().CapacityFor(domain.CompartmentTypeChill))
	assert.Equal(t, 0, holder.Get().CapacityFor(domain.CompartmentTypeFreeze))
}

func TestFridgePolicyHolderReloadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("compartment_capacity: 4\n"), 0o600))

	holder, err := NewFridgePolicyHolder(Config{Fridge: FridgeConfig{PolicyFile: path}}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 4, holder.Get().CompartmentCapacity)

	require.NoError(t, os.WriteFile(path, []byte("compartment_capacity: 6\n"), 0o600))
	require.Eventually(t, func() bool {
		return holder.Get().CompartmentCapacity == 6
	}, 5*time.Second, 20*time.Millisecond)
}
