package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPolicyHolderDefaultsWhenFileMissing(t *testing.T) {
	holder, err := NewPolicyHolder(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, DefaultPolicy(), holder.Get())
	assert.Equal(t, "5", holder.Get().MinimumDepositAmount().String())
}

func TestNewPolicyHolderReadsFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`channel:
  minimumDeposit: 10
  openPollAttempts: 3
  openPollInterval: 250ms
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "policy.yml"), content, 0o600))

	holder, err := NewPolicyHolder(dir)
	require.NoError(t, err)

	policy := holder.Get()
	assert.Equal(t, float64(10), policy.MinimumDeposit)
	assert.Equal(t, 3, policy.OpenPollAttempts)
	assert.Equal(t, 250*time.Millisecond, policy.OpenPollInterval)
	assert.Equal(t, 50, policy.HistoryLimit)
}

func TestNewPolicyHolderKeepsDefaultsForOmittedKeys(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`channel:
  minimumDeposit: 8
  historyLimit: 20
  openPollAttempts: 4
  openPollInterval: 500ms
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "policy.yml"), content, 0o600))

	holder, err := NewPolicyHolder(dir)
	require.NoError(t, err)

	policy := holder.Get()
	assert.Equal(t, float64(8), policy.MinimumDeposit)
	assert.Equal(t, 20, policy.HistoryLimit)
	assert.Equal(t, 2, policy.EstimatedOpenSeconds)
	assert.Equal(t, 0.17, policy.L1Fee)
	assert.Equal(t, 18*time.Second, policy.L1Latency)
	assert.Equal(t, "0.17", policy.L1FeeAmount().String())
}

func TestNewPolicyHolderRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`channel:
  minimumDeposit: 0
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "policy.yml"), content, 0o600))

	_, err := NewPolicyHolder(dir)
	assert.Error(t, err)
}

func TestNilPolicyHolderFallsBackToDefaults(t *testing.T) {
	var holder *PolicyHolder
	assert.Equal(t, DefaultPolicy(), holder.Get())
}
