package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadOrCreateEmptyPath(t *testing.T) {
	profile, err := ReadOrCreate("")
	require.NoError(t, err)
	assert.Equal(t, DefaultProfile(), profile)
}

func TestReadOrCreateWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")

	profile, err := ReadOrCreate(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultProfile(), profile)

	_, err = os.Stat(path)
	require.NoError(t, err)

	// Second read round-trips the written file.
	again, err := ReadOrCreate(path)
	require.NoError(t, err)
	assert.Equal(t, profile, again)
}

func TestReadOrCreatePartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	content := `
reputation:
  damping: 0.9
clustering:
  method: dbscan
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	profile, err := ReadOrCreate(path)
	require.NoError(t, err)

	assert.InDelta(t, 0.9, profile.Reputation.Damping, 1e-9)
	assert.Equal(t, "dbscan", profile.Clustering.Method)
	// Unset fields keep defaults.
	assert.Equal(t, DefaultProfile().Reputation.MaxIterations, profile.Reputation.MaxIterations)
	assert.Equal(t, DefaultProfile().AuditTopK, profile.AuditTopK)
}

func TestReadOrCreateRejectsInvalidProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("reputation:\n  damping: 1.5\n"), 0o644))

	_, err := ReadOrCreate(path)
	assert.Error(t, err)
}

func TestReadOrCreateRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("reputation: [not a map"), 0o644))

	_, err := ReadOrCreate(path)
	assert.Error(t, err)
}
