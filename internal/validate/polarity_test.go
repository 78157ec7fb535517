package validate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracewell-health/ecg-cli/internal/model"
)

func TestParsePolarityProfile(t *testing.T) {
	data := []byte(`
positive: [I, II, V5, V6]
negative: [aVR, V4R]
`)
	table, err := parsePolarityProfile(data)
	require.NoError(t, err)

	assert.Equal(t, PolarityPositive, table[model.LeadI])
	assert.Equal(t, PolarityPositive, table[model.LeadV6])
	assert.Equal(t, PolarityNegative, table[model.LeadAVR])
	assert.Equal(t, PolarityNegative, table[model.LeadV4R])
	// Unlisted leads carry no expectation.
	assert.Equal(t, PolarityIndeterminate, table[model.LeadV1])
}

func TestParsePolarityProfile_UnknownLead(t *testing.T) {
	_, err := parsePolarityProfile([]byte(`positive: [I, XII]`))
	assert.Error(t, err)
}

func TestParsePolarityProfile_Conflict(t *testing.T) {
	_, err := parsePolarityProfile([]byte(`
positive: [I]
negative: [I]
`))
	assert.Error(t, err)
}

func TestParsePolarityProfile_BadYAML(t *testing.T) {
	_, err := parsePolarityProfile([]byte(`positive: {not a list`))
	assert.Error(t, err)
}

func TestLoadPolarityProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("positive: [II]\nnegative: [aVR]\n"), 0o644))

	table, err := LoadPolarityProfile(path)
	require.NoError(t, err)
	assert.Equal(t, PolarityPositive, table[model.LeadII])
	assert.Equal(t, PolarityNegative, table[model.LeadAVR])
}

func TestLoadPolarityProfile_MissingFile(t *testing.T) {
	_, err := LoadPolarityProfile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
