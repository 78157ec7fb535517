package digitizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracewell-health/ecg-cli/internal/model"
)

func TestParseResponse(t *testing.T) {
	t.Parallel()

	t.Run("clean payload", func(t *testing.T) {
		t.Parallel()
		out, err := parseResponse(`{
			"success": true,
			"sampleRate": 500,
			"leads": {"I": [0.1, 0.2], "II": [0.3, 0.4]},
			"suggestions": ["increase contrast"]
		}`)
		require.NoError(t, err)

		assert.True(t, out.Success)
		require.NotNil(t, out.Signal)
		assert.InDelta(t, 500.0, out.Signal.SampleRate, 1e-12)
		assert.Equal(t, []float64{0.1, 0.2}, out.Signal.Lead(model.LeadI))
		assert.Equal(t, []string{"increase contrast"}, out.Suggestions)
		assert.Empty(t, out.Issues)
	})

	t.Run("fenced payload with prose", func(t *testing.T) {
		t.Parallel()
		out, err := parseResponse("Here is the extraction:\n```json\n" +
			`{"success": true, "sampleRate": 250, "leads": {"II": [1]}}` +
			"\n```\n")
		require.NoError(t, err)
		assert.True(t, out.Success)
		require.NotNil(t, out.Signal)
		assert.InDelta(t, 250.0, out.Signal.SampleRate, 1e-12)
	})

	t.Run("unknown lead labels are dropped with a warning", func(t *testing.T) {
		t.Parallel()
		out, err := parseResponse(`{
			"success": true,
			"sampleRate": 500,
			"leads": {"II": [1, 2], "V9": [3, 4], "": [5]}
		}`)
		require.NoError(t, err)

		assert.True(t, out.Success)
		require.NotNil(t, out.Signal)
		assert.Equal(t, 1, out.Signal.LeadCount())
		require.Len(t, out.Issues, 2)
		for _, is := range out.Issues {
			assert.Equal(t, model.IssueCoverage, is.Type)
			assert.Equal(t, model.SeverityWarning, is.Severity)
		}
	})

	t.Run("messy labels are normalized", func(t *testing.T) {
		t.Parallel()
		out, err := parseResponse(`{
			"success": true,
			"sampleRate": 500,
			"leads": {"Lead II": [1], "avr": [2]}
		}`)
		require.NoError(t, err)
		assert.True(t, out.Signal.HasLead(model.LeadII))
		assert.True(t, out.Signal.HasLead(model.LeadAVR))
	})

	t.Run("no recognizable leads fails the attempt", func(t *testing.T) {
		t.Parallel()
		out, err := parseResponse(`{"success": true, "sampleRate": 500, "leads": {"V9": [1]}}`)
		require.NoError(t, err)

		assert.False(t, out.Success)
		assert.Nil(t, out.Signal)
		require.NotEmpty(t, out.Issues)
		last := out.Issues[len(out.Issues)-1]
		assert.Equal(t, model.SeverityError, last.Severity)
	})

	t.Run("invalid sample rate fails the attempt", func(t *testing.T) {
		t.Parallel()
		out, err := parseResponse(`{"success": true, "sampleRate": 0, "leads": {"II": [1]}}`)
		require.NoError(t, err)
		assert.False(t, out.Success)
		assert.Nil(t, out.Signal)
		require.Len(t, out.Issues, 1)
		assert.Equal(t, model.SeverityError, out.Issues[0].Severity)
	})

	t.Run("model-reported failure carries issues through", func(t *testing.T) {
		t.Parallel()
		out, err := parseResponse(`{
			"success": false,
			"issues": [{"type": "missing_leads", "severity": "error", "message": "image too blurry"}],
			"suggestions": ["rescan at higher resolution"]
		}`)
		require.NoError(t, err)

		assert.False(t, out.Success)
		require.Len(t, out.Issues, 1)
		assert.Equal(t, model.IssueCoverage, out.Issues[0].Type)
		assert.Equal(t, model.SeverityError, out.Issues[0].Severity)
		assert.Equal(t, []string{"rescan at higher resolution"}, out.Suggestions)
	})

	t.Run("unparseable reply is an error", func(t *testing.T) {
		t.Parallel()
		_, err := parseResponse("I could not read the image, sorry.")
		assert.Error(t, err)
	})

	t.Run("empty lead arrays are skipped", func(t *testing.T) {
		t.Parallel()
		out, err := parseResponse(`{"success": true, "sampleRate": 500, "leads": {"I": [], "II": [1]}}`)
		require.NoError(t, err)
		assert.True(t, out.Success)
		assert.Equal(t, 1, out.Signal.LeadCount())
	})
}

func TestStripFences(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare json", `{"a":1}`, `{"a":1}`},
		{"fence with language", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fence without language", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"leading prose", "Sure, here you go: {\"a\":1}", `{"a":1}`},
		{"trailing prose", "{\"a\":1}\nHope that helps!", `{"a":1}`},
		{"surrounding whitespace", "  \n{\"a\":1}\n  ", `{"a":1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, stripFences(tc.in))
		})
	}
}
