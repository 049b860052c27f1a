package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_AllStagePrompts(t *testing.T) {
	keys := []string{
		"policy-insight",
		"coverage-assessment",
		"inspection",
		"bill-analysis",
		"final-decision",
	}

	for _, key := range keys {
		t.Run(key, func(t *testing.T) {
			prompt, err := Get("stages.json", key)
			require.NoError(t, err)
			assert.NotEmpty(t, prompt)
			assert.Contains(t, prompt, "{{.ClaimID}}")
		})
	}
}

func TestGet_MissingKey(t *testing.T) {
	_, err := Get("stages.json", "nonexistent-prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestGet_MissingFile(t *testing.T) {
	_, err := Get("nonexistent.json", "policy-insight")
	require.Error(t, err)
}

func TestFormat(t *testing.T) {
	template := "Claim {{.ClaimID}}: {{.Description}}"
	result := Format(template, map[string]string{
		"ClaimID":     "CLM-2024-001",
		"Description": "front-end collision",
	})
	assert.Equal(t, "Claim CLM-2024-001: front-end collision", result)
}

func TestFormat_MissingPlaceholderLeftIntact(t *testing.T) {
	template := "Claim {{.ClaimID}} context: {{.Context}}"
	result := Format(template, map[string]string{"ClaimID": "C-1"})
	assert.True(t, strings.Contains(result, "{{.Context}}"))
}

func TestMustGet_PanicsOnMissing(t *testing.T) {
	assert.Panics(t, func() {
		MustGet("stages.json", "no-such-key")
	})
}

func TestList(t *testing.T) {
	ClearCache()
	keys, err := List("stages.json")
	require.NoError(t, err)
	assert.Len(t, keys, 5)
}
