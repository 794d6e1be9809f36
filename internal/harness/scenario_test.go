package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenarioYAML = `name: "red-plants"
description: "Red small flowers match"
domain: "plants"
criteria:
  color: "красный"
  size: "маленький"
  type: "цветок"
records:
  - name: "Роза"
    color: "красный"
    size: "маленький"
    type: "цветок"
    link: "-"
assertions:
  - type: "answer_count"
    count: 1
`

func writeScenario(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario(writeScenario(t, minimalScenarioYAML))
	require.NoError(t, err)

	assert.Equal(t, "red-plants", s.Name)
	assert.Equal(t, "plants", s.Domain)
	assert.Equal(t, "красный", s.Criteria["color"])
	require.Len(t, s.Records, 1)
	require.Len(t, s.Assertions, 1)
	assert.Equal(t, AssertAnswerCount, s.Assertions[0].Type)
	assert.Equal(t, 1, s.Assertions[0].Count)
}

func TestLoadScenarioResolvesRulesPath(t *testing.T) {
	dir := t.TempDir()
	rules := filepath.Join(dir, "rules.cue")
	require.NoError(t, os.WriteFile(rules, []byte(`name: "x"`), 0o644))

	yaml := minimalScenarioYAML + `rules: "rules.cue"` + "\n"
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, rules, s.Rules)
}

func TestLoadScenarioErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantMsg string
	}{
		{
			name: "unknown field",
			yaml: `name: "x"
description: "d"
domain: "plants"
criteria: {color: "a"}
records: []
assertion:
  - type: "answer_count"
`,
			wantMsg: "parse scenario YAML",
		},
		{
			name: "missing name",
			yaml: `description: "d"
domain: "plants"
criteria: {color: "a"}
records: []
assertions: [{type: "answer_count", count: 0}]
`,
			wantMsg: "name is required",
		},
		{
			name: "missing description",
			yaml: `name: "x"
domain: "plants"
criteria: {color: "a"}
records: []
assertions: [{type: "answer_count", count: 0}]
`,
			wantMsg: "description is required",
		},
		{
			name: "missing records",
			yaml: `name: "x"
description: "d"
domain: "plants"
criteria: {color: "a"}
assertions: [{type: "answer_count", count: 0}]
`,
			wantMsg: "records is required",
		},
		{
			name: "no assertions without expect_error",
			yaml: `name: "x"
description: "d"
domain: "plants"
criteria: {color: "a"}
records: []
`,
			wantMsg: "assertions list is required",
		},
		{
			name: "unknown error category",
			yaml: `name: "x"
description: "d"
domain: "plants"
criteria: {color: "a"}
records: []
expect_error: "timeout"
`,
			wantMsg: "unknown category",
		},
		{
			name: "missing rules file",
			yaml: `name: "x"
description: "d"
domain: "plants"
rules: "absent.cue"
criteria: {color: "a"}
records: []
assertions: [{type: "answer_count", count: 0}]
`,
			wantMsg: "rules file not found",
		},
		{
			name: "answers_contain without fields",
			yaml: `name: "x"
description: "d"
domain: "plants"
criteria: {color: "a"}
records: []
assertions: [{type: "answers_contain"}]
`,
			wantMsg: "fields is required",
		},
		{
			name: "answer_order without field",
			yaml: `name: "x"
description: "d"
domain: "plants"
criteria: {color: "a"}
records: []
assertions: [{type: "answer_order", values: ["a"]}]
`,
			wantMsg: "field is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoadScenarioDir(t *testing.T) {
	dir := t.TempDir()
	first := `name: "alpha"
description: "d"
domain: "plants"
criteria: {color: "a"}
records: []
assertions: [{type: "answer_count", count: 0}]
`
	second := `name: "beta"
description: "d"
domain: "plants"
criteria: {color: "b"}
records: []
assertions: [{type: "answer_count", count: 0}]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "01_alpha.yaml"), []byte(first), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "02_beta.yaml"), []byte(second), 0o644))

	scenarios, err := LoadScenarioDir(dir)
	require.NoError(t, err)
	require.Len(t, scenarios, 2)
	assert.Equal(t, "alpha", scenarios[0].Name)
	assert.Equal(t, "beta", scenarios[1].Name)
}

func TestLoadScenarioDirEmpty(t *testing.T) {
	_, err := LoadScenarioDir(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no scenario files")
}
