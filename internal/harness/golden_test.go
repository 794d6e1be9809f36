package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Golden traces pin the engine's observable ordering: fact declaration
// order, firing order, and answer order. Regenerate with `go test -update`
// after a deliberate semantics change.
func TestGoldenTraces(t *testing.T) {
	scenarios, err := LoadScenarioDir("testdata/scenarios")
	require.NoError(t, err)

	for _, scenario := range scenarios {
		t.Run(scenario.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}
