package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
)

// RunGolden loads the scenario at path, runs it, verifies its
// expectations, and compares the canonical trace against the golden file
// named after the scenario. Regenerate goldens with `go test -update`.
func RunGolden(t *testing.T, path string) {
	t.Helper()

	s, err := LoadScenario(path)
	require.NoError(t, err)

	res, err := NewRunner().Run(s)
	require.NoError(t, err)
	Verify(t, s, res)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, s.Name, res.Trace.Canonical())
}
