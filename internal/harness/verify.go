package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Verify checks a run result against the scenario's expectations. Fields
// left unset in the scenario are not checked.
func Verify(t *testing.T, s *Scenario, res *Result) {
	t.Helper()

	if s.Expect.Executed != nil {
		assert.Equal(t, s.Expect.Executed, res.Executed,
			"scenario %s: executed labels", s.Name)
	}
	if s.Expect.Dropped != 0 {
		assert.Equal(t, s.Expect.Dropped, res.Dropped,
			"scenario %s: dropped commands", s.Name)
	}
	if s.Expect.Frame != 0 {
		assert.Equal(t, s.Expect.Frame, res.Frame,
			"scenario %s: frame counter", s.Name)
	}
}
