package log

import (
	"bytes"
	"strings"
	"testing"
)

// TestChildLoggerChaining verifies the With helpers chain straight into a
// level call and carry their field.
func TestChildLoggerChaining(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, JSONOutput: true, Output: &buf})

	WithComponent("ring").Info().Msg("node added")
	WithOwner("A").Warn().Msg("probe failed")
	WithOfferingID("o1").Error().Msg("placement failed")
	WithTaskID("t1").Debug().Msg("task submitted")

	out := buf.String()
	for _, want := range []string{
		`"component":"ring"`,
		`"owner":"A"`,
		`"offering_id":"o1"`,
		`"task_id":"t1"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s:\n%s", want, out)
		}
	}
}
