package renderer

import (
	"bytes"
	"os"
	"testing"

	"github.com/spaghettifunk/okapi/engine/core"
	"github.com/spaghettifunk/okapi/engine/renderer/driver"
	"github.com/stretchr/testify/assert"
)

func TestLogDiagnostic(t *testing.T) {
	var buf bytes.Buffer
	core.SetLogOutput(&buf)
	t.Cleanup(func() { core.SetLogOutput(os.Stderr) })

	LogDiagnostic(driver.Diagnostic{
		Severity:  driver.SeverityError,
		MessageID: 42,
		Layer:     "Validation",
		Message:   "pool at 100% with %d sets",
	})
	assert.Contains(t, buf.String(), "pool at 100% with %d sets")
	assert.NotContains(t, buf.String(), "%!")

	buf.Reset()
	LogDiagnostic(driver.Diagnostic{Severity: driver.SeverityWarning, MessageID: 648835635, Message: "debug build"})
	assert.Empty(t, buf.String())
}
