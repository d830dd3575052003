package driver

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiagnosticBenign(t *testing.T) {
	tests := []struct {
		id     int32
		benign bool
	}{
		{648835635, true},
		{767975156, true},
		{0, false},
		{-1, false},
		{648835636, false},
	}
	for _, tt := range tests {
		d := Diagnostic{Severity: SeverityWarning, MessageID: tt.id}
		assert.Equal(t, tt.benign, d.Benign(), "message id %d", tt.id)
	}
}

func TestDiagnosticString(t *testing.T) {
	d := Diagnostic{Severity: SeverityError, MessageID: 42, Layer: "Validation", Message: "bad handle"}
	assert.Equal(t, "ERROR: [Validation] Code 42 : bad handle", d.String())
}

func TestIsStale(t *testing.T) {
	assert.True(t, IsStale(ErrOutOfDate))
	assert.True(t, IsStale(fmt.Errorf("acquire: %w", ErrSuboptimal)))
	assert.False(t, IsStale(ErrDeviceLost))
	assert.False(t, IsStale(nil))
}

func TestResidencyHostVisible(t *testing.T) {
	assert.False(t, ResidencyDeviceLocal.HostVisible())
	assert.True(t, ResidencyHostSequentialWrite.HostVisible())
	assert.True(t, ResidencyHostMappedPersistent.HostVisible())
}
