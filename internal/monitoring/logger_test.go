package monitoring

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got string
	SetLogger(func(format string, v ...interface{}) { got = format })
	Logf("batch %s failed", "b-1")
	assert.Equal(t, "batch %s failed", got)

	// nil installs a no-op logger rather than panicking.
	SetLogger(nil)
	require.NotPanics(t, func() { Logf("ignored") })
}

func TestLogfDefault(t *testing.T) {
	require.NotNil(t, Logf)
}

func TestResetRestoresPrefixedLogger(t *testing.T) {
	original := Logf
	defer func() {
		Logf = original
		std.SetOutput(os.Stderr)
	}()

	var buf bytes.Buffer
	std.SetOutput(&buf)
	SetLogger(nil)
	Reset()

	Logf("catalog save retried")
	assert.Contains(t, buf.String(), "brewtrace: ")
	assert.Contains(t, buf.String(), "catalog save retried")
}
