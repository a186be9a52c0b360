package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCriticalLevelLabel(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	Criticalf("drawdown %.2f breached", 0.25)
	assert.Contains(t, buf.String(), "level=CRITICAL")
	assert.Contains(t, buf.String(), "drawdown 0.25 breached")
}

func TestSetLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)
	defer SetLevel("info")

	SetLevel("warn")
	Infof("hidden")
	Warnf("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	SetLevel("critical")
	Errorf("hidden error")
	Criticalf("still shown")
	assert.NotContains(t, buf.String(), "hidden error")
	assert.Contains(t, buf.String(), "still shown")
}

func TestInfoBlockSkipsBlankLines(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	InfoBlock("\nfirst\n\nsecond\n")
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("level=INFO")))
}
