package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunFlagsCoverConfigKeys(t *testing.T) {
	cmd := newRunCmd()
	for key, name := range configFlags {
		assert.NotNil(t, cmd.Flags().Lookup(name), "flag %s for %s", name, key)
	}
}

func TestSynthThenFeatures(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer

	synth := newSynthCmd()
	synth.SetOut(&out)
	synth.SetArgs([]string{dir, "--subjects", "12", "--dimension", "16,6,6"})
	require.NoError(t, synth.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "12 subjects")

	out.Reset()
	features := newFeaturesCmd()
	features.SetOut(&out)
	features.SetArgs([]string{filepath.Join(dir, "dataset.yaml")})
	require.NoError(t, features.ExecuteContext(context.Background()))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[1], "age")
	assert.Contains(t, lines[4], "site")
	assert.Contains(t, lines[4], "(constant)")
}

func TestSynthRejectsBadDimension(t *testing.T) {
	synth := newSynthCmd()
	synth.SetArgs([]string{t.TempDir(), "--dimension", "16,6"})
	assert.Error(t, synth.ExecuteContext(context.Background()))
}
