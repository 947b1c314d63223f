package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	runLine  = `{"nodes":[{"id":0,"label":"run-01"},{"id":1,"label":"dog"}],"edges":[{"source":0,"target":1,"label":"ARG0"}],"tops":[0]}`
	walkLine = `{"nodes":[{"id":0,"label":"walk-01"},{"id":1,"label":"dog"}],"edges":[{"source":0,"target":1,"label":"ARG0"}],"tops":[0]}`
	topless  = `{"nodes":[{"id":0,"label":"run-01"},{"id":1,"label":"dog"}],"edges":[{"source":0,"target":1,"label":"ARG0"}],"tops":[]}`
)

func TestSelectPrintsScoresAndWinner(t *testing.T) {
	dir := t.TempDir()
	gold := filepath.Join(dir, "gold.jsonl")
	require.NoError(t, os.WriteFile(gold, []byte(runLine+"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base_out"), []byte(walkLine+"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tuned_out"), []byte(runLine+"\n"), 0o644))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-g", gold, "-d", dir, "-log-level", "disabled", "-seed", "1"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	base := filepath.Join(dir, "base_out")
	tuned := filepath.Join(dir, "tuned_out")
	assert.Equal(t, base+" f1: 0.5000\n"+tuned+" f1: 1.0000\n"+tuned+"\n", stdout.String())
}

func TestSelectSkipsUnscorableCandidate(t *testing.T) {
	dir := t.TempDir()
	gold := filepath.Join(dir, "gold.jsonl")
	require.NoError(t, os.WriteFile(gold, []byte(runLine+"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base_out"), []byte(walkLine+"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken_out"), []byte(topless+"\n"), 0o644))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-g", gold, "-d", dir, "-log-level", "disabled", "-seed", "1"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	lines := strings.Split(strings.TrimSuffix(stdout.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, filepath.Join(dir, "base_out")+" f1: 0.5000", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], filepath.Join(dir, "broken_out")+" f1: failed ("), lines[1])
	assert.Equal(t, filepath.Join(dir, "base_out"), lines[2])
}

func TestSelectRequiresGold(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-d", t.TempDir()}, &stdout, &stderr)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "Usage: select")
}
