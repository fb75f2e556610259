package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runNormalize(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newNormalizeCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeReply(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reply.txt")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func TestNormalizeCmd(t *testing.T) {
	t.Run("fenced_array", func(t *testing.T) {
		path := writeReply(t, "Here you go:\n```json\n[{\"question\":\"Q1\",\"answer\":\"A1\"}]\n```")
		out, err := runNormalize(t, path)
		require.NoError(t, err)
		var got []map[string]string
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.Equal(t, "Q1", got[0]["question"])
	})

	t.Run("question_set_count_mismatch", func(t *testing.T) {
		path := writeReply(t, `[{"question":"Q1","answer":"A1"}]`)
		_, err := runNormalize(t, "--schema", "question-set", "--count", "2", path)
		require.Error(t, err)
		assert.True(t, strings.HasPrefix(err.Error(), "schema"), err.Error())
	})

	t.Run("evaluation", func(t *testing.T) {
		path := writeReply(t, "```json\n{\"ratings\": 8, \"feedback\": \"Solid.\"}\n```")
		out, err := runNormalize(t, "--schema", "evaluation", path)
		require.NoError(t, err)
		assert.Contains(t, out, "Solid.")
	})

	t.Run("no_array", func(t *testing.T) {
		path := writeReply(t, "I cannot help with that.")
		_, err := runNormalize(t, path)
		require.Error(t, err)
	})

	t.Run("bad_variant", func(t *testing.T) {
		path := writeReply(t, "[]")
		_, err := runNormalize(t, "--variant", "list", path)
		require.Error(t, err)
	})
}
