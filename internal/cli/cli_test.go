package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"satyam-ai-go/internal/model"
	"satyam-ai-go/pkg/cache"
)

func writeConfig(t *testing.T) (configPath, cachePath string) {
	t.Helper()
	dir := t.TempDir()
	cachePath = filepath.Join(dir, "response_cache.json")
	configPath = filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf("cache:\n  enabled: true\n  backend: file\n  path: %q\n", cachePath)
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))
	return configPath, cachePath
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	return out.String()
}

func TestCacheGetAndList(t *testing.T) {
	configPath, cachePath := writeConfig(t)
	stored := model.AnswerResult{
		Answer:     "Section 37 defines...",
		Sources:    []string{"[Index: legal-index] [Source: ipc_act.txt] [Chunk: 4]"},
		Confidence: 92,
	}
	cache.New(&cache.FileStore{Path: cachePath}).Put(context.Background(), "Section 37", stored)

	out := run(t, "--config", configPath, "cache", "get", "  SECTION 37 ")
	assert.Contains(t, out, "Section 37 defines...")
	assert.Contains(t, out, "Confidence: 92 (verified database)")
	assert.Contains(t, out, "ipc_act.txt")

	out = run(t, "--config", configPath, "cache", "get", "section 302")
	assert.Contains(t, out, `No cached answer for "section 302".`)

	out = run(t, "--config", configPath, "cache", "list")
	assert.Contains(t, out, "Cached answers (1):")
	assert.Contains(t, out, "section 37  [confidence 92, 1 sources]")
}

func TestPrintItems(t *testing.T) {
	var buf bytes.Buffer
	printItems(&buf, "q", nil)
	assert.Contains(t, buf.String(), "No chunks retrieved")

	buf.Reset()
	printItems(&buf, "section 37", []model.RetrievedItem{{Context: "[[Source: ipc.pdf (Page 1)]]\ntext", Source: "[Index: legal-index] [Source: ipc.pdf] [Chunk: 1]", Rank: 0}})
	assert.Contains(t, buf.String(), "#1 [Index: legal-index] [Source: ipc.pdf] [Chunk: 1]")
}

func TestPrintResultFallback(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, model.AnswerResult{Answer: "general", Sources: []string{}, Confidence: 60})
	assert.Contains(t, buf.String(), "Confidence: 60 (general knowledge)")
}
