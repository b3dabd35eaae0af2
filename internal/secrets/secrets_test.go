// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T) string
		want   Set
		errMsg string
	}{
		{
			name: "reads key files and trims whitespace",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "zhipu-api-key", "  zk_abc123  \n")
				writeFile(t, dir, "dashscope-api-key", "sk_xyz789")
				writeFile(t, dir, "feishu-webhook", "https://open.feishu.cn/hook/abc\n")
				return dir
			},
			want: Set{
				"zhipu-api-key":     "zk_abc123",
				"dashscope-api-key": "sk_xyz789",
				"feishu-webhook":    "https://open.feishu.cn/hook/abc",
			},
		},
		{
			name: "returns empty set for nonexistent directory",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "does-not-exist")
			},
			want: Set{},
		},
		{
			name: "skips empty files",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "openai-api-key", "valid-key")
				writeFile(t, dir, "empty-key", "")
				writeFile(t, dir, "whitespace-only", "   \n\t  ")
				return dir
			},
			want: Set{
				"openai-api-key": "valid-key",
			},
		},
		{
			name: "skips dotfiles and subdirectories",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, ".gitkeep", "")
				writeFile(t, dir, ".hidden-key", "secret")
				writeFile(t, dir, "doubao-api-key", "db_real")
				require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))
				return dir
			},
			want: Set{
				"doubao-api-key": "db_real",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := tt.setup(t)
			got, err := Load(dir)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadUnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read files without permission bits")
	}
	dir := t.TempDir()
	writeFile(t, dir, "good-key", "value123")

	badPath := filepath.Join(dir, "bad-key")
	require.NoError(t, os.WriteFile(badPath, []byte("secret"), 0o000))
	t.Cleanup(func() { os.Chmod(badPath, 0o644) })

	got, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "value123", got["good-key"])
	_, hasBad := got["bad-key"]
	assert.False(t, hasBad, "unreadable file should not appear in result")
}

func TestSetGet(t *testing.T) {
	s := Set{"zhipu-api-key": "from-file"}

	t.Setenv("DAILY_PAPERS_TEST_ZHIPU", "")
	assert.Equal(t, "from-file", s.Get("DAILY_PAPERS_TEST_ZHIPU", "zhipu-api-key"))

	t.Setenv("DAILY_PAPERS_TEST_ZHIPU", "from-env")
	assert.Equal(t, "from-env", s.Get("DAILY_PAPERS_TEST_ZHIPU", "zhipu-api-key"))

	assert.Equal(t, "from-file", s.Get("", "zhipu-api-key"))
	assert.Empty(t, s.Get("", "missing"))
}

func TestSetKeys(t *testing.T) {
	s := Set{"b": "2", "a": "1"}
	assert.Equal(t, []string{"a", "b"}, s.Keys())
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}
