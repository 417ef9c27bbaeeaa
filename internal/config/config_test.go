package config

import (
	"os"
	"path/filepath"
	"testing"

	"github-project-sampler/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalConfig = `{
  "size_categories": {"small": [0, 1000], "medium": [1001, 10000], "large": [10001, 100000]}
}`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.ProjectsPerCategory)
	assert.Equal(t, []string{"java", "python"}, cfg.Languages)
	assert.Equal(t, 10, cfg.SearchParameters.MinStars)
	assert.Equal(t, "2015-01-01..2020-01-01", cfg.SearchParameters.CreatedRange)
	assert.Equal(t, "<2020-12-31", cfg.SearchParameters.LastPushed)
	assert.Equal(t, 2020, cfg.TargetYear)
	assert.Equal(t, "github_projects.json", cfg.OutputFile)
	assert.Equal(t, 2.0, cfg.PagePauseSeconds)
	assert.Equal(t, 50, cfg.MaxPages)
	assert.Equal(t, "github.projects", cfg.Notifications.NATSSubject)
	assert.Equal(t, []string{"small", "medium", "large"}, cfg.SizeCategories.Names())
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{
  "size_categories": {"small": [0, 500]},
  "projects_per_category": 5,
  "languages": ["Java", " Go "],
  "search_parameters": {"min_stars": 100},
  "target_year": 2019,
  "output_file": "out.json",
  "requests_per_second": 1.5,
  "page_pause_seconds": 0,
  "storage": {"postgres_dsn": "host=localhost"},
  "notifications": {"nats_url": "nats://127.0.0.1:4222"}
}`))
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.ProjectsPerCategory)
	assert.Equal(t, []string{"java", "go"}, cfg.Languages)
	assert.Equal(t, 100, cfg.SearchParameters.MinStars)
	// 未写的子键保持默认值
	assert.Equal(t, "<2020-12-31", cfg.SearchParameters.LastPushed)
	assert.Equal(t, 2019, cfg.TargetYear)
	assert.Equal(t, "out.json", cfg.OutputFile)
	assert.Equal(t, 1.5, cfg.RequestsPerSecond)
	assert.Equal(t, 0.0, cfg.PagePauseSeconds)
	assert.Equal(t, "host=localhost", cfg.Storage.PostgresDSN)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.Notifications.NATSURL)
	assert.Equal(t, "github.projects", cfg.Notifications.NATSSubject)

	md := cfg.Metadata("run-1")
	assert.Equal(t, "run-1", md.RunID)
	assert.Equal(t, 5, md.ProjectsPerCategory)
	assert.Equal(t, []string{"java", "go"}, md.Languages)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"JSON 格式错误", `{`, "failed to parse config"},
		{"缺少分档", `{}`, "size_categories is empty"},
		{"分档重叠", `{"size_categories": {"a": [0, 100], "b": [50, 200]}}`, "overlap"},
		{"配额为 0", `{"size_categories": {"a": [0, 1]}, "projects_per_category": 0}`, "projects_per_category"},
		{"语言为空", `{"size_categories": {"a": [0, 1]}, "languages": []}`, "languages is empty"},
		{"未知语言", `{"size_categories": {"a": [0, 1]}, "languages": ["brainfuck"]}`, "no file extensions"},
		{"重复语言", `{"size_categories": {"a": [0, 1]}, "languages": ["java", "JAVA"]}`, "duplicate language"},
		{"页数为 0", `{"size_categories": {"a": [0, 1]}, "max_pages": 0}`, "max_pages"},
		{"负的速率", `{"size_categories": {"a": [0, 1]}, "requests_per_second": -1}`, "must not be negative"},
		{"空输出文件", `{"size_categories": {"a": [0, 1]}, "output_file": ""}`, "output_file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, common.ErrCodeInvalidConfig, common.CodeOf(err))
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
