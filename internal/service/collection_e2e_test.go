package service_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github-project-sampler/internal/adapter/filter"
	"github-project-sampler/internal/adapter/github"
	"github-project-sampler/internal/adapter/repository"
	"github-project-sampler/internal/config"
	"github-project-sampler/internal/domain"
	"github-project-sampler/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGitHub 模拟一次完整收集用到的全部接口，只有一个候选仓库
func fakeGitHub(t *testing.T) *httptest.Server {
	t.Helper()
	reset := strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10)
	mux := http.NewServeMux()

	handle := func(pattern, body string) {
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-RateLimit-Limit", "5000")
			w.Header().Set("X-RateLimit-Remaining", "4999")
			w.Header().Set("X-RateLimit-Reset", reset)
			w.Header().Set("Content-Type", "application/json")
			if pattern == "/search/repositories" && r.URL.Query().Get("page") != "1" {
				w.Write([]byte(`{"total_count": 1, "items": []}`))
				return
			}
			w.Write([]byte(body))
		})
	}

	handle("/search/repositories", `{"total_count": 1, "items": [{
		"id": 1, "name": "demo", "full_name": "octo/demo",
		"html_url": "https://github.com/octo/demo", "url": "https://api.github.com/repos/octo/demo",
		"description": "demo project", "stargazers_count": 50, "forks_count": 2,
		"language": "Java", "created_at": "2016-01-01T00:00:00Z"
	}]}`)
	handle("/repos/octo/demo/commits", `[{"sha": "abc", "commit": {"committer": {"date": "2018-03-04T00:00:00Z"}}}]`)
	handle("/repos/octo/demo/languages", `{"Java": 900, "Shell": 100}`)
	handle("/repos/octo/demo", `{"full_name": "octo/demo", "default_branch": "main"}`)
	handle("/repos/octo/demo/git/trees/main", `{"sha": "t1", "truncated": false, "tree": [
		{"path": "src", "type": "tree"},
		{"path": "src/App.java", "type": "blob"},
		{"path": "README.md", "type": "blob"}
	]}`)
	handle("/repos/octo/demo/contents/src/App.java",
		`{"encoding": "base64", "content": "`+base64.StdEncoding.EncodeToString([]byte("a\nb\nc\n"))+`"}`)
	handle("/repos/octo/demo/contributors", `[{"login": "a"}, {"login": "b"}]`)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestCollectionService_EndToEnd(t *testing.T) {
	server := fakeGitHub(t)

	cfg := config.Default()
	cfg.SizeCategories = domain.SizeCategories{
		{Name: "small", Min: 0, Max: 1000},
		{Name: "large", Min: 1001, Max: domain.Unbounded},
	}
	cfg.ProjectsPerCategory = 1
	cfg.Languages = []string{"java"}
	cfg.OutputFile = filepath.Join(t.TempDir(), "github_projects.json")

	client := github.NewClient("test-token", github.WithBaseURL(server.URL))
	scouter := github.NewScouter(client, github.SearchQuery{
		MinStars:     cfg.SearchParameters.MinStars,
		CreatedRange: cfg.SearchParameters.CreatedRange,
		LastPushed:   cfg.SearchParameters.LastPushed,
	})
	repoFilter := filter.NewRepoFilter(github.NewFetcher(client), cfg.SizeCategories, cfg.TargetYear)
	store := repository.NewJSONStore(cfg.OutputFile, nil)

	var pauses []time.Duration
	svc := service.NewCollectionService(cfg, "run-e2e", scouter, repoFilter, store,
		service.WithClock(time.Now, func(ctx context.Context, d time.Duration) error {
			pauses = append(pauses, d)
			return nil
		}),
	)

	summary, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Accepted)
	assert.Equal(t, 1, summary.Verdicts[domain.VerdictAccepted])
	assert.Equal(t, 1, summary.Counts["java"]["small"])
	assert.Equal(t, 0, summary.Counts["java"]["large"])
	assert.True(t, repoFilter.Processed("octo/demo"))
	assert.Len(t, pauses, 1, "第二页为空，只在第一页后暂停")

	data, err := os.ReadFile(cfg.OutputFile)
	require.NoError(t, err)
	var out struct {
		Metadata domain.Metadata                        `json:"metadata"`
		Projects map[string]map[string][]domain.Project `json:"projects"`
	}
	require.NoError(t, json.Unmarshal(data, &out))

	assert.Equal(t, "run-e2e", out.Metadata.RunID)
	require.Len(t, out.Projects["java"]["small"], 1)
	assert.Empty(t, out.Projects["java"]["large"])

	p := out.Projects["java"]["small"][0]
	assert.Equal(t, "octo/demo", p.FullName)
	assert.Equal(t, "java", p.Language)
	assert.Equal(t, "small", p.SizeCategory)
	assert.Equal(t, 3, p.LinesOfCode)
	assert.Equal(t, 2, p.ContributorsCount)
	assert.Equal(t, 50, p.Stars)
	assert.Equal(t, time.Date(2018, 3, 4, 0, 0, 0, 0, time.UTC), p.LastCommitDate.UTC())
}

func TestCollectionService_EndToEnd_Resume(t *testing.T) {
	server := fakeGitHub(t)

	cfg := config.Default()
	cfg.SizeCategories = domain.SizeCategories{{Name: "small", Min: 0, Max: 1000}}
	cfg.ProjectsPerCategory = 1
	cfg.Languages = []string{"java"}
	cfg.OutputFile = filepath.Join(t.TempDir(), "github_projects.json")
	noPause := func(ctx context.Context, d time.Duration) error { return nil }

	run := func(runID string) *service.Summary {
		client := github.NewClient("test-token", github.WithBaseURL(server.URL))
		svc := service.NewCollectionService(cfg, runID,
			github.NewScouter(client, github.SearchQuery{MinStars: 10}),
			filter.NewRepoFilter(github.NewFetcher(client), cfg.SizeCategories, cfg.TargetYear),
			repository.NewJSONStore(cfg.OutputFile, nil),
			service.WithClock(time.Now, noPause),
		)
		summary, err := svc.Run(context.Background())
		require.NoError(t, err)
		return summary
	}

	first := run("run-1")
	assert.Equal(t, 1, first.Accepted)

	// 第二次运行从文件恢复，分档已满，不再搜索
	second := run("run-2")
	assert.Equal(t, 0, second.Evaluated)
	assert.Equal(t, 1, second.Total)
}
