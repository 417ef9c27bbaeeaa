package github

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github-project-sampler/internal/domain"

	"github.com/google/go-github/v53/github"
)

// SearchPerPage 每页搜索结果数 (GitHub 上限)
const SearchPerPage = 100

// SearchQuery 是搜索时除语言外的固定条件
type SearchQuery struct {
	MinStars     int
	CreatedRange string
	LastPushed   string
}

// Build 拼出 q 参数
func (q SearchQuery) Build(language string) string {
	return fmt.Sprintf("language:%s stars:>=%d created:%s pushed:%s fork:false archived:false",
		language, q.MinStars, q.CreatedRange, q.LastPushed)
}

// Scouter 实现了 port.Scouter 接口
type Scouter struct {
	client *Client
	query  SearchQuery
}

// NewScouter 基于共享的 Client 创建 Scouter
func NewScouter(client *Client, query SearchQuery) *Scouter {
	return &Scouter{client: client, query: query}
}

// Scout 按 star 倒序取某个语言的第 page 页搜索结果
func (s *Scouter) Scout(ctx context.Context, language string, page int) ([]domain.SearchHit, error) {
	params := url.Values{
		"q":        {s.query.Build(language)},
		"sort":     {"stars"},
		"order":    {"desc"},
		"per_page": {strconv.Itoa(SearchPerPage)},
		"page":     {strconv.Itoa(page)},
	}

	var result github.RepositoriesSearchResult
	if err := s.client.Get(ctx, "search/repositories", params, &result); err != nil {
		return nil, err
	}

	// 将 GitHub 的数据结构转换为我们的 Domain 实体
	hits := make([]domain.SearchHit, 0, len(result.Repositories))
	for _, item := range result.Repositories {
		hits = append(hits, domain.SearchHit{
			ID:          item.GetID(),
			Name:        item.GetName(),
			FullName:    item.GetFullName(),
			HTMLURL:     item.GetHTMLURL(),
			APIURL:      item.GetURL(),
			Description: item.GetDescription(),
			Stars:       item.GetStargazersCount(),
			Forks:       item.GetForksCount(),
			Language:    item.GetLanguage(),
			CreatedAt:   item.GetCreatedAt().Time,
			Archived:    item.GetArchived(),
			Fork:        item.GetFork(),
		})
	}
	return hits, nil
}
