package github

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github-project-sampler/internal/common"
	"github-project-sampler/internal/domain"

	"github.com/google/go-github/v53/github"
)

// Fetcher 实现了 port.Inspector 接口：按仓库读取提交、语言、文件树、文件内容和贡献者
type Fetcher struct {
	client *Client
}

// NewFetcher 基于共享的 Client 创建 Fetcher
func NewFetcher(client *Client) *Fetcher {
	return &Fetcher{client: client}
}

// repoPath 拼出 repos/{owner}/{repo}/... 形式的相对路径，每段都做转义
func repoPath(fullName string, parts ...string) string {
	segs := []string{"repos"}
	for _, s := range strings.Split(fullName, "/") {
		segs = append(segs, url.PathEscape(s))
	}
	for _, p := range parts {
		for _, s := range strings.Split(p, "/") {
			segs = append(segs, url.PathEscape(s))
		}
	}
	return strings.Join(segs, "/")
}

// LatestCommitDate 返回默认分支最新一次提交的 committer 时间
func (f *Fetcher) LatestCommitDate(ctx context.Context, fullName string) (time.Time, error) {
	var commits []*github.RepositoryCommit
	err := f.client.Get(ctx, repoPath(fullName, "commits"), url.Values{"per_page": {"1"}}, &commits)
	if err != nil {
		return time.Time{}, err
	}
	if len(commits) == 0 {
		return time.Time{}, common.NewError(common.ErrCodeNotFound, fmt.Sprintf("%s has no commits", fullName))
	}

	date := commits[0].GetCommit().GetCommitter().GetDate().Time
	if date.IsZero() {
		return time.Time{}, common.NewError(common.ErrCodeNotFound, fmt.Sprintf("%s: commit without committer date", fullName))
	}
	return date, nil
}

// Languages 返回 语言 -> 字节数
func (f *Fetcher) Languages(ctx context.Context, fullName string) (map[string]int, error) {
	var langs map[string]int
	if err := f.client.Get(ctx, repoPath(fullName, "languages"), nil, &langs); err != nil {
		return nil, err
	}
	return langs, nil
}

// DefaultBranch 返回默认分支名
func (f *Fetcher) DefaultBranch(ctx context.Context, fullName string) (string, error) {
	var repo github.Repository
	if err := f.client.Get(ctx, repoPath(fullName), nil, &repo); err != nil {
		return "", err
	}
	if repo.GetDefaultBranch() == "" {
		return "", common.NewError(common.ErrCodeNotFound, fmt.Sprintf("%s has no default branch", fullName))
	}
	return repo.GetDefaultBranch(), nil
}

// Tree 递归列出 ref 下的全部文件
func (f *Fetcher) Tree(ctx context.Context, fullName, ref string) ([]domain.TreeEntry, error) {
	var tree github.Tree
	path := repoPath(fullName, "git", "trees") + "/" + url.PathEscape(ref)
	if err := f.client.Get(ctx, path, url.Values{"recursive": {"1"}}, &tree); err != nil {
		return nil, err
	}

	if tree.GetTruncated() {
		f.client.logger.Sugar().Warnf("%s 的文件树被截断，只统计返回的部分", fullName)
	}

	entries := make([]domain.TreeEntry, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		entries = append(entries, domain.TreeEntry{
			Path: e.GetPath(),
			Type: e.GetType(),
		})
	}
	return entries, nil
}

// FileContent 返回文件内容的 base64 编码 (未解码，可能带换行)
func (f *Fetcher) FileContent(ctx context.Context, fullName, path string) (string, error) {
	var content github.RepositoryContent
	if err := f.client.Get(ctx, repoPath(fullName, "contents", path), nil, &content); err != nil {
		return "", err
	}
	if content.Content == nil {
		return "", common.NewError(common.ErrCodeNotFound, fmt.Sprintf("%s/%s has no content", fullName, path))
	}
	return *content.Content, nil
}

// ContributorCount 返回第一页 (最多 100 个) 贡献者的数量
func (f *Fetcher) ContributorCount(ctx context.Context, fullName string) (int, error) {
	var contributors []*github.Contributor
	err := f.client.Get(ctx, repoPath(fullName, "contributors"), url.Values{"per_page": {"100"}}, &contributors)
	if err != nil {
		return 0, err
	}
	return len(contributors), nil
}
