package filter

import (
	"context"
	"encoding/base64"
	"strings"
	"time"
	"unicode/utf8"

	"github-project-sampler/internal/common"
	"github-project-sampler/internal/domain"
	"github-project-sampler/internal/port"

	"go.uber.org/zap"
)

const (
	// DominanceThreshold 目标语言字节占比必须严格大于该值
	DominanceThreshold = 0.70

	// WalkBudget 统计一个仓库代码行数的总时长上限，超时记为 0 行
	WalkBudget = 30 * time.Second

	// FallbackBranch 取不到默认分支时使用
	FallbackBranch = "master"
)

// RepoFilter 实现了 port.CandidateFilter 接口。
// 已收录的仓库记在内存里，只在本次运行内去重。
type RepoFilter struct {
	inspector  port.Inspector
	categories domain.SizeCategories
	targetYear int

	processed map[string]struct{}

	logger     *zap.Logger
	nowFunc    func() time.Time
	walkBudget time.Duration
}

// Option 配置 RepoFilter
type Option func(*RepoFilter)

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(f *RepoFilter) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithClock 替换计时用的时钟 (测试用)
func WithClock(now func() time.Time) Option {
	return func(f *RepoFilter) {
		if now != nil {
			f.nowFunc = now
		}
	}
}

// NewRepoFilter 创建新的过滤器实例
func NewRepoFilter(inspector port.Inspector, categories domain.SizeCategories, targetYear int, opts ...Option) *RepoFilter {
	f := &RepoFilter{
		inspector:  inspector,
		categories: categories,
		targetYear: targetYear,
		processed:  make(map[string]struct{}),
		logger:     zap.NewNop(),
		nowFunc:    time.Now,
		walkBudget: WalkBudget,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Processed 仓库是否已经在本次运行中被收录
func (f *RepoFilter) Processed(fullName string) bool {
	_, ok := f.processed[fullName]
	return ok
}

// Evaluate 依次执行 去重 -> 最后提交时间 -> 语言占比 -> 代码行数分档，任何一步不满足就直接返回。
// 只有收录时才会记入已处理集合；context 结束时返回 VerdictIncomplete。
func (f *RepoFilter) Evaluate(ctx context.Context, hit domain.SearchHit, language string, quota domain.Quota) (*domain.Project, domain.Verdict) {
	log := f.logger.With(zap.String("repo", hit.FullName), zap.String("language", language))

	if f.Processed(hit.FullName) {
		log.Debug("[Filter] 已处理过，跳过")
		return nil, domain.VerdictDuplicate
	}

	commitDate, stale, err := f.Staleness(ctx, hit.FullName)
	if err != nil {
		return nil, domain.VerdictIncomplete
	}
	if !stale {
		log.Debug("[Filter] 最后提交不早于目标年份", zap.Time("last_commit", commitDate))
		return nil, domain.VerdictNotStale
	}

	share, dominant, err := f.Dominance(ctx, hit.FullName, language)
	if err != nil {
		return nil, domain.VerdictIncomplete
	}
	if !dominant {
		log.Debug("[Filter] 目标语言占比不足", zap.Float64("share", share))
		return nil, domain.VerdictNotDominant
	}

	lines, err := f.MeasureSize(ctx, hit.FullName, language)
	if err != nil {
		return nil, domain.VerdictIncomplete
	}
	category, ok := f.categories.Classify(lines)
	if !ok {
		log.Debug("[Filter] 代码行数不在任何分档内", zap.Int("lines", lines))
		return nil, domain.VerdictNoCategory
	}
	if quota.Remaining(category) <= 0 {
		log.Debug("[Filter] 分档已满", zap.String("category", category), zap.Int("lines", lines))
		return nil, domain.VerdictQuotaFull
	}

	contributors, err := f.inspector.ContributorCount(ctx, hit.FullName)
	if ctx.Err() != nil {
		return nil, domain.VerdictIncomplete
	}
	if err != nil {
		log.Warn("[Filter] 获取贡献者数量失败，按 0 记录", zap.Error(err))
		contributors = 0
	}

	lastCommit, err := f.inspector.LatestCommitDate(ctx, hit.FullName)
	if ctx.Err() != nil {
		return nil, domain.VerdictIncomplete
	}
	if err != nil {
		lastCommit = commitDate
	}

	project := &domain.Project{
		Name:              hit.Name,
		FullName:          hit.FullName,
		URL:               hit.HTMLURL,
		APIURL:            hit.APIURL,
		Description:       hit.Description,
		Stars:             hit.Stars,
		Forks:             hit.Forks,
		Language:          language,
		SizeCategory:      category,
		LinesOfCode:       lines,
		ContributorsCount: contributors,
		CreatedAt:         hit.CreatedAt,
		LastCommitDate:    lastCommit,
		IsArchived:        hit.Archived,
		IsFork:            hit.Fork,
	}
	f.processed[hit.FullName] = struct{}{}

	log.Debug("[Filter] 收录", zap.String("category", category), zap.Int("lines", lines))
	return project, domain.VerdictAccepted
}

// Staleness 取最后提交时间并判断是否早于目标年份。
// 取不到时间视为不满足；只有 context 结束时返回 error。
func (f *RepoFilter) Staleness(ctx context.Context, fullName string) (time.Time, bool, error) {
	date, err := f.inspector.LatestCommitDate(ctx, fullName)
	if ctx.Err() != nil {
		return time.Time{}, false, ctx.Err()
	}
	if err != nil {
		f.logger.Debug("[Filter] 获取最后提交时间失败", zap.String("repo", fullName), zap.Error(err))
		return time.Time{}, false, nil
	}
	return date, IsStale(date, f.targetYear), nil
}

// Dominance 计算目标语言的字节占比。取不到语言统计视为不满足。
func (f *RepoFilter) Dominance(ctx context.Context, fullName, language string) (float64, bool, error) {
	langs, err := f.inspector.Languages(ctx, fullName)
	if ctx.Err() != nil {
		return 0, false, ctx.Err()
	}
	if err != nil {
		f.logger.Debug("[Filter] 获取语言统计失败", zap.String("repo", fullName), zap.Error(err))
		return 0, false, nil
	}
	share := DominanceShare(langs, language)
	return share, share > DominanceThreshold, nil
}

// MeasureSize 统计默认分支下目标语言文件的总行数。
// 超过 walkBudget 时返回 0；单个文件取不到或解码失败按 0 行计。
func (f *RepoFilter) MeasureSize(ctx context.Context, fullName, language string) (int, error) {
	start := f.nowFunc()
	log := f.logger.With(zap.String("repo", fullName))

	branch, err := f.inspector.DefaultBranch(ctx, fullName)
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	if err != nil {
		branch = FallbackBranch
	}

	entries, err := f.inspector.Tree(ctx, fullName, branch)
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	if err != nil {
		log.Debug("[Filter] 获取文件树失败", zap.String("branch", branch), zap.Error(err))
		return 0, nil
	}

	total := 0
	for _, entry := range entries {
		if f.nowFunc().Sub(start) > f.walkBudget {
			log.Warn("[Filter] 统计代码行数超时，跳过", zap.Duration("budget", f.walkBudget))
			return 0, nil
		}
		if entry.Type != "blob" || !domain.MatchesLanguage(entry.Path, language) {
			continue
		}

		encoded, err := f.inspector.FileContent(ctx, fullName, entry.Path)
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		if err != nil {
			continue
		}

		text, err := DecodeContent(encoded)
		if err != nil {
			log.Warn("[Filter] 文件解码失败", zap.String("path", entry.Path), zap.Error(err))
			continue
		}
		total += CountLines(text)
	}
	return total, nil
}

// IsStale 最后提交的年份 (UTC) 早于目标年份；零值视为不满足
func IsStale(lastCommit time.Time, targetYear int) bool {
	if lastCommit.IsZero() {
		return false
	}
	return lastCommit.UTC().Year() < targetYear
}

// DominanceShare 返回目标语言字节数占总字节数的比例，总数为 0 时返回 0
func DominanceShare(languages map[string]int, language string) float64 {
	total, target := 0, 0
	for name, n := range languages {
		total += n
		if domain.SameLanguage(name, language) {
			target = n
		}
	}
	if total <= 0 {
		return 0
	}
	return float64(target) / float64(total)
}

// DecodeContent 解码 contents 接口返回的 base64 内容，要求结果是合法的 UTF-8
func DecodeContent(encoded string) (string, error) {
	// 接口返回的内容每 60 个字符换一次行
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '+', r == '/', r == '=':
			return r
		}
		return -1
	}, encoded)

	raw, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return "", common.WrapError(common.ErrCodeDecode, "invalid base64 content", err)
	}
	if !utf8.Valid(raw) {
		return "", common.NewError(common.ErrCodeDecode, "content is not valid UTF-8")
	}
	return string(raw), nil
}

// CountLines 统计行数：\n、\r\n、\r 以及其他 Unicode 行分隔符都算换行，末尾的换行不会多出一行
func CountLines(text string) int {
	n := 0
	open := false
	prevCR := false
	for _, r := range text {
		if r == '\n' && prevCR {
			prevCR = false
			continue
		}
		prevCR = r == '\r'
		if isLineBreak(r) {
			n++
			open = false
			continue
		}
		open = true
	}
	if open {
		n++
	}
	return n
}

func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', 0x1c, 0x1d, 0x1e, 0x85, 0x2028, 0x2029:
		return true
	}
	return false
}
