package port

import (
	"context"
	"time"

	"github-project-sampler/internal/domain"
)

// Scouter (侦察兵): 按语言分页搜索候选仓库
type Scouter interface {
	// 比如：Scout(ctx, "java", 1)，返回按 star 倒序的一页结果
	Scout(ctx context.Context, language string, page int) ([]domain.SearchHit, error)
}

// Inspector (勘探员): 读取单个仓库的提交、语言、文件树等信息
// 所有方法在资源不存在或重试耗尽时返回 common.IsAbsent 为 true 的错误
type Inspector interface {
	LatestCommitDate(ctx context.Context, fullName string) (time.Time, error)
	Languages(ctx context.Context, fullName string) (map[string]int, error)
	DefaultBranch(ctx context.Context, fullName string) (string, error)
	Tree(ctx context.Context, fullName, ref string) ([]domain.TreeEntry, error)
	// FileContent 返回 base64 编码的内容
	FileContent(ctx context.Context, fullName, path string) (string, error)
	ContributorCount(ctx context.Context, fullName string) (int, error)
}

// CandidateFilter (鉴定师): 决定一个候选仓库是否收录
type CandidateFilter interface {
	// 收录时返回组装好的项目和 VerdictAccepted
	Evaluate(ctx context.Context, hit domain.SearchHit, language string, quota domain.Quota) (*domain.Project, domain.Verdict)
}

// Notifier (信使): 每收录一个项目推送一次 (飞书/NATS)
type Notifier interface {
	Notify(ctx context.Context, project *domain.Project) error
}

// ProgressStore (仓库管理员): 保存和恢复收集进度
type ProgressStore interface {
	// Save 用当前完整的收集结果覆盖之前保存的内容
	Save(ctx context.Context, collection *domain.Collection, metadata domain.Metadata) error

	// Load 返回之前保存的 语言 -> 分档 -> 项目，没有时返回空
	Load(ctx context.Context) (map[string]map[string][]domain.Project, error)
}
