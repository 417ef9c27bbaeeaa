package domain

import "time"

// Project 代表一个被采样收录的开源项目，写入后不再修改
type Project struct {
	// 基础信息 (来自搜索结果)
	Name        string `json:"name"`
	FullName    string `json:"full_name" gorm:"primaryKey"` // 例如 "spring-projects/spring-boot"
	URL         string `json:"url"`
	APIURL      string `json:"api_url"`
	Description string `json:"description" gorm:"type:text"`
	Stars       int    `json:"stars"`
	Forks       int    `json:"forks"`

	// 分类
	Language     string `json:"language" gorm:"primaryKey"` // 配置里的目标语言 (小写)
	SizeCategory string `json:"size_category" gorm:"index"`
	LinesOfCode  int    `json:"lines_of_code"`

	// 来源信息
	ContributorsCount int       `json:"contributors_count"`
	CreatedAt         time.Time `json:"created_at"`
	LastCommitDate    time.Time `json:"last_commit_date"`
	IsArchived        bool      `json:"is_archived"`
	IsFork            bool      `json:"is_fork"`
}

// SearchHit 是搜索接口返回的一条候选仓库
type SearchHit struct {
	ID          int64
	Name        string
	FullName    string
	HTMLURL     string
	APIURL      string
	Description string
	Stars       int
	Forks       int
	Language    string
	CreatedAt   time.Time
	Archived    bool
	Fork        bool
}

// TreeEntry 是仓库文件树里的一项，Type 为 "blob" 或 "tree"
type TreeEntry struct {
	Path string
	Type string
}

// Metadata 是输出文件里的运行信息
type Metadata struct {
	RunID               string         `json:"run_id"`
	Timestamp           time.Time      `json:"timestamp"`
	ProjectsPerCategory int            `json:"projects_per_category"`
	SizeCategories      SizeCategories `json:"size_categories"`
	Languages           []string       `json:"languages"`
}

// Verdict 是候选仓库过滤的结果
type Verdict string

const (
	VerdictAccepted    Verdict = "accepted"
	VerdictDuplicate   Verdict = "duplicate"
	VerdictNotStale    Verdict = "not_stale"
	VerdictNotDominant Verdict = "not_dominant"
	VerdictNoCategory  Verdict = "no_category"
	VerdictQuotaFull   Verdict = "quota_full"
	VerdictIncomplete  Verdict = "incomplete"
)
