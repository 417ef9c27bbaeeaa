package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnknownBucket 访问了未配置的语言或分档
	ErrUnknownBucket = errors.New("unknown language or size category")
	// ErrDuplicateProject 同一语言下已收录该仓库
	ErrDuplicateProject = errors.New("project already collected")
)

// Collection 是 语言 -> 分档 -> 项目列表，按配置预先建好所有键
type Collection struct {
	languages  []string
	categories SizeCategories
	buckets    map[string]map[string][]Project
}

// NewCollection 为每个语言和分档建好空列表
func NewCollection(languages []string, categories SizeCategories) *Collection {
	c := &Collection{
		languages:  append([]string(nil), languages...),
		categories: append(SizeCategories(nil), categories...),
		buckets:    make(map[string]map[string][]Project, len(languages)),
	}
	for _, lang := range languages {
		byCategory := make(map[string][]Project, len(categories))
		for _, cat := range categories {
			byCategory[cat.Name] = []Project{}
		}
		c.buckets[lang] = byCategory
	}
	return c
}

func (c *Collection) bucket(language, category string) ([]Project, error) {
	byCategory, ok := c.buckets[language]
	if !ok {
		return nil, fmt.Errorf("%w: language %q", ErrUnknownBucket, language)
	}
	projects, ok := byCategory[category]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownBucket, language, category)
	}
	return projects, nil
}

// Add 追加一个项目到 project.Language / project.SizeCategory
func (c *Collection) Add(p Project) error {
	projects, err := c.bucket(p.Language, p.SizeCategory)
	if err != nil {
		return err
	}
	if c.Contains(p.Language, p.FullName) {
		return fmt.Errorf("%w: %s", ErrDuplicateProject, p.FullName)
	}
	c.buckets[p.Language][p.SizeCategory] = append(projects, p)
	return nil
}

// Projects 返回某个桶的项目 (拷贝)
func (c *Collection) Projects(language, category string) ([]Project, error) {
	projects, err := c.bucket(language, category)
	if err != nil {
		return nil, err
	}
	out := make([]Project, len(projects))
	copy(out, projects)
	return out, nil
}

// Count 返回某个桶的项目数量
func (c *Collection) Count(language, category string) (int, error) {
	projects, err := c.bucket(language, category)
	if err != nil {
		return 0, err
	}
	return len(projects), nil
}

// Contains 判断某语言下是否已经收录该仓库
func (c *Collection) Contains(language, fullName string) bool {
	for _, projects := range c.buckets[language] {
		for _, p := range projects {
			if p.FullName == fullName {
				return true
			}
		}
	}
	return false
}

// Quota 根据已收录数量计算某语言的剩余名额
func (c *Collection) Quota(language string, perCategory int) (Quota, error) {
	byCategory, ok := c.buckets[language]
	if !ok {
		return Quota{}, fmt.Errorf("%w: language %q", ErrUnknownBucket, language)
	}
	return NewQuota(c.categories, perCategory, func(category string) int {
		return len(byCategory[category])
	}), nil
}

// Total 返回所有项目数量
func (c *Collection) Total() int {
	total := 0
	for _, byCategory := range c.buckets {
		for _, projects := range byCategory {
			total += len(projects)
		}
	}
	return total
}

// Languages 返回配置的语言顺序
func (c *Collection) Languages() []string {
	return append([]string(nil), c.languages...)
}

// Categories 返回配置的分档
func (c *Collection) Categories() SizeCategories {
	return append(SizeCategories(nil), c.categories...)
}

// All 按语言、分档顺序返回全部项目
func (c *Collection) All() []Project {
	var out []Project
	for _, lang := range c.languages {
		for _, cat := range c.categories {
			out = append(out, c.buckets[lang][cat.Name]...)
		}
	}
	return out
}

// Merge 导入之前保存的结果；未配置的桶与重复项目被跳过并计数
func (c *Collection) Merge(saved map[string]map[string][]Project) (skipped int) {
	for lang, byCategory := range saved {
		for cat, projects := range byCategory {
			for _, p := range projects {
				p.Language = lang
				p.SizeCategory = cat
				if err := c.Add(p); err != nil {
					skipped++
				}
			}
		}
	}
	return skipped
}

// MarshalJSON 按配置顺序输出 {"java": {"small": [...]}}
func (c *Collection) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, lang := range c.languages {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(lang)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteString(":{")
		for j, cat := range c.categories {
			if j > 0 {
				buf.WriteByte(',')
			}
			catKey, err := json.Marshal(cat.Name)
			if err != nil {
				return nil, err
			}
			list, err := json.Marshal(c.buckets[lang][cat.Name])
			if err != nil {
				return nil, err
			}
			buf.Write(catKey)
			buf.WriteByte(':')
			buf.Write(list)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
