package domain

import (
	"fmt"
	"strings"
)

// Quota 记录一个语言下每个分档还需要收集的数量，永远不会小于 0
type Quota struct {
	order     []string
	remaining map[string]int
}

// NewQuota 以每档目标数量减去已有数量初始化
func NewQuota(categories SizeCategories, perCategory int, current func(category string) int) Quota {
	q := Quota{
		order:     categories.Names(),
		remaining: make(map[string]int, len(categories)),
	}
	for _, name := range q.order {
		have := 0
		if current != nil {
			have = current(name)
		}
		q.remaining[name] = max(0, perCategory-have)
	}
	return q
}

// Remaining 返回分档剩余名额，未知分档为 0
func (q Quota) Remaining(category string) int {
	return q.remaining[category]
}

// Decrement 消耗一个名额；已经为 0 或未知分档时返回 false
func (q Quota) Decrement(category string) bool {
	n, ok := q.remaining[category]
	if !ok || n <= 0 {
		return false
	}
	q.remaining[category] = n - 1
	return true
}

// AllFilled 所有分档都已满
func (q Quota) AllFilled() bool {
	for _, n := range q.remaining {
		if n > 0 {
			return false
		}
	}
	return true
}

// Snapshot 返回剩余名额的拷贝
func (q Quota) Snapshot() map[string]int {
	out := make(map[string]int, len(q.remaining))
	for k, v := range q.remaining {
		out[k] = v
	}
	return out
}

func (q Quota) String() string {
	parts := make([]string, 0, len(q.order))
	for _, name := range q.order {
		parts = append(parts, fmt.Sprintf("%s:%d", name, q.remaining[name]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}
