package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
)

// Unbounded 作为上界表示没有上限 (配置里写 null)
const Unbounded = math.MaxInt

// SizeCategory 是一个闭区间 [Min, Max] 的代码行数分档
type SizeCategory struct {
	Name string
	Min  int
	Max  int
}

// Contains 判断行数是否落在区间内
func (c SizeCategory) Contains(lines int) bool {
	return c.Min <= lines && lines <= c.Max
}

// SizeCategories 保持配置文件中的顺序
type SizeCategories []SizeCategory

// Names 返回所有分档名称
func (s SizeCategories) Names() []string {
	names := make([]string, 0, len(s))
	for _, c := range s {
		names = append(names, c.Name)
	}
	return names
}

// Classify 返回包含该行数的分档名称，没有命中时 ok 为 false
func (s SizeCategories) Classify(lines int) (string, bool) {
	for _, c := range s {
		if c.Contains(lines) {
			return c.Name, true
		}
	}
	return "", false
}

// Has 判断分档是否存在
func (s SizeCategories) Has(name string) bool {
	for _, c := range s {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Validate 拒绝空配置、重名、上下界颠倒以及区间重叠
func (s SizeCategories) Validate() error {
	if len(s) == 0 {
		return errors.New("size_categories is empty")
	}

	seen := make(map[string]bool, len(s))
	for _, c := range s {
		if c.Name == "" {
			return errors.New("size category with empty name")
		}
		if seen[c.Name] {
			return fmt.Errorf("duplicate size category %q", c.Name)
		}
		seen[c.Name] = true
		if c.Min < 0 {
			return fmt.Errorf("size category %q: min_lines must be >= 0", c.Name)
		}
		if c.Min > c.Max {
			return fmt.Errorf("size category %q: min_lines %d > max_lines %d", c.Name, c.Min, c.Max)
		}
	}

	sorted := make(SizeCategories, len(s))
	copy(sorted, s)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Min < sorted[j].Min })
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if cur.Min <= prev.Max {
			return fmt.Errorf("size categories %q and %q overlap", prev.Name, cur.Name)
		}
	}
	return nil
}

// UnmarshalJSON 解析 {"small": [0, 1000], "large": [1001, null]}，保留键的顺序
func (s *SizeCategories) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("size_categories must be an object")
	}

	var out SizeCategories
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := tok.(string)

		var bounds []*int
		if err := dec.Decode(&bounds); err != nil {
			return fmt.Errorf("size category %q: %w", name, err)
		}
		if len(bounds) != 2 || bounds[0] == nil {
			return fmt.Errorf("size category %q: expected [min_lines, max_lines]", name)
		}

		c := SizeCategory{Name: name, Min: *bounds[0], Max: Unbounded}
		if bounds[1] != nil {
			c.Max = *bounds[1]
		}
		out = append(out, c)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	*s = out
	return nil
}

// MarshalJSON 按原顺序输出对象形式
func (s SizeCategories) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		if c.Max == Unbounded {
			fmt.Fprintf(&buf, ":[%d,null]", c.Min)
		} else {
			fmt.Fprintf(&buf, ":[%d,%d]", c.Min, c.Max)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
