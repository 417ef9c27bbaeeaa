package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github-project-sampler/internal/common"
	"github-project-sampler/internal/domain"

	"go.uber.org/zap"
)

// JSONStore 实现了 port.ProgressStore 接口，把完整结果写到一个 JSON 文件
type JSONStore struct {
	path   string
	logger *zap.Logger
}

// progressFile 是输出文件的结构：{"metadata": {...}, "projects": {...}}
type progressFile struct {
	Metadata domain.Metadata    `json:"metadata"`
	Projects *domain.Collection `json:"projects"`
}

// NewJSONStore 创建文件存储，logger 可以为 nil
func NewJSONStore(path string, logger *zap.Logger) *JSONStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JSONStore{path: path, logger: logger}
}

// Path 返回输出文件路径
func (s *JSONStore) Path() string {
	return s.path
}

// Save 先写同目录下的临时文件再 rename 覆盖，写到一半崩溃不会损坏旧文件
func (s *JSONStore) Save(ctx context.Context, collection *domain.Collection, metadata domain.Metadata) error {
	data, err := json.MarshalIndent(progressFile{Metadata: metadata, Projects: collection}, "", "  ")
	if err != nil {
		return common.WrapError(common.ErrCodeStorage, "failed to encode progress", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return common.WrapError(common.ErrCodeStorage, "failed to create temp file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return common.WrapError(common.ErrCodeStorage, "failed to write temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return common.WrapError(common.ErrCodeStorage, "failed to sync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return common.WrapError(common.ErrCodeStorage, "failed to close temp file", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return common.WrapError(common.ErrCodeStorage, fmt.Sprintf("failed to replace %s", s.path), err)
	}

	s.logger.Debug("进度已保存", zap.String("file", s.path), zap.Int("projects", collection.Total()))
	return nil
}

// Load 读取之前保存的结果；文件不存在时返回空
func (s *JSONStore) Load(ctx context.Context) (map[string]map[string][]domain.Project, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]map[string][]domain.Project{}, nil
		}
		return nil, common.WrapError(common.ErrCodeStorage, "failed to read progress file", err)
	}

	var saved struct {
		Projects map[string]map[string][]domain.Project `json:"projects"`
	}
	if err := json.Unmarshal(data, &saved); err != nil {
		return nil, common.WrapError(common.ErrCodeStorage, fmt.Sprintf("failed to decode %s", s.path), err)
	}
	if saved.Projects == nil {
		saved.Projects = map[string]map[string][]domain.Project{}
	}
	return saved.Projects, nil
}
