package repository

import (
	"context"

	"github-project-sampler/internal/domain"
	"github-project-sampler/internal/port"

	"go.uber.org/zap"
)

// MultiStore 先写主存储，再写各个镜像；镜像失败只记日志
type MultiStore struct {
	primary port.ProgressStore
	mirrors []port.ProgressStore
	logger  *zap.Logger
}

// NewMultiStore 组合主存储和镜像
func NewMultiStore(primary port.ProgressStore, logger *zap.Logger, mirrors ...port.ProgressStore) *MultiStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MultiStore{primary: primary, mirrors: mirrors, logger: logger}
}

func (m *MultiStore) Save(ctx context.Context, collection *domain.Collection, metadata domain.Metadata) error {
	if err := m.primary.Save(ctx, collection, metadata); err != nil {
		return err
	}
	for _, mirror := range m.mirrors {
		if err := mirror.Save(ctx, collection, metadata); err != nil {
			m.logger.Warn("写入镜像存储失败", zap.Error(err))
		}
	}
	return nil
}

// Load 只从主存储恢复
func (m *MultiStore) Load(ctx context.Context) (map[string]map[string][]domain.Project, error) {
	return m.primary.Load(ctx)
}
