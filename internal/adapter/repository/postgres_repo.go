package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github-project-sampler/internal/common"
	"github-project-sampler/internal/domain"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// runRecord 记录每次保存时的运行信息
type runRecord struct {
	RunID               string `gorm:"primaryKey"`
	Timestamp           time.Time
	ProjectsPerCategory int
	SizeCategories      string `gorm:"type:text"`
	Languages           string `gorm:"type:text"`
	ProjectCount        int
}

func (runRecord) TableName() string {
	return "runs"
}

// PostgresRepo 实现了 port.ProgressStore 接口，作为 JSON 文件的镜像
type PostgresRepo struct {
	db *gorm.DB
}

// NewPostgresRepo 初始化数据库连接并自动迁移表结构
func NewPostgresRepo(dsn string) (*PostgresRepo, error) {
	// 1. 连接数据库
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, common.WrapError(common.ErrCodeStorage, "连接数据库失败", err)
	}

	// 2. 自动迁移 projects 和 runs 两张表
	if err := db.AutoMigrate(&domain.Project{}, &runRecord{}); err != nil {
		return nil, common.WrapError(common.ErrCodeStorage, "数据库迁移失败", err)
	}

	return &PostgresRepo{db: db}, nil
}

// Save 在一个事务里用当前结果替换 projects 表，并写入本次运行信息
func (r *PostgresRepo) Save(ctx context.Context, collection *domain.Collection, metadata domain.Metadata) error {
	categories, err := json.Marshal(metadata.SizeCategories)
	if err != nil {
		return common.WrapError(common.ErrCodeStorage, "failed to encode size categories", err)
	}
	projects := collection.All()
	run := runRecord{
		RunID:               metadata.RunID,
		Timestamp:           metadata.Timestamp,
		ProjectsPerCategory: metadata.ProjectsPerCategory,
		SizeCategories:      string(categories),
		Languages:           strings.Join(metadata.Languages, ","),
		ProjectCount:        len(projects),
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// DELETE FROM projects
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&domain.Project{}).Error; err != nil {
			return err
		}
		if len(projects) > 0 {
			if err := tx.CreateInBatches(projects, 100).Error; err != nil {
				return err
			}
		}
		// INSERT ... ON CONFLICT (run_id) DO UPDATE
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&run).Error
	})
	if err != nil {
		return common.WrapError(common.ErrCodeStorage, fmt.Sprintf("保存 %d 个项目失败", len(projects)), err)
	}
	return nil
}

// Load 读出全部项目，按 语言 -> 分档 分组
func (r *PostgresRepo) Load(ctx context.Context) (map[string]map[string][]domain.Project, error) {
	var projects []domain.Project
	err := r.db.WithContext(ctx).
		Order("language, size_category, stars DESC").
		Find(&projects).Error
	if err != nil {
		return nil, common.WrapError(common.ErrCodeStorage, "读取项目失败", err)
	}

	out := make(map[string]map[string][]domain.Project)
	for _, p := range projects {
		if out[p.Language] == nil {
			out[p.Language] = make(map[string][]domain.Project)
		}
		out[p.Language][p.SizeCategory] = append(out[p.Language][p.SizeCategory], p)
	}
	return out, nil
}

// Close 关闭底层连接
func (r *PostgresRepo) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
