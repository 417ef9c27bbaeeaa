package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github-project-sampler/internal/common"
	"github-project-sampler/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupMockDB 创建一个模拟的数据库连接
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	// 创建 SQL mock
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	// 创建 GORM 数据库实例，禁用日志以减少输出
	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open gorm db: %v", err)
	}

	cleanup := func() {
		db.Close()
	}

	return gormDB, mock, cleanup
}

func testCategories() domain.SizeCategories {
	return domain.SizeCategories{
		{Name: "small", Min: 0, Max: 1000},
		{Name: "large", Min: 1001, Max: domain.Unbounded},
	}
}

func testMetadata() domain.Metadata {
	return domain.Metadata{
		RunID:               "run-1",
		Timestamp:           time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		ProjectsPerCategory: 30,
		SizeCategories:      testCategories(),
		Languages:           []string{"java", "python"},
	}
}

func testCollection(t *testing.T, projects ...domain.Project) *domain.Collection {
	t.Helper()
	c := domain.NewCollection([]string{"java", "python"}, testCategories())
	for _, p := range projects {
		require.NoError(t, c.Add(p))
	}
	return c
}

func testProject(fullName, language, category string, lines int) domain.Project {
	return domain.Project{
		Name:              fullName,
		FullName:          fullName,
		URL:               "https://github.com/" + fullName,
		APIURL:            "https://api.github.com/repos/" + fullName,
		Description:       "demo",
		Stars:             100,
		Forks:             3,
		Language:          language,
		SizeCategory:      category,
		LinesOfCode:       lines,
		ContributorsCount: 4,
		CreatedAt:         time.Date(2016, 3, 1, 0, 0, 0, 0, time.UTC),
		LastCommitDate:    time.Date(2018, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestPostgresRepo_Save(t *testing.T) {
	tests := []struct {
		name        string
		collection  func(t *testing.T) *domain.Collection
		setupMock   func(sqlmock.Sqlmock)
		expectError bool
	}{
		{
			name: "替换全部项目并写入运行信息",
			collection: func(t *testing.T) *domain.Collection {
				return testCollection(t,
					testProject("octo/a", "java", "small", 500),
					testProject("octo/b", "python", "large", 5000),
				)
			},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "projects"`)).
					WillReturnResult(sqlmock.NewResult(0, 3))
				mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "projects"`)).
					WillReturnResult(sqlmock.NewResult(0, 2))
				mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "runs"`)).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
		},
		{
			name: "空结果不插入项目",
			collection: func(t *testing.T) *domain.Collection {
				return testCollection(t)
			},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "projects"`)).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "runs"`)).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
		},
		{
			name: "插入失败时回滚",
			collection: func(t *testing.T) *domain.Collection {
				return testCollection(t, testProject("octo/a", "java", "small", 500))
			},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "projects"`)).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "projects"`)).
					WillReturnError(errors.New("connection reset"))
				mock.ExpectRollback()
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gormDB, mock, cleanup := setupMockDB(t)
			defer cleanup()

			tt.setupMock(mock)

			repo := &PostgresRepo{db: gormDB}
			err := repo.Save(context.Background(), tt.collection(t), testMetadata())

			if tt.expectError {
				assert.Error(t, err)
				assert.Equal(t, common.ErrCodeStorage, common.CodeOf(err))
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresRepo_Load(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	created := time.Date(2016, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"name", "full_name", "url", "api_url", "description", "stars", "forks",
		"language", "size_category", "lines_of_code", "contributors_count",
		"created_at", "last_commit_date", "is_archived", "is_fork",
	}).
		AddRow("a", "octo/a", "https://github.com/octo/a", "", "", 200, 1, "java", "small", 300, 2, created, created, false, false).
		AddRow("b", "octo/b", "https://github.com/octo/b", "", "", 100, 1, "java", "small", 400, 2, created, created, false, false).
		AddRow("c", "octo/c", "https://github.com/octo/c", "", "", 50, 1, "python", "large", 9000, 2, created, created, false, false)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "projects" ORDER BY language, size_category, stars DESC`)).
		WillReturnRows(rows)

	repo := &PostgresRepo{db: gormDB}
	saved, err := repo.Load(context.Background())

	require.NoError(t, err)
	require.Len(t, saved["java"]["small"], 2)
	assert.Equal(t, "octo/a", saved["java"]["small"][0].FullName)
	assert.Equal(t, 300, saved["java"]["small"][0].LinesOfCode)
	assert.Equal(t, "octo/c", saved["python"]["large"][0].FullName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_Load_Error(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "projects"`)).
		WillReturnError(errors.New("relation does not exist"))

	repo := &PostgresRepo{db: gormDB}
	_, err := repo.Load(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "relation does not exist")
}
