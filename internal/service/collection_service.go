package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github-project-sampler/internal/common"
	"github-project-sampler/internal/config"
	"github-project-sampler/internal/domain"
	"github-project-sampler/internal/port"

	"go.uber.org/zap"
)

// Summary 是一次收集运行的结果
type Summary struct {
	RunID       string
	Evaluated   int
	Accepted    int
	Total       int
	Verdicts    map[domain.Verdict]int
	Counts      map[string]map[string]int // 语言 -> 分档 -> 数量
	Interrupted bool
}

// CollectionService 逐个语言翻页搜索、过滤候选仓库，直到每个分档收满或翻完页数
type CollectionService struct {
	scouter   port.Scouter
	filter    port.CandidateFilter
	store     port.ProgressStore
	notifiers []port.Notifier

	cfg   *config.Config
	runID string

	logger *zap.Logger
	sleep  common.SleepFunc
	now    func() time.Time
}

// Option 配置 CollectionService
type Option func(*CollectionService)

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(s *CollectionService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNotifiers 每收录一个项目调用一次
func WithNotifiers(notifiers ...port.Notifier) Option {
	return func(s *CollectionService) {
		s.notifiers = append(s.notifiers, notifiers...)
	}
}

// WithClock 替换时钟和等待函数 (测试用)
func WithClock(now func() time.Time, sleep common.SleepFunc) Option {
	return func(s *CollectionService) {
		if now != nil {
			s.now = now
		}
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// NewCollectionService 创建新的收集服务
func NewCollectionService(
	cfg *config.Config,
	runID string,
	scouter port.Scouter,
	filter port.CandidateFilter,
	store port.ProgressStore,
	opts ...Option,
) *CollectionService {
	s := &CollectionService{
		scouter: scouter,
		filter:  filter,
		store:   store,
		cfg:     cfg,
		runID:   runID,
		logger:  zap.NewNop(),
		sleep:   common.Sleep,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run 执行一次完整的收集。已保存的结果会先加载，已满的分档不再收集。
// context 被取消时在当前候选处理完后停止，写一次最终结果并返回 Interrupted。
func (s *CollectionService) Run(ctx context.Context) (*Summary, error) {
	collection := s.restore(ctx)
	summary := &Summary{
		RunID:    s.runID,
		Verdicts: make(map[domain.Verdict]int),
	}

	var runErr error
	for _, language := range s.cfg.Languages {
		if err := s.collectLanguage(ctx, collection, language, summary); err != nil {
			runErr = err
			break
		}
	}

	if runErr != nil && (errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded)) {
		s.logger.Warn("收集被中断，保存已有结果", zap.Error(runErr))
		summary.Interrupted = true
		runErr = nil
	}

	if err := s.save(ctx, collection); err != nil && runErr == nil {
		runErr = err
	}
	s.report(collection, summary)
	return summary, runErr
}

// restore 加载之前保存的结果；读取失败时从空结果开始
func (s *CollectionService) restore(ctx context.Context) *domain.Collection {
	collection := domain.NewCollection(s.cfg.Languages, s.cfg.SizeCategories)

	saved, err := s.store.Load(ctx)
	if err != nil {
		s.logger.Warn("读取已有结果失败，从头开始收集", zap.Error(err))
		return collection
	}
	if skipped := collection.Merge(saved); skipped > 0 {
		s.logger.Warn("已有结果中有未配置的语言或分档，已忽略", zap.Int("skipped", skipped))
	}
	if total := collection.Total(); total > 0 {
		s.logger.Info("从已有结果恢复", zap.Int("projects", total))
	}
	return collection
}

func (s *CollectionService) collectLanguage(ctx context.Context, collection *domain.Collection, language string, summary *Summary) error {
	log := s.logger.With(zap.String("language", language))

	quota, err := collection.Quota(language, s.cfg.ProjectsPerCategory)
	if err != nil {
		return common.WrapError(common.ErrCodeInternal, "failed to compute quota", err)
	}
	log.Info("开始收集", zap.Stringer("remaining", quota))

	if quota.AllFilled() {
		log.Info("所有分档都已收满，跳过", zap.Int("per_category", s.cfg.ProjectsPerCategory))
		return nil
	}

	pause := time.Duration(s.cfg.PagePauseSeconds * float64(time.Second))

	for page := 1; page <= s.cfg.MaxPages && !quota.AllFilled(); page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		log.Info("搜索", zap.Int("page", page), zap.Stringer("remaining", quota))

		hits, err := s.scouter.Scout(ctx, language, page)
		if err := ctx.Err(); err != nil {
			return err
		}
		if err != nil || len(hits) == 0 {
			log.Info("没有更多搜索结果", zap.Int("page", page), zap.Error(err))
			return nil
		}

		for _, hit := range hits {
			if err := ctx.Err(); err != nil {
				return err
			}

			project, verdict := s.filter.Evaluate(ctx, hit, language, quota)
			summary.Evaluated++
			summary.Verdicts[verdict]++
			if verdict != domain.VerdictAccepted {
				continue
			}

			if err := s.accept(ctx, collection, quota, project, summary); err != nil {
				return err
			}
		}

		if err := s.sleep(ctx, pause); err != nil {
			return err
		}
	}

	if !quota.AllFilled() {
		log.Info("达到最大页数", zap.Int("max_pages", s.cfg.MaxPages), zap.Stringer("remaining", quota))
	}
	return nil
}

// accept 写入结果、扣减配额、立即保存并通知
func (s *CollectionService) accept(ctx context.Context, collection *domain.Collection, quota domain.Quota, project *domain.Project, summary *Summary) error {
	log := s.logger.With(zap.String("repo", project.FullName), zap.String("language", project.Language))

	if err := collection.Add(*project); err != nil {
		if errors.Is(err, domain.ErrDuplicateProject) {
			log.Info("已在之前保存的结果中，跳过")
			return nil
		}
		return common.WrapError(common.ErrCodeInternal, "failed to add project", err)
	}
	quota.Decrement(project.SizeCategory)
	summary.Accepted++

	if err := s.save(ctx, collection); err != nil {
		return err
	}
	log.Info("收录项目",
		zap.String("category", project.SizeCategory),
		zap.Int("lines", project.LinesOfCode),
		zap.Stringer("remaining", quota),
	)

	for _, n := range s.notifiers {
		if err := n.Notify(ctx, project); err != nil {
			log.Warn("发送通知失败", zap.Error(err))
		}
	}
	return nil
}

// save 覆盖写入完整结果；取消信号不影响这次写入
func (s *CollectionService) save(ctx context.Context, collection *domain.Collection) error {
	metadata := s.cfg.Metadata(s.runID)
	metadata.Timestamp = s.now()

	if err := s.store.Save(context.WithoutCancel(ctx), collection, metadata); err != nil {
		s.logger.Error("保存进度失败", zap.Error(err))
		return common.WrapError(common.ErrCodeStorage, "failed to save progress", err)
	}
	return nil
}

// report 输出每个语言每个分档的 数量/目标
func (s *CollectionService) report(collection *domain.Collection, summary *Summary) {
	summary.Total = collection.Total()
	summary.Counts = make(map[string]map[string]int, len(s.cfg.Languages))

	s.logger.Info("收集完成", zap.Int("total", summary.Total), zap.Int("accepted", summary.Accepted))
	for _, language := range collection.Languages() {
		summary.Counts[language] = make(map[string]int)
		for _, category := range collection.Categories().Names() {
			n, _ := collection.Count(language, category)
			summary.Counts[language][category] = n
			s.logger.Info(fmt.Sprintf("- %s (%s): %d/%d", language, category, n, s.cfg.ProjectsPerCategory))
		}
	}
}
