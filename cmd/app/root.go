package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github-project-sampler/internal/adapter/broker"
	"github-project-sampler/internal/adapter/feishu"
	"github-project-sampler/internal/adapter/filter"
	"github-project-sampler/internal/adapter/github"
	"github-project-sampler/internal/adapter/repository"
	"github-project-sampler/internal/config"
	"github-project-sampler/internal/logger"
	"github-project-sampler/internal/port"
	"github-project-sampler/internal/service"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errMissingToken = errors.New("GITHUB_TOKEN environment variable not set")

type rootOptions struct {
	configPath string
	envFile    string
	schedule   string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "sampler",
		Short:        "Collect a size-stratified sample of GitHub projects",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect(cmd, opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "config.json", "配置文件路径")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "环境变量文件 (不存在时忽略)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "输出 debug 日志")
	root.Flags().StringVar(&opts.schedule, "schedule", "", "cron 表达式，为空时只执行一次")

	run := &cobra.Command{
		Use:   "run",
		Short: "Run the collection (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect(cmd, opts)
		},
	}
	run.Flags().StringVar(&opts.schedule, "schedule", "", "cron 表达式，为空时只执行一次")

	root.AddCommand(run, newInspectCmd(opts))
	return root
}

// loadEnvironment 读取 .env 并返回 GitHub token
func loadEnvironment(envFile string) (string, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}
	token := os.Getenv("GITHUB_TOKEN")
	if token == "" {
		return "", errMissingToken
	}
	return token, nil
}

func newLogger(cfg *config.Config, verbose bool) *zap.Logger {
	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	return logger.New(level, cfg.Log.Development)
}

func runCollect(cmd *cobra.Command, opts *rootOptions) error {
	token, err := loadEnvironment(opts.envFile)
	if err != nil {
		return err
	}

	var schedule cron.Schedule
	if opts.schedule != "" {
		if schedule, err = cron.ParseStandard(opts.schedule); err != nil {
			return fmt.Errorf("invalid schedule %q: %w", opts.schedule, err)
		}
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	log := newLogger(cfg, opts.verbose)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if schedule == nil {
		summary, err := collectOnce(ctx, cfg, token, log)
		if err != nil {
			return err
		}
		printSummary(cmd, cfg, summary)
		return nil
	}

	// 定时执行模式，上一轮未结束时跳过本轮
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	c.Schedule(schedule, cron.FuncJob(func() {
		summary, err := collectOnce(ctx, cfg, token, log)
		if err != nil {
			log.Error("本轮收集失败", zap.Error(err))
			return
		}
		printSummary(cmd, cfg, summary)
	}))
	c.Start()
	log.Info("定时执行模式已启动", zap.String("schedule", opts.schedule))

	<-ctx.Done()
	log.Info("收到停止信号，等待当前任务结束")
	<-c.Stop().Done()
	return nil
}

// collectOnce 组装一次运行所需的组件并执行收集
func collectOnce(ctx context.Context, cfg *config.Config, token string, log *zap.Logger) (*service.Summary, error) {
	runID := uuid.NewString()
	log = log.With(zap.String("run_id", runID))

	client := github.NewClient(token,
		github.WithLogger(log),
		github.WithRequestsPerSecond(cfg.RequestsPerSecond),
	)
	scouter := github.NewScouter(client, github.SearchQuery{
		MinStars:     cfg.SearchParameters.MinStars,
		CreatedRange: cfg.SearchParameters.CreatedRange,
		LastPushed:   cfg.SearchParameters.LastPushed,
	})
	repoFilter := filter.NewRepoFilter(github.NewFetcher(client), cfg.SizeCategories, cfg.TargetYear,
		filter.WithLogger(log),
	)

	store, closeStore := buildStore(cfg, log)
	defer closeStore()
	notifiers, closeNotifiers := buildNotifiers(cfg, log)
	defer closeNotifiers()

	svc := service.NewCollectionService(cfg, runID, scouter, repoFilter, store,
		service.WithLogger(log),
		service.WithNotifiers(notifiers...),
	)
	return svc.Run(ctx)
}

// buildStore 以 JSON 文件为主存储，配置了 DSN 时加上 Postgres 镜像
func buildStore(cfg *config.Config, log *zap.Logger) (port.ProgressStore, func()) {
	primary := repository.NewJSONStore(cfg.OutputFile, log)
	if cfg.Storage.PostgresDSN == "" {
		return primary, func() {}
	}

	pg, err := repository.NewPostgresRepo(cfg.Storage.PostgresDSN)
	if err != nil {
		log.Warn("Postgres 不可用，只写 JSON 文件", zap.Error(err))
		return primary, func() {}
	}
	return repository.NewMultiStore(primary, log, pg), func() {
		if err := pg.Close(); err != nil {
			log.Warn("关闭数据库失败", zap.Error(err))
		}
	}
}

func buildNotifiers(cfg *config.Config, log *zap.Logger) ([]port.Notifier, func()) {
	var notifiers []port.Notifier
	closers := []func(){}

	if cfg.Notifications.FeishuWebhook != "" {
		notifiers = append(notifiers, feishu.NewNotifier(cfg.Notifications.FeishuWebhook, log))
	}
	if cfg.Notifications.NATSURL != "" {
		publisher, err := broker.NewPublisher(cfg.Notifications.NATSURL, cfg.Notifications.NATSSubject, log)
		if err != nil {
			log.Warn("NATS 不可用，跳过发布", zap.Error(err))
		} else {
			notifiers = append(notifiers, publisher)
			closers = append(closers, publisher.Close)
		}
	}

	return notifiers, func() {
		for _, closeFn := range closers {
			closeFn()
		}
	}
}

func printSummary(cmd *cobra.Command, cfg *config.Config, summary *service.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n📊 运行 %s: 评估 %d 个候选，新收录 %d 个，共 %d 个\n",
		summary.RunID, summary.Evaluated, summary.Accepted, summary.Total)
	if summary.Interrupted {
		fmt.Fprintln(out, "⚠️ 运行被中断，已保存当前结果")
	}
	for _, language := range cfg.Languages {
		for _, category := range cfg.SizeCategories.Names() {
			fmt.Fprintf(out, "- %s (%s): %d/%d\n", language, category,
				summary.Counts[language][category], cfg.ProjectsPerCategory)
		}
	}
}
