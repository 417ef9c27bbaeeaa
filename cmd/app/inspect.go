package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github-project-sampler/internal/adapter/filter"
	"github-project-sampler/internal/adapter/github"
	"github-project-sampler/internal/config"
	"github-project-sampler/internal/domain"

	"github.com/spf13/cobra"
)

// stageRunner 是 inspect 用到的过滤阶段
type stageRunner interface {
	Staleness(ctx context.Context, fullName string) (time.Time, bool, error)
	Dominance(ctx context.Context, fullName, language string) (float64, bool, error)
	MeasureSize(ctx context.Context, fullName, language string) (int, error)
}

func newInspectCmd(opts *rootOptions) *cobra.Command {
	var language string

	cmd := &cobra.Command{
		Use:   "inspect <owner/repo>",
		Short: "Run each filter stage against one repository and print the results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := loadEnvironment(opts.envFile)
			if err != nil {
				return err
			}
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			log := newLogger(cfg, opts.verbose)
			defer log.Sync()

			client := github.NewClient(token, github.WithLogger(log))
			stages := filter.NewRepoFilter(github.NewFetcher(client), cfg.SizeCategories, cfg.TargetYear,
				filter.WithLogger(log),
			)
			return inspectRepo(cmd.Context(), cmd.OutOrStdout(), stages, cfg, args[0], strings.ToLower(language))
		},
	}
	cmd.Flags().StringVarP(&language, "language", "l", "java", "目标语言")
	return cmd
}

// inspectRepo 依次打印各个阶段的结果，某一阶段不通过时不再继续
func inspectRepo(ctx context.Context, out io.Writer, stages stageRunner, cfg *config.Config, fullName, language string) error {
	if len(domain.ExtensionsFor(language)) == 0 {
		return fmt.Errorf("unsupported language %q", language)
	}

	fmt.Fprintf(out, "🔍 检查 %s (%s)\n", fullName, language)

	lastCommit, stale, err := stages.Staleness(ctx, fullName)
	if err != nil {
		fmt.Fprintf(out, "❌ 获取最后提交失败: %v\n", err)
		return nil
	}
	fmt.Fprintf(out, "📅 最后提交: %s (早于 %d 年: %t)\n", lastCommit.Format("2006-01-02"), cfg.TargetYear, stale)
	if !stale {
		return nil
	}

	share, dominant, err := stages.Dominance(ctx, fullName, language)
	if err != nil {
		fmt.Fprintf(out, "❌ 获取语言统计失败: %v\n", err)
		return nil
	}
	fmt.Fprintf(out, "📈 %s 占比: %.2f%% (超过 %.0f%%: %t)\n", language, share*100, filter.DominanceThreshold*100, dominant)
	if !dominant {
		return nil
	}

	lines, err := stages.MeasureSize(ctx, fullName, language)
	if err != nil {
		fmt.Fprintf(out, "❌ 统计代码行数失败: %v\n", err)
		return nil
	}
	category, ok := cfg.SizeCategories.Classify(lines)
	if !ok {
		fmt.Fprintf(out, "📏 代码行数: %d (不属于任何分档)\n", lines)
		return nil
	}
	fmt.Fprintf(out, "📏 代码行数: %d -> %s\n", lines, category)
	fmt.Fprintln(out, "✅ 通过全部检查")
	return nil
}
