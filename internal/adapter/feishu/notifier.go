package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github-project-sampler/internal/common"
	"github-project-sampler/internal/domain"

	"go.uber.org/zap"
)

// Notifier 在收录项目后向飞书群机器人推送卡片
type Notifier struct {
	webhookURL string
	httpClient *http.Client
	logger     *zap.Logger
	retryDelay time.Duration
}

// NewNotifier 创建飞书推送器，logger 可以为 nil
func NewNotifier(webhook string, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if webhook == "" {
		logger.Warn("飞书 Webhook 为空，推送功能将无法工作")
	}
	return &Notifier{
		webhookURL: webhook,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		retryDelay: 500 * time.Millisecond,
	}
}

// Notify 发送飞书卡片消息 (Schema 2.0)
func (n *Notifier) Notify(ctx context.Context, project *domain.Project) error {
	if n.webhookURL == "" {
		return common.NewError(common.ErrCodeNotification, "Webhook URL 为空")
	}

	body, err := json.Marshal(buildCard(project))
	if err != nil {
		return common.WrapError(common.ErrCodeNotification, "构造卡片失败", err)
	}

	// 发送请求 (带重试机制)
	err = common.Do(ctx, func() error {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
		if reqErr != nil {
			return common.Permanent(reqErr)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, postErr := n.httpClient.Do(req)
		if postErr != nil {
			return postErr
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("飞书 API 报错: 状态码 %d", resp.StatusCode)
		}
		return nil
	},
		common.WithMaxRetries(3),
		common.WithInitialDelay(n.retryDelay),
	)
	if err != nil {
		return common.WrapError(common.ErrCodeNotification, "发送请求失败", err)
	}

	n.logger.Debug("飞书通知已发送", zap.String("repo", project.FullName))
	return nil
}

func buildCard(p *domain.Project) map[string]interface{} {
	title := fmt.Sprintf("📦 新收录项目: %s", p.FullName)

	mdContent := fmt.Sprintf(`**⭐ Stars:** %d  |  **语言:** %s  |  **分档:** %s
**📏 代码行数:** %d  |  **👥 贡献者:** %d
**📅 创建日期:** %s  |  **最后提交:** %s

**📝 项目描述:**
%s
`,
		p.Stars, p.Language, p.SizeCategory,
		p.LinesOfCode, p.ContributorsCount,
		p.CreatedAt.Format("2006-01-02"), p.LastCommitDate.Format("2006-01-02"),
		p.Description)

	return map[string]interface{}{
		"msg_type": "interactive",
		"card": map[string]interface{}{
			"schema": "2.0",
			"config": map[string]interface{}{
				"update_multi": true,
			},
			"header": map[string]interface{}{
				"title": map[string]interface{}{
					"tag":     "plain_text",
					"content": title,
				},
				"template": "blue",
			},
			"body": map[string]interface{}{
				"direction": "vertical",
				"elements": []map[string]interface{}{
					{
						"tag":       "markdown",
						"content":   mdContent,
						"text_size": "normal",
					},
					{
						"tag": "button",
						"text": map[string]interface{}{
							"tag":     "plain_text",
							"content": "🔗 查看源码",
						},
						"type": "primary",
						"behaviors": []map[string]interface{}{
							{
								"type":        "open_url",
								"default_url": p.URL,
							},
						},
					},
				},
			},
		},
	}
}
