package broker

import (
	"context"
	"encoding/json"

	"github-project-sampler/internal/common"
	"github-project-sampler/internal/domain"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// DefaultSubject 收录事件的默认主题
const DefaultSubject = "github.projects"

// Publisher 把每个新收录的项目以 JSON 发布到 NATS，实现 port.Notifier
type Publisher struct {
	nc      *nats.Conn
	subject string
	logger  *zap.Logger
}

// NewPublisher 连接 NATS 服务器；subject 为空时使用 DefaultSubject
func NewPublisher(url, subject string, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if subject == "" {
		subject = DefaultSubject
	}

	nc, err := nats.Connect(url, nats.Name("github-project-sampler"))
	if err != nil {
		return nil, common.WrapError(common.ErrCodeNotification, "连接 NATS 失败", err)
	}
	logger.Info("已连接 NATS", zap.String("url", nc.ConnectedUrl()), zap.String("subject", subject))

	return &Publisher{nc: nc, subject: subject, logger: logger}, nil
}

// Notify 发布一条收录事件
func (p *Publisher) Notify(ctx context.Context, project *domain.Project) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(project)
	if err != nil {
		return common.WrapError(common.ErrCodeNotification, "编码项目失败", err)
	}

	if err := p.nc.Publish(p.subject, data); err != nil {
		return common.WrapError(common.ErrCodeNotification, "发布到 NATS 失败", err)
	}

	p.logger.Debug("已发布收录事件", zap.String("repo", project.FullName), zap.String("subject", p.subject))
	return nil
}

// Close 刷新缓冲并断开连接
func (p *Publisher) Close() {
	if p.nc == nil {
		return
	}
	if err := p.nc.Flush(); err != nil {
		p.logger.Warn("刷新 NATS 缓冲失败", zap.Error(err))
	}
	p.nc.Close()
}
