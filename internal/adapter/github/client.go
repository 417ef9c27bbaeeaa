package github

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github-project-sampler/internal/common"

	"github.com/google/go-github/v53/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	// RequestTimeout 单个 HTTP 请求的超时
	RequestTimeout = 30 * time.Second

	// MaxAttempts 非限流失败时最多发送的次数
	MaxAttempts = 3

	// BackoffBase 第 n 次失败后等待 BackoffBase * 2^(n-1)
	BackoffBase = 2 * time.Second

	rateLimitMarker = "rate limit exceeded"
)

// Client 是带限流感知和重试的 GitHub REST 客户端。
// 不是并发安全的，同一时刻只应有一个请求在飞。
type Client struct {
	gh       *github.Client
	limits   *RateLimitState
	throttle *rate.Limiter
	logger   *zap.Logger

	now   func() time.Time
	sleep common.SleepFunc
}

// ClientOption 配置 Client
type ClientOption func(*Client)

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRequestsPerSecond 在 GitHub 自身配额之外再加一层本地节流，<= 0 表示不节流
func WithRequestsPerSecond(rps float64) ClientOption {
	return func(c *Client) {
		if rps > 0 {
			c.throttle = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithClock 替换时钟和等待函数 (测试用)
func WithClock(now func() time.Time, sleep common.SleepFunc) ClientOption {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// WithBaseURL 把请求指向别的 API 地址 (GitHub Enterprise 或测试服务器)
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		if u, err := url.Parse(baseURL); err == nil {
			c.gh.BaseURL = u
		}
	}
}

// NewClient 用 token 初始化客户端；token 为空时匿名访问
func NewClient(token string, opts ...ClientOption) *Client {
	var tc *http.Client
	if token == "" {
		tc = &http.Client{}
	} else {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		tc = oauth2.NewClient(context.Background(), ts)
	}
	tc.Timeout = RequestTimeout

	c := &Client{
		gh:     github.NewClient(tc),
		limits: newRateLimitState(),
		logger: zap.NewNop(),
		now:    time.Now,
		sleep:  common.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RateLimit 返回最近一次响应记录的限流状态
func (c *Client) RateLimit() *RateLimitState {
	return c.limits
}

// Get 发送 GET 请求并把 JSON 响应解码到 v。
//
// 限流 (403 + "rate limit exceeded") 时等到重置时间后重发，不计入重试次数；
// 404 直接返回 common.ErrNotFound；其他失败最多发送 MaxAttempts 次，
// 仍失败则返回 common.ErrRetryExhausted。context 结束时返回 context 的错误。
func (c *Client) Get(ctx context.Context, path string, query url.Values, v any) error {
	u := path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	err := common.Do(ctx, func() error {
		for {
			err := c.send(ctx, u, v)
			if err == nil {
				return nil
			}
			if ctx.Err() != nil {
				return common.Permanent(ctx.Err())
			}
			if wait, limited := c.rateLimited(err); limited {
				c.logger.Warn("触发 GitHub 速率限制，等待重置",
					zap.String("path", u),
					zap.Duration("wait", wait),
				)
				if serr := c.sleep(ctx, wait); serr != nil {
					return common.Permanent(serr)
				}
				continue
			}
			if isNotFound(err) {
				return common.Permanent(common.WrapError(common.ErrCodeNotFound, "GET "+u, err))
			}
			return err
		}
	},
		common.WithMaxRetries(MaxAttempts-1),
		common.WithInitialDelay(BackoffBase),
		common.WithMultiplier(2),
		common.WithSleepFunc(c.sleep),
		common.WithOnRetry(func(attempt int, delay time.Duration, err error) {
			c.logger.Warn("GitHub 请求失败，准备重试",
				zap.String("path", u),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
		}),
	)
	if err == nil {
		return nil
	}

	if common.IsAbsent(err) || ctx.Err() != nil {
		return err
	}
	c.logger.Error("GitHub 请求失败", zap.String("path", u), zap.Error(err))
	return common.WrapError(common.ErrCodeRetryExhausted, "GET "+u, err)
}

// send 发送一次请求，发送前做本地节流和低水位等待，收到响应后刷新限流状态
func (c *Client) send(ctx context.Context, u string, v any) error {
	if c.throttle != nil {
		if err := c.throttle.Wait(ctx); err != nil {
			return err
		}
	}

	if wait, ok := c.limits.ProactiveWait(c.now()); ok {
		c.logger.Info("剩余请求次数过低，等待配额重置",
			zap.Int("remaining", c.limits.Remaining()),
			zap.Time("reset_at", c.limits.ResetAt()),
			zap.Duration("wait", wait),
		)
		if err := c.sleep(ctx, wait); err != nil {
			return err
		}
	}

	req, err := c.gh.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return common.Permanent(common.WrapError(common.ErrCodeGitHubAPI, "failed to build request", err))
	}

	resp, err := c.gh.Do(ctx, req, v)
	if resp != nil {
		c.limits.Update(resp.Rate)
	}
	return err
}

// rateLimited 判断是否为限流响应，并给出需要等待的时长
func (c *Client) rateLimited(err error) (time.Duration, bool) {
	var abuse *github.AbuseRateLimitError
	if errors.As(err, &abuse) {
		if abuse.RetryAfter != nil && *abuse.RetryAfter > 0 {
			return *abuse.RetryAfter, true
		}
		return c.limits.ResetWait(c.now()), true
	}

	// 包括 go-github 在 remaining=0 时不发请求直接返回的那种
	var rle *github.RateLimitError
	if errors.As(err, &rle) {
		return c.limits.ResetWait(c.now()), true
	}

	var er *github.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		status := er.Response.StatusCode
		if (status == http.StatusForbidden || status == http.StatusTooManyRequests) &&
			strings.Contains(strings.ToLower(er.Message), rateLimitMarker) {
			return c.limits.ResetWait(c.now()), true
		}
	}
	return 0, false
}

func isNotFound(err error) bool {
	var er *github.ErrorResponse
	return errors.As(err, &er) && er.Response != nil && er.Response.StatusCode == http.StatusNotFound
}
