// Package nameservice 把 starknet.id 域名解析为链上地址。
package nameservice

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	xerrors "Arya-Agent/internal/errors"
	"Arya-Agent/internal/observability/metrics"
	"Arya-Agent/pkg/logger"
)

// DefaultBaseURL 是 starknet.id 的公共接口地址。
const DefaultBaseURL = "https://api.starknet.id"

// Outcome 是一次解析的结果分类。
type Outcome string

const (
	OutcomeResolved   Outcome = "resolved"
	OutcomeEmptyInput Outcome = "empty_input"
	OutcomeNotFound   Outcome = "not_found"
	OutcomeFailed     Outcome = "failed"
)

// Config 描述解析服务的访问参数。
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client 是 starknet.id 的解析客户端。
type Client struct {
	http *resty.Client
	log  *slog.Logger
}

// NewClient 创建解析客户端。
func NewClient(cfg Config) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http: resty.New().SetBaseURL(base).SetTimeout(timeout).SetHeader("Accept", "application/json"),
		log:  logger.Named("nameservice"),
	}
}

// Resolve 返回域名对应的地址，任何失败都返回空字符串。
func (c *Client) Resolve(ctx context.Context, name string) string {
	addr, _ := c.ResolveDetailed(ctx, name)
	return addr
}

// ResolveDetailed 返回地址以及结果分类，并记录日志与指标。
func (c *Client) ResolveDetailed(ctx context.Context, name string) (string, Outcome) {
	name = strings.TrimSpace(name)
	if name == "" {
		metrics.ObserveResolution(string(OutcomeEmptyInput))
		return "", OutcomeEmptyInput
	}

	addr, outcome, err := c.lookup(ctx, name)
	metrics.ObserveResolution(string(outcome))
	attrs := []any{slog.String("domain", name), slog.String("outcome", string(outcome))}
	switch {
	case outcome == OutcomeNotFound:
		c.log.Info("域名未解析到地址", append(attrs, slog.Any("error", err))...)
	case err != nil:
		c.log.Warn("域名解析失败", append(attrs, slog.Any("error", err))...)
	default:
		c.log.Debug("域名解析完成", attrs...)
	}
	return addr, outcome
}

func (c *Client) lookup(ctx context.Context, name string) (string, Outcome, error) {
	var out struct {
		Addr string `json:"addr"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("domain", name).
		SetResult(&out).
		Get("/domain_to_addr")
	if err != nil {
		return "", OutcomeFailed, err
	}
	switch {
	case resp.StatusCode() == http.StatusBadRequest || resp.StatusCode() == http.StatusNotFound:
		return "", OutcomeNotFound, missError(name)
	case resp.IsError():
		return "", OutcomeFailed, fmt.Errorf("解析接口返回错误状态 %d", resp.StatusCode())
	}
	addr := strings.TrimSpace(out.Addr)
	if addr == "" {
		return "", OutcomeNotFound, missError(name)
	}
	return addr, OutcomeResolved, nil
}

// missError 标记域名存在于简介中但没有绑定地址，日志中以 RESOLUTION_MISS 出现。
func missError(name string) error {
	return xerrors.New(xerrors.CodeResolutionMiss, "", xerrors.WithMetadata("domain", name))
}
