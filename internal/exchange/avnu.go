// Package exchange 对接 AVNU 聚合器，提供报价、价格查询与兑换执行。
package exchange

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/go-resty/resty/v2"

	"Arya-Agent/internal/asset"
	"Arya-Agent/internal/starknet"
)

const (
	// DefaultBaseURL 是 AVNU 主网聚合器地址。
	DefaultBaseURL = "https://starknet.api.avnu.fi"
	// DefaultImpulseURL 是 AVNU 价格服务地址。
	DefaultImpulseURL = "https://starknet.impulse.avnu.fi"
	// DefaultExchangeAddress 是 AVNU 主网兑换合约，授权额度针对它检查。
	DefaultExchangeAddress = "0x04270219d365d6b017231b52e92b3fb5d7c8378b05e9abc97724537a80e93b0f"

	defaultTimeout = 15 * time.Second
)

// Config 描述 AVNU 访问参数。
type Config struct {
	BaseURL    string
	ImpulseURL string
	Timeout    time.Duration
}

// Client 是 AVNU REST 接口的薄封装。
type Client struct {
	api     *resty.Client
	impulse *resty.Client
}

// NewClient 创建 AVNU 客户端。
func NewClient(cfg Config) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if strings.TrimSpace(cfg.ImpulseURL) == "" {
		cfg.ImpulseURL = DefaultImpulseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	build := func(base string) *resty.Client {
		return resty.New().
			SetBaseURL(strings.TrimRight(base, "/")).
			SetTimeout(cfg.Timeout).
			SetHeader("Accept", "application/json")
	}
	return &Client{api: build(cfg.BaseURL), impulse: build(cfg.ImpulseURL)}
}

type quoteDTO struct {
	QuoteID          string   `json:"quoteId"`
	SellTokenAddress string   `json:"sellTokenAddress"`
	SellAmount       string   `json:"sellAmount"`
	BuyTokenAddress  string   `json:"buyTokenAddress"`
	BuyAmount        string   `json:"buyAmount"`
	Expiry           *int64   `json:"expiry"`
	ChainID          string   `json:"chainId"`
	GasFeesInUsd     *float64 `json:"gasFeesInUsd"`
}

func (c *Client) fetchQuotes(ctx context.Context, sell, buy asset.ID, amount *big.Int, taker asset.ID) ([]quoteDTO, error) {
	var out []quoteDTO
	req := c.api.R().
		SetContext(ctx).
		SetQueryParam("sellTokenAddress", sell.String()).
		SetQueryParam("buyTokenAddress", buy.String()).
		SetQueryParam("sellAmount", hexutil.EncodeBig(amount)).
		SetResult(&out)
	if !taker.IsZero() {
		req.SetQueryParam("takerAddress", taker.String())
	}
	resp, err := req.Get("/swap/v2/quotes")
	if err != nil {
		return nil, fmt.Errorf("请求报价失败: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("报价接口返回错误状态 %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return out, nil
}

func (c *Client) build(ctx context.Context, quoteID string, taker asset.ID, slippage float64, includeApprove bool) ([]starknet.Call, error) {
	var out struct {
		ChainID string          `json:"chainId"`
		Calls   []starknet.Call `json:"calls"`
	}
	resp, err := c.api.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{
			"quoteId":        quoteID,
			"takerAddress":   taker.String(),
			"slippage":       slippage,
			"includeApprove": includeApprove,
		}).
		SetResult(&out).
		Post("/swap/v2/build")
	if err != nil {
		return nil, fmt.Errorf("构建兑换交易失败: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("构建接口返回错误状态 %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	if len(out.Calls) == 0 {
		return nil, errors.New("构建接口未返回任何调用")
	}
	return out.Calls, nil
}

type pricePointDTO struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

func (c *Client) priceLine(ctx context.Context, token asset.ID) ([]pricePointDTO, error) {
	var out []pricePointDTO
	resp, err := c.impulse.R().
		SetContext(ctx).
		SetPathParam("token", token.String()).
		SetResult(&out).
		Get("/v1/tokens/{token}/prices/line")
	if err != nil {
		return nil, fmt.Errorf("请求价格失败: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("价格接口返回错误状态 %d", resp.StatusCode())
	}
	return out, nil
}

func parseAmount(text string) (*big.Int, error) {
	value, ok := math.ParseBig256(strings.TrimSpace(text))
	if !ok {
		return nil, fmt.Errorf("无法解析数量 %q", text)
	}
	return value, nil
}
