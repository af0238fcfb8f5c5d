package starknet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"Arya-Agent/internal/asset"
)

// SignerConfig 描述外部签名服务。
type SignerConfig struct {
	URL     string
	Address string
	APIKey  string
	Timeout time.Duration
}

// RemoteAccount 是由外部签名服务托管私钥的 Starknet 账户。
// 链上读取走 JSON-RPC，签名与提交交给签名服务。
type RemoteAccount struct {
	address asset.ID
	http    *resty.Client
	chain   *Client
}

// NewRemoteAccount 创建远程账户。
func NewRemoteAccount(cfg SignerConfig, chain *Client) (*RemoteAccount, error) {
	if chain == nil {
		return nil, errors.New("未提供 Starknet 客户端")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		return nil, errors.New("未配置签名服务地址")
	}
	address, err := asset.ParseLoose(strings.TrimSpace(cfg.Address))
	if err != nil {
		return nil, fmt.Errorf("账户地址不合法: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		client.SetAuthToken(key)
	}
	return &RemoteAccount{address: address, http: client, chain: chain}, nil
}

// Address 返回账户地址。
func (a *RemoteAccount) Address() asset.ID {
	return a.address
}

// Allowance 读取账户授权给 spender 的额度。
func (a *RemoteAccount) Allowance(ctx context.Context, token, spender asset.ID) (*big.Int, error) {
	return a.chain.Allowance(ctx, token, a.address, spender)
}

// Execute 把一组调用作为一笔多调用交易交给签名服务签名并广播，返回交易哈希。
func (a *RemoteAccount) Execute(ctx context.Context, calls []Call) (string, error) {
	if len(calls) == 0 {
		return "", errors.New("没有可提交的调用")
	}
	var result struct {
		TransactionHash string `json:"transaction_hash"`
	}
	var failure struct {
		Error string `json:"error"`
	}
	resp, err := a.http.R().
		SetContext(ctx).
		SetPathParam("address", a.address.String()).
		SetBody(map[string]any{"calls": calls}).
		SetResult(&result).
		SetError(&failure).
		Post("/v1/accounts/{address}/execute")
	if err != nil {
		return "", fmt.Errorf("请求签名服务失败: %w", err)
	}
	if resp.IsError() {
		if failure.Error != "" {
			return "", fmt.Errorf("签名服务返回错误 %d: %s", resp.StatusCode(), failure.Error)
		}
		return "", fmt.Errorf("签名服务返回错误状态 %d", resp.StatusCode())
	}
	if strings.TrimSpace(result.TransactionHash) == "" {
		return "", errors.New("签名服务未返回交易哈希")
	}
	return result.TransactionHash, nil
}

// WaitForReceipt 等待交易回执。
func (a *RemoteAccount) WaitForReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	return a.chain.WaitForReceipt(ctx, txHash)
}
