// Package starknet 通过 JSON-RPC 读取 Starknet 链上状态，并通过外部签名服务提交交易。
package starknet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/math"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	"Arya-Agent/internal/asset"
)

// txHashNotFound 是节点在交易尚未被接收时返回的错误码。
const txHashNotFound = 29

const (
	defaultPollInterval   = 2 * time.Second
	defaultReceiptTimeout = 2 * time.Minute
)

// Config 描述 Starknet 节点连接参数。
type Config struct {
	RPCURL         string
	PollInterval   time.Duration
	ReceiptTimeout time.Duration
}

// Client 是 Starknet JSON-RPC 的轻量封装。
type Client struct {
	rpc            *gethrpc.Client
	pollInterval   time.Duration
	receiptTimeout time.Duration
	mu             sync.Mutex
}

// Dial 连接配置的 RPC 端点。
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, errors.New("未配置 Starknet RPC 地址")
	}
	rpcClient, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("连接 Starknet 节点失败: %w", err)
	}
	return NewClient(rpcClient, cfg), nil
}

// NewClient 使用已建立的 RPC 连接创建客户端，测试中可传入进程内连接。
func NewClient(rpcClient *gethrpc.Client, cfg Config) *Client {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.ReceiptTimeout <= 0 {
		cfg.ReceiptTimeout = defaultReceiptTimeout
	}
	return &Client{rpc: rpcClient, pollInterval: cfg.PollInterval, receiptTimeout: cfg.ReceiptTimeout}
}

// Close 释放 RPC 连接。
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rpc != nil {
		c.rpc.Close()
		c.rpc = nil
	}
}

func (c *Client) conn() (*gethrpc.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rpc == nil {
		return nil, errors.New("未初始化的 Starknet 客户端")
	}
	return c.rpc, nil
}

// Call 在 latest 区块上执行只读调用。
func (c *Client) Call(ctx context.Context, contract asset.ID, entrypoint string, calldata ...string) ([]*big.Int, error) {
	rpcClient, err := c.conn()
	if err != nil {
		return nil, err
	}
	if calldata == nil {
		calldata = []string{}
	}
	request := map[string]any{
		"contract_address":     contract.Felt(),
		"entry_point_selector": Selector(entrypoint),
		"calldata":             calldata,
	}
	var raw []string
	if err := rpcClient.CallContext(ctx, &raw, "starknet_call", request, "latest"); err != nil {
		return nil, fmt.Errorf("调用合约 %s.%s 失败: %w", contract, entrypoint, err)
	}
	values := make([]*big.Int, len(raw))
	for i, item := range raw {
		value, ok := math.ParseBig256(item)
		if !ok {
			return nil, fmt.Errorf("解析合约返回值 %q 失败", item)
		}
		values[i] = value
	}
	return values, nil
}

// Allowance 读取 owner 授权给 spender 的 ERC20 额度。
func (c *Client) Allowance(ctx context.Context, token, owner, spender asset.ID) (*big.Int, error) {
	values, err := c.Call(ctx, token, "allowance", owner.Felt(), spender.Felt())
	if err != nil {
		return nil, err
	}
	switch len(values) {
	case 1:
		return values[0], nil
	case 2:
		return joinU256(values[0], values[1]), nil
	default:
		return nil, fmt.Errorf("allowance 返回了 %d 个值", len(values))
	}
}

// Receipt 查询交易回执；交易尚未被节点接收时返回 nil, nil。
func (c *Client) Receipt(ctx context.Context, txHash string) (*Receipt, error) {
	rpcClient, err := c.conn()
	if err != nil {
		return nil, err
	}
	var receipt Receipt
	if err := rpcClient.CallContext(ctx, &receipt, "starknet_getTransactionReceipt", txHash); err != nil {
		var rpcErr gethrpc.Error
		if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == txHashNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("查询交易回执失败: %w", err)
	}
	if receipt.ExecutionStatus == "" {
		return nil, nil
	}
	return &receipt, nil
}

// WaitForReceipt 轮询直到交易出现执行结果或超时。
func (c *Client) WaitForReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.receiptTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		receipt, err := c.Receipt(ctx, txHash)
		if err != nil {
			return nil, err
		}
		if receipt != nil {
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("等待交易 %s 回执超时: %w", txHash, ctx.Err())
		case <-ticker.C:
		}
	}
}
