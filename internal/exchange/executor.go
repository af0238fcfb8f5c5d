package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"time"

	"Arya-Agent/internal/asset"
	xerrors "Arya-Agent/internal/errors"
	"Arya-Agent/internal/observability/metrics"
	"Arya-Agent/internal/starknet"
	"Arya-Agent/pkg/logger"
)

const (
	// DefaultSlippage 是默认允许的最大滑点（5%）。
	DefaultSlippage = 0.05
	// DefaultAutoApprove 表示默认在额度不足时自动附带授权调用。
	DefaultAutoApprove = true

	basisPoints = 10000
)

// ExecState 是兑换执行状态机的状态。
type ExecState string

const (
	StatePending         ExecState = "pending"
	StateApproving       ExecState = "approving"
	StateSubmitting      ExecState = "submitting"
	StateConfirmed       ExecState = "confirmed"
	StateReverted        ExecState = "reverted"
	StateTransportFailed ExecState = "transport_failed"
	StateAborted         ExecState = "aborted"
)

// SwapOutcome 是一次兑换的最终结果，TransactionID 与 ErrorDetail 恰有一个非空。
type SwapOutcome struct {
	Success       bool
	TransactionID string
	ErrorDetail   string
	State         ExecState
	// Code 是失败时的错误分类，成功时为空。
	Code xerrors.Code
}

// Account 是执行兑换的签名账户。
type Account interface {
	Address() asset.ID
	Allowance(ctx context.Context, token, spender asset.ID) (*big.Int, error)
	Execute(ctx context.Context, calls []starknet.Call) (string, error)
	WaitForReceipt(ctx context.Context, txHash string) (*starknet.Receipt, error)
}

// QuoteSource 提供实时报价，用于提交前的滑点校验。
type QuoteSource interface {
	Quotes(ctx context.Context, sell, buy asset.ID, amount *big.Int) ([]Quote, error)
}

// Executor 按报价执行兑换，不做任何重试。
type Executor struct {
	client   *Client
	spender  asset.ID
	requoter QuoteSource
	now      func() time.Time
	log      *slog.Logger
}

// ExecutorOption 自定义 Executor。
type ExecutorOption func(*Executor)

// WithSpender 指定授权额度检查的目标合约。
func WithSpender(spender asset.ID) ExecutorOption {
	return func(e *Executor) {
		if !spender.IsZero() {
			e.spender = spender
		}
	}
}

// WithRequoter 配置实时报价源，启用提交前的滑点校验。
func WithRequoter(source QuoteSource) ExecutorOption {
	return func(e *Executor) {
		e.requoter = source
	}
}

// WithClock 替换时间来源，便于测试过期逻辑。
func WithClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// NewExecutor 创建兑换执行器。
func NewExecutor(client *Client, opts ...ExecutorOption) *Executor {
	e := &Executor{
		client:  client,
		spender: asset.MustParse(DefaultExchangeAddress),
		now:     time.Now,
		log:     logger.Named("exchange"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Execute 执行 Pending → Approving? → Submitting → Confirmed | Reverted | TransportFailed，
// 提交前的滑点或过期校验失败时进入 Aborted。任何错误都折叠为失败结果。
func (e *Executor) Execute(ctx context.Context, account Account, quote Quote, slippage float64, autoApprove bool) SwapOutcome {
	outcome := e.execute(ctx, account, quote, slippage, autoApprove)
	metrics.ObserveSwapState(string(outcome.State))

	attrs := []any{
		slog.String("quote_id", quote.ID),
		slog.String("state", string(outcome.State)),
		slog.String("sell_asset", quote.SellAsset.String()),
		slog.String("buy_asset", quote.BuyAsset.String()),
	}
	if quote.SellAmount != nil {
		attrs = append(attrs, slog.String("sell_amount", quote.SellAmount.String()))
	}
	if outcome.Success {
		logger.Audit().Info("兑换已确认", append(attrs, slog.String("tx", outcome.TransactionID))...)
	} else {
		attrs = append(attrs, slog.String("code", string(outcome.Code)), slog.String("detail", outcome.ErrorDetail))
		logger.Audit().Warn("兑换未完成", attrs...)
	}
	return outcome
}

func (e *Executor) execute(ctx context.Context, account Account, quote Quote, slippage float64, autoApprove bool) SwapOutcome {
	if account == nil || e.client == nil {
		return failure(StateAborted, xerrors.CodeInitializationFailure, "swap executor not configured")
	}
	if !(slippage >= 0 && slippage < 1) {
		return failure(StateAborted, xerrors.CodeSlippageExceeded, fmt.Sprintf("slippage %.4f must be in [0, 1)", slippage))
	}
	if quote.SellAmount == nil || quote.SellAmount.Sign() <= 0 || quote.BuyAmount == nil {
		return failure(StateAborted, xerrors.CodeInvalidArgument, "quote amounts are missing")
	}
	if quote.Expired(e.now()) {
		return failure(StateAborted, xerrors.CodeQuoteExpired, "quote expired before submission")
	}
	if e.requoter != nil {
		if out, ok := e.checkSlippage(ctx, quote, slippage); !ok {
			return out
		}
	}

	includeApprove := false
	if autoApprove {
		allowance, err := account.Allowance(ctx, quote.SellAsset, e.spender)
		if err != nil {
			e.log.Warn("读取授权额度失败", slog.String("quote_id", quote.ID), slog.Any("error", err))
			return failure(StateTransportFailed, xerrors.CodeApprovalFailure, fmt.Sprintf("allowance check failed: %v", err))
		}
		includeApprove = allowance.Cmp(quote.SellAmount) < 0
	}

	calls, err := e.client.build(ctx, quote.ID, account.Address(), slippage, includeApprove)
	if err != nil {
		return failure(StateTransportFailed, xerrors.CodeSubmissionFailure, err.Error())
	}
	txHash, err := account.Execute(ctx, calls)
	if err != nil {
		return failure(StateTransportFailed, xerrors.CodeSubmissionFailure, err.Error())
	}
	e.log.Info("兑换交易已提交",
		slog.String("quote_id", quote.ID),
		slog.String("tx", txHash),
		slog.Bool("include_approve", includeApprove))

	receipt, err := account.WaitForReceipt(ctx, txHash)
	if err != nil {
		return failure(StateTransportFailed, xerrors.CodeSubmissionFailure, fmt.Sprintf("transaction %s not confirmed: %v", txHash, err))
	}
	if !receipt.Succeeded() {
		reason := receipt.RevertReason
		if reason == "" {
			reason = "transaction reverted"
		}
		return failure(StateReverted, xerrors.CodeSubmissionFailure, reason)
	}
	return SwapOutcome{Success: true, TransactionID: txHash, State: StateConfirmed}
}

// checkSlippage 以实时报价确认 quote.BuyAmount × (1 − slippage) 仍可满足。
func (e *Executor) checkSlippage(ctx context.Context, quote Quote, slippage float64) (SwapOutcome, bool) {
	live, err := e.requoter.Quotes(ctx, quote.SellAsset, quote.BuyAsset, quote.SellAmount)
	if err != nil {
		return failure(StateAborted, xerrors.CodeSlippageExceeded, fmt.Sprintf("live quote unavailable: %v", err)), false
	}
	if len(live) == 0 || live[0].BuyAmount == nil {
		return failure(StateAborted, xerrors.CodeSlippageExceeded, "live quote returned no route"), false
	}
	minimum := MinimumReceived(quote.BuyAmount, slippage)
	if live[0].BuyAmount.Cmp(minimum) < 0 {
		return failure(StateAborted, xerrors.CodeSlippageExceeded,
			fmt.Sprintf("live buy amount %s is below minimum %s", live[0].BuyAmount, minimum)), false
	}
	return SwapOutcome{}, true
}

// MinimumReceived 计算 floor(amount × (1 − slippage))，滑点按基点取整。
func MinimumReceived(amount *big.Int, slippage float64) *big.Int {
	bps := int64(math.Round(slippage * basisPoints))
	scaled := new(big.Int).Mul(amount, big.NewInt(basisPoints-bps))
	return scaled.Quo(scaled, big.NewInt(basisPoints))
}

func failure(state ExecState, code xerrors.Code, detail string) SwapOutcome {
	if detail == "" {
		detail = xerrors.AttributesOf(code).Message
	}
	return SwapOutcome{State: state, ErrorDetail: detail, Code: code}
}
