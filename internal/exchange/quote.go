package exchange

import (
	"context"
	"math/big"
	"time"

	"Arya-Agent/internal/asset"
	xerrors "Arya-Agent/internal/errors"
)

// Quote 是聚合器返回的一条不可变报价。
type Quote struct {
	ID         string
	SellAsset  asset.ID
	BuyAsset   asset.ID
	SellAmount *big.Int
	BuyAmount  *big.Int
	// Expiry 为空表示报价未声明过期时间。
	Expiry       *time.Time
	ChainID      string
	GasFeesInUSD float64
}

// Expired 判断报价在 now 时刻是否已过期。
func (q Quote) Expired(now time.Time) bool {
	return q.Expiry != nil && !now.Before(*q.Expiry)
}

// QuoteService 负责获取兑换报价，不缓存、不重试。
type QuoteService struct {
	client *Client
	taker  asset.ID
}

// NewQuoteService 创建报价服务，taker 为将要执行兑换的账户地址。
func NewQuoteService(client *Client, taker asset.ID) *QuoteService {
	return &QuoteService{client: client, taker: taker}
}

// Quotes 请求 sell 兑换 buy 的报价。空结果表示没有可用路由，不视为错误。
func (s *QuoteService) Quotes(ctx context.Context, sell, buy asset.ID, amount *big.Int) ([]Quote, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "sell amount must be positive")
	}
	if sell == buy {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "sell and buy assets must differ")
	}
	if s == nil || s.client == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "quote service not configured")
	}

	raw, err := s.client.fetchQuotes(ctx, sell, buy, amount, s.taker)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeQuoteFailure, err, "")
	}
	quotes := make([]Quote, 0, len(raw))
	for _, item := range raw {
		quote, err := item.toQuote()
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeQuoteFailure, err, "解析报价失败", xerrors.WithMetadata("quote_id", item.QuoteID))
		}
		quotes = append(quotes, quote)
	}
	return quotes, nil
}

func (d quoteDTO) toQuote() (Quote, error) {
	sell, err := asset.ParseLoose(d.SellTokenAddress)
	if err != nil {
		return Quote{}, err
	}
	buy, err := asset.ParseLoose(d.BuyTokenAddress)
	if err != nil {
		return Quote{}, err
	}
	sellAmount, err := parseAmount(d.SellAmount)
	if err != nil {
		return Quote{}, err
	}
	buyAmount, err := parseAmount(d.BuyAmount)
	if err != nil {
		return Quote{}, err
	}
	quote := Quote{
		ID:         d.QuoteID,
		SellAsset:  sell,
		BuyAsset:   buy,
		SellAmount: sellAmount,
		BuyAmount:  buyAmount,
		ChainID:    d.ChainID,
	}
	if d.Expiry != nil {
		expiry := time.UnixMilli(*d.Expiry)
		quote.Expiry = &expiry
	}
	if d.GasFeesInUsd != nil {
		quote.GasFeesInUSD = *d.GasFeesInUsd
	}
	return quote, nil
}
