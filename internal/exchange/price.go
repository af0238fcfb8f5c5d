package exchange

import (
	"context"
	"time"

	"Arya-Agent/internal/asset"
	xerrors "Arya-Agent/internal/errors"
)

// PricePoint 是价格曲线上的一个点，Value 以美元计。
type PricePoint struct {
	Date  time.Time
	Value float64
}

// PriceService 查询资产的最新价格。
type PriceService struct {
	client *Client
}

// NewPriceService 创建价格服务。
func NewPriceService(client *Client) *PriceService {
	return &PriceService{client: client}
}

// LatestPrice 返回价格曲线的第一个点。
func (s *PriceService) LatestPrice(ctx context.Context, token asset.ID) (PricePoint, error) {
	if s == nil || s.client == nil {
		return PricePoint{}, xerrors.New(xerrors.CodeInitializationFailure, "price service not configured")
	}
	points, err := s.client.priceLine(ctx, token)
	if err != nil {
		return PricePoint{}, xerrors.Wrap(xerrors.CodePriceFailure, err, "", xerrors.WithMetadata("asset", token.String()))
	}
	if len(points) == 0 {
		return PricePoint{}, xerrors.New(xerrors.CodePriceFailure, "价格曲线为空", xerrors.WithMetadata("asset", token.String()))
	}
	point := PricePoint{Value: points[0].Value}
	if parsed, err := time.Parse(time.RFC3339, points[0].Date); err == nil {
		point.Date = parsed
	}
	return point, nil
}
