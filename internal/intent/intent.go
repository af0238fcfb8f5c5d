package intent

import (
	"fmt"
	"math/big"

	"Arya-Agent/internal/asset"
)

// Kind 标识意图所属的工作流。
type Kind string

const (
	KindSwap         Kind = "swap"
	KindPrice        Kind = "price"
	KindSocialLookup Kind = "social_lookup"
)

// Platform 是社交身份查询支持的视频平台。
type Platform string

const (
	PlatformTwitch  Platform = "twitch"
	PlatformYouTube Platform = "youtube"
)

// MinHandleLength 是社交账号名的最小长度。
const MinHandleLength = 3

// Intent 是封闭的标签联合，只有本包内的三种变体实现它。
type Intent interface {
	Kind() Kind
	fmt.Stringer
	isIntent()
}

// SwapIntent 表示以 SellAmount（最小单位）的 SellAsset 兑换 BuyAsset。
type SwapIntent struct {
	SellAsset  asset.ID
	BuyAsset   asset.ID
	SellAmount *big.Int
}

// PriceIntent 表示查询某个资产的最新价格。
type PriceIntent struct {
	Asset asset.ID
}

// SocialLookupIntent 表示在指定平台上查询创作者并解析其链上身份。
type SocialLookupIntent struct {
	Platform Platform
	Handle   string
}

func (SwapIntent) Kind() Kind         { return KindSwap }
func (PriceIntent) Kind() Kind        { return KindPrice }
func (SocialLookupIntent) Kind() Kind { return KindSocialLookup }

func (SwapIntent) isIntent()         {}
func (PriceIntent) isIntent()        {}
func (SocialLookupIntent) isIntent() {}

func (i SwapIntent) String() string {
	return fmt.Sprintf("swap %s of %s for %s", i.SellAmount, i.SellAsset, i.BuyAsset)
}

func (i PriceIntent) String() string {
	return fmt.Sprintf("price of %s", i.Asset)
}

func (i SocialLookupIntent) String() string {
	return fmt.Sprintf("%s lookup of %s", i.Platform, i.Handle)
}
