// Package response 把各工作流的结构化结果渲染成面向用户的回复。
package response

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"Arya-Agent/internal/asset"
	"Arya-Agent/internal/exchange"
	"Arya-Agent/internal/identity"
	"Arya-Agent/internal/intent"
	"Arya-Agent/internal/media"
)

// AttachmentContentType 是附件统一使用的内容类型。
const AttachmentContentType = "image/png"

// 原有的用户可见失败文案。
const (
	InvalidSwapText    = "Invalid swap content, please try again."
	InvalidPriceText   = "Invalid get price content, please try again."
	InvalidTwitchText  = "Invalid twitch query, please try again."
	InvalidYouTubeText = "Invalid youtube query, please try again."
	NoRouteText        = "No swap route found for this pair, please try again."
)

// Attachment 是附在回复上的富媒体卡片。
type Attachment struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Source      string `json:"source"`
	Description string `json:"description"`
	Text        string `json:"text"`
	ContentType string `json:"contentType"`
}

// Response 是发送给用户的回复。
type Response struct {
	Text       string      `json:"text"`
	Attachment *Attachment `json:"attachment,omitempty"`
}

// Options 控制回复的渲染方式。
type Options struct {
	// RichContent 为 false 时不生成附件，例如 telegram 渠道。
	RichContent bool
}

// OptionsForSource 根据消息来源推导渲染选项。
func OptionsForSource(source string) Options {
	return Options{RichContent: !strings.EqualFold(strings.TrimSpace(source), "telegram")}
}

// Result 是可被渲染的工作流结果。
type Result interface {
	isResult()
}

// SwapResult 是兑换执行结果。
type SwapResult struct {
	Outcome exchange.SwapOutcome
}

// NoRouteResult 表示聚合器没有返回可用报价。
type NoRouteResult struct{}

// PriceResult 是价格查询结果。
type PriceResult struct {
	Asset asset.ID
	Price exchange.PricePoint
}

// IdentityResult 是社交身份查询结果。Resolved 为域名解析得到的地址，可为空。
type IdentityResult struct {
	Summary  *media.Summary
	Claim    identity.Claim
	Resolved string
}

// FailureResult 表示某个工作流未能完成，Reply 为空时使用工作流的默认失败文案。
type FailureResult struct {
	Action intent.Action
	Reply  string
}

func (SwapResult) isResult()     {}
func (NoRouteResult) isResult()  {}
func (PriceResult) isResult()    {}
func (IdentityResult) isResult() {}
func (FailureResult) isResult()  {}

// Synthesize 渲染回复，纯函数，不访问网络。
func Synthesize(result Result, opts Options) Response {
	switch r := result.(type) {
	case SwapResult:
		if r.Outcome.Success {
			return Response{Text: "Swap completed successfully! tx: " + r.Outcome.TransactionID}
		}
		return Response{Text: "Swap failed: " + r.Outcome.ErrorDetail}
	case NoRouteResult:
		return Response{Text: NoRouteText}
	case PriceResult:
		return Response{Text: FormatPrice(r.Price.Value)}
	case IdentityResult:
		return synthesizeIdentity(r, opts)
	case FailureResult:
		if r.Reply != "" {
			return Response{Text: r.Reply}
		}
		return Response{Text: InvalidText(r.Action)}
	default:
		return Response{Text: "Something went wrong, please try again."}
	}
}

// InvalidText 返回工作流的默认失败文案。
func InvalidText(action intent.Action) string {
	switch action {
	case intent.ActionSwap:
		return InvalidSwapText
	case intent.ActionPrice:
		return InvalidPriceText
	case intent.ActionTwitch:
		return InvalidTwitchText
	case intent.ActionYouTube:
		return InvalidYouTubeText
	default:
		return "Something went wrong, please try again."
	}
}

// FormatPrice 以美分精度渲染价格，四舍五入远离零。
func FormatPrice(value float64) string {
	cents := math.Round(value * 100)
	return fmt.Sprintf("The price is: $%.2f", cents/100)
}

func synthesizeIdentity(r IdentityResult, opts Options) Response {
	summary := r.Summary
	if summary == nil {
		return Response{Text: "Something went wrong, please try again."}
	}
	var lines []string
	lines = append(lines, "User ID: "+summary.UserID)
	lines = append(lines, "Username: "+summary.Handle)
	if summary.Recent != nil {
		lines = append(lines, "Most recent video: "+summary.Recent.Title+" ("+summary.Recent.URL+")")
	}
	if r.Claim.Address != nil {
		lines = append(lines, "Starknet Address: "+r.Claim.Address.String())
	}
	if r.Claim.Name != "" {
		lines = append(lines, "Starknet ID: "+r.Claim.Name)
	}
	if r.Resolved != "" {
		lines = append(lines, "Verified Recipient Address: "+r.Resolved)
	}
	resp := Response{Text: strings.Join(lines, "\n")}

	if opts.RichContent && summary.Recent != nil {
		recent := summary.Recent
		resp.Attachment = &Attachment{
			ID:          uuid.NewString(),
			URL:         recent.ThumbnailURL,
			Title:       recent.Title,
			Source:      recent.Source,
			Description: recent.Description,
			Text:        recent.Description,
			ContentType: AttachmentContentType,
		}
	}
	return resp
}
