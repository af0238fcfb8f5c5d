package media

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"Arya-Agent/internal/intent"
)

const (
	defaultYouTubeBaseURL = "https://www.googleapis.com"
	youtubeWatchURL       = "https://www.youtube.com/watch?v="
	youtubeSearchLimit    = "5"
)

// YouTubeConfig 描述 YouTube Data API 的访问参数。
type YouTubeConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// YouTube 查询 YouTube 频道及其最新视频。
type YouTube struct {
	http   *resty.Client
	apiKey string
}

// NewYouTube 创建 YouTube 客户端。
func NewYouTube(cfg YouTubeConfig) (*YouTube, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errors.New("未配置 YouTube API Key")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultYouTubeBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().SetBaseURL(base).SetTimeout(timeout).SetHeader("Accept", "application/json")
	return &YouTube{http: client, apiKey: key}, nil
}

// Platform 返回 youtube。
func (y *YouTube) Platform() intent.Platform { return intent.PlatformYouTube }

// Lookup 通过 @handle 查询频道，再按发布时间取最近的视频。
func (y *YouTube) Lookup(ctx context.Context, handle string) (*Summary, error) {
	platform := intent.PlatformYouTube
	handle = normalizeHandle(handle)

	resp, err := y.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"part":      "snippet,contentDetails,statistics",
			"forHandle": handle,
			"key":       y.apiKey,
		}).
		Get("/youtube/v3/channels")
	if err != nil {
		return nil, lookupFailure(platform, handle, err, "请求 YouTube 频道失败")
	}
	if resp.IsError() {
		return nil, lookupFailure(platform, handle, nil, fmt.Sprintf("YouTube 频道接口返回错误状态 %d", resp.StatusCode()))
	}
	channel := gjson.GetBytes(resp.Body(), "items.0")
	if !channel.Exists() {
		return nil, lookupFailure(platform, handle, nil, "YouTube 频道不存在")
	}
	summary := &Summary{
		Platform:    platform,
		UserID:      channel.Get("id").String(),
		Handle:      handle,
		DisplayName: channel.Get("snippet.title").String(),
		Bio:         channel.Get("snippet.description").String(),
	}
	if custom := channel.Get("snippet.customUrl").String(); custom != "" {
		summary.Handle = custom
	}

	resp, err = y.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"channelId":  summary.UserID,
			"part":       "snippet,id",
			"order":      "date",
			"maxResults": youtubeSearchLimit,
			"key":        y.apiKey,
		}).
		Get("/youtube/v3/search")
	if err != nil {
		return nil, lookupFailure(platform, handle, err, "请求 YouTube 视频失败")
	}
	if resp.IsError() {
		return nil, lookupFailure(platform, handle, nil, fmt.Sprintf("YouTube 搜索接口返回错误状态 %d", resp.StatusCode()))
	}
	gjson.GetBytes(resp.Body(), "items").ForEach(func(_, item gjson.Result) bool {
		videoID := item.Get("id.videoId").String()
		if videoID == "" {
			return true
		}
		summary.Recent = &Media{
			URL:          youtubeWatchURL + videoID,
			Title:        item.Get("snippet.title").String(),
			Description:  item.Get("snippet.description").String(),
			ThumbnailURL: item.Get("snippet.thumbnails.high.url").String(),
			Source:       item.Get("snippet.channelTitle").String(),
		}
		return false
	})
	return summary, nil
}

func normalizeHandle(handle string) string {
	handle = strings.TrimSpace(handle)
	if strings.HasPrefix(handle, "@") {
		return handle
	}
	return "@" + handle
}
