package media

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"Arya-Agent/internal/intent"
)

const (
	defaultTwitchBaseURL  = "https://api.twitch.tv"
	defaultTwitchTokenURL = "https://id.twitch.tv/oauth2/token"
)

// TwitchConfig 描述 Twitch Helix 接口的访问凭据。
// 配置 AccessToken 时直接使用该令牌，否则以 ClientSecret 走 client credentials 流程换取应用令牌。
type TwitchConfig struct {
	ClientID     string
	ClientSecret string
	AccessToken  string
	BaseURL      string
	TokenURL     string
	Timeout      time.Duration
}

// Twitch 查询 Twitch 用户及其最新视频。
type Twitch struct {
	http *resty.Client
}

// NewTwitch 创建 Twitch 客户端。
func NewTwitch(cfg TwitchConfig) (*Twitch, error) {
	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		return nil, errors.New("未配置 Twitch Client-Id")
	}
	var source oauth2.TokenSource
	switch {
	case strings.TrimSpace(cfg.AccessToken) != "":
		source = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: strings.TrimSpace(cfg.AccessToken), TokenType: "Bearer"})
	case strings.TrimSpace(cfg.ClientSecret) != "":
		tokenURL := cfg.TokenURL
		if tokenURL == "" {
			tokenURL = defaultTwitchTokenURL
		}
		credentials := &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: strings.TrimSpace(cfg.ClientSecret),
			TokenURL:     tokenURL,
			AuthStyle:    oauth2.AuthStyleInParams,
		}
		source = credentials.TokenSource(context.Background())
	default:
		return nil, errors.New("未配置 Twitch 访问令牌或 Client Secret")
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultTwitchBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: &oauth2.Transport{Source: oauth2.ReuseTokenSource(nil, source)},
	}
	client := resty.NewWithClient(httpClient).
		SetBaseURL(base).
		SetHeader("Client-Id", clientID).
		SetHeader("Accept", "application/json")
	return &Twitch{http: client}, nil
}

// Platform 返回 twitch。
func (t *Twitch) Platform() intent.Platform { return intent.PlatformTwitch }

type twitchUser struct {
	ID          string `json:"id"`
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

type twitchVideo struct {
	ID           string `json:"id"`
	StreamID     string `json:"stream_id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// Lookup 依次查询用户与其视频列表，视频列表的第一条作为最新视频。
func (t *Twitch) Lookup(ctx context.Context, handle string) (*Summary, error) {
	platform := intent.PlatformTwitch
	var users struct {
		Data []twitchUser `json:"data"`
	}
	resp, err := t.http.R().SetContext(ctx).SetQueryParam("login", handle).SetResult(&users).Get("/helix/users")
	if err != nil {
		return nil, lookupFailure(platform, handle, err, "请求 Twitch 用户失败")
	}
	if resp.IsError() {
		return nil, lookupFailure(platform, handle, nil, fmt.Sprintf("Twitch 用户接口返回错误状态 %d", resp.StatusCode()))
	}
	if len(users.Data) == 0 {
		return nil, lookupFailure(platform, handle, nil, "Twitch 用户不存在")
	}
	user := users.Data[0]
	summary := &Summary{
		Platform:    platform,
		UserID:      user.ID,
		Handle:      user.Login,
		DisplayName: user.DisplayName,
		Bio:         user.Description,
	}

	var videos struct {
		Data []twitchVideo `json:"data"`
	}
	resp, err = t.http.R().SetContext(ctx).SetQueryParam("user_id", user.ID).SetResult(&videos).Get("/helix/videos")
	if err != nil {
		return nil, lookupFailure(platform, handle, err, "请求 Twitch 视频失败")
	}
	if resp.IsError() {
		return nil, lookupFailure(platform, handle, nil, fmt.Sprintf("Twitch 视频接口返回错误状态 %d", resp.StatusCode()))
	}
	if len(videos.Data) > 0 {
		video := videos.Data[0]
		summary.Recent = &Media{
			URL:          video.URL,
			Title:        video.Title,
			Description:  video.Description,
			ThumbnailURL: sizeThumbnail(video.ThumbnailURL),
			Source:       "StreamID " + video.StreamID,
		}
	}
	return summary, nil
}

func sizeThumbnail(template string) string {
	return strings.NewReplacer("%{width}", ThumbnailSize, "%{height}", ThumbnailSize).Replace(template)
}
