// Package media 查询 Twitch 与 YouTube 上的创作者资料及其最新视频。
package media

import (
	"context"
	"fmt"

	xerrors "Arya-Agent/internal/errors"
	"Arya-Agent/internal/intent"
)

// ThumbnailSize 是 Twitch 缩略图模板中宽高占位符的替换值。
const ThumbnailSize = "500"

// Media 是创作者最近发布的一条视频。
type Media struct {
	URL          string `json:"url"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	ThumbnailURL string `json:"thumbnail_url"`
	Source       string `json:"source"`
}

// Summary 是平台无关的创作者资料。
type Summary struct {
	Platform    intent.Platform `json:"platform"`
	UserID      string          `json:"user_id"`
	Handle      string          `json:"handle"`
	DisplayName string          `json:"display_name,omitempty"`
	Bio         string          `json:"bio"`
	// Recent 为空表示该创作者没有任何视频。
	Recent *Media `json:"recent,omitempty"`
}

// Client 是单个平台的查询客户端。
type Client interface {
	Platform() intent.Platform
	Lookup(ctx context.Context, handle string) (*Summary, error)
}

// Directory 按平台分发查询请求。
type Directory struct {
	clients map[intent.Platform]Client
}

// NewDirectory 注册一组平台客户端，nil 会被忽略。
func NewDirectory(clients ...Client) *Directory {
	set := make(map[intent.Platform]Client, len(clients))
	for _, c := range clients {
		if c == nil {
			continue
		}
		set[c.Platform()] = c
	}
	return &Directory{clients: set}
}

// Lookup 在指定平台上查询创作者。
func (d *Directory) Lookup(ctx context.Context, platform intent.Platform, handle string) (*Summary, error) {
	if d == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "media directory not configured")
	}
	client, ok := d.clients[platform]
	if !ok {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, fmt.Sprintf("platform %s not configured", platform))
	}
	return client.Lookup(ctx, handle)
}

func lookupFailure(platform intent.Platform, handle string, cause error, message string) error {
	opts := []xerrors.Option{
		xerrors.WithMetadata("platform", string(platform)),
		xerrors.WithMetadata("handle", handle),
	}
	if cause == nil {
		return xerrors.New(xerrors.CodeLookupFailure, message, opts...)
	}
	return xerrors.Wrap(xerrors.CodeLookupFailure, cause, message, opts...)
}
