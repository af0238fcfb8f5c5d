// Package auth 为 HTTP API 提供基于静态 API Key 的 Bearer 认证。
package auth

import (
	"crypto/subtle"
	"strings"

	xerrors "Arya-Agent/internal/errors"
)

// Mode 表示认证模式。
type Mode string

const (
	ModeDisabled Mode = "disabled"
	ModeAPIKey   Mode = "api_key"
)

const (
	CodeMissingToken xerrors.Code = "AUTH_MISSING_TOKEN"
	CodeInvalidToken xerrors.Code = "AUTH_INVALID_TOKEN"
)

var (
	// ErrMissingToken 表示请求未携带凭据。
	ErrMissingToken = xerrors.New(CodeMissingToken, "缺少访问令牌")
	// ErrInvalidToken 表示凭据不在允许列表中。
	ErrInvalidToken = xerrors.New(CodeInvalidToken, "访问令牌无效")
)

func init() {
	xerrors.Register(CodeMissingToken, xerrors.Attributes{Message: "missing token", Severity: xerrors.SeverityInfo})
	xerrors.Register(CodeInvalidToken, xerrors.Attributes{Message: "invalid token", Severity: xerrors.SeverityWarning})
}

// Subject 是通过认证的调用方。
type Subject struct {
	// Name 是 API Key 配置的名称，用于审计。
	Name string
}

// Key 是一条允许访问 API 的密钥。
type Key struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Service 校验请求携带的 API Key。
type Service struct {
	mode Mode
	keys []Key
}

// NewService 构造认证服务。没有可用密钥时认证被关闭。
func NewService(keys []Key) *Service {
	valid := make([]Key, 0, len(keys))
	for _, key := range keys {
		if strings.TrimSpace(key.Value) == "" {
			continue
		}
		if key.Name == "" {
			key.Name = "default"
		}
		valid = append(valid, key)
	}
	mode := ModeAPIKey
	if len(valid) == 0 {
		mode = ModeDisabled
	}
	return &Service{mode: mode, keys: valid}
}

// Mode 返回当前认证模式。
func (s *Service) Mode() Mode {
	if s == nil {
		return ModeDisabled
	}
	return s.mode
}

// AuthenticateRequest 解析 Authorization 头并匹配密钥，比较为常数时间。
func (s *Service) AuthenticateRequest(header string) (*Subject, error) {
	token := strings.TrimSpace(header)
	if token == "" {
		return nil, ErrMissingToken
	}
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		return nil, ErrMissingToken
	}
	for _, key := range s.keys {
		if subtle.ConstantTimeCompare([]byte(token), []byte(key.Value)) == 1 {
			return &Subject{Name: key.Name}, nil
		}
	}
	return nil, ErrInvalidToken
}
