package intent

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/tidwall/gjson"

	"Arya-Agent/internal/asset"
	xerrors "Arya-Agent/internal/errors"
	"Arya-Agent/internal/llm"
	"Arya-Agent/pkg/logger"
)

// Turn 是对话上下文中的一条历史消息。
type Turn struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Extractor 负责把自然语言消息转换为强类型意图。
type Extractor struct {
	client llm.Client
	log    *slog.Logger
}

// ExtractorOption 自定义 Extractor。
type ExtractorOption func(*Extractor)

// WithExtractorLogger 指定日志实例。
func WithExtractorLogger(l *slog.Logger) ExtractorOption {
	return func(e *Extractor) {
		if l != nil {
			e.log = l
		}
	}
}

// NewExtractor 创建意图抽取器。
func NewExtractor(client llm.Client, opts ...ExtractorOption) *Extractor {
	e := &Extractor{client: client}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if e.log == nil {
		e.log = logger.Named("intent")
	}
	return e
}

// Extract 调用一次大模型并在本地校验输出，校验失败不会重试。
func (e *Extractor) Extract(ctx context.Context, message string, history []Turn, schema Schema) (Intent, error) {
	if e == nil || e.client == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "intent extractor not configured")
	}
	if strings.TrimSpace(message) == "" {
		return nil, xerrors.New(xerrors.CodeExtractionFailure, "empty message")
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	resp, err := e.client.Generate(ctx, llm.Request{
		Instructions: schema.Instructions(),
		Input:        renderInput(message, history),
		Format:       llm.FormatJSON,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, xerrors.Wrap(xerrors.CodeTimeout, ctxErr, "大模型调用超时")
		}
		return nil, xerrors.Wrap(xerrors.CodeExtractionFailure, err, "大模型调用失败")
	}

	payload := stripFence(resp.Content)
	if !gjson.Valid(payload) {
		return nil, xerrors.New(xerrors.CodeExtractionFailure, "大模型输出不是合法 JSON")
	}
	root := gjson.Parse(payload)
	if !root.IsObject() {
		return nil, xerrors.New(xerrors.CodeExtractionFailure, "大模型输出不是 JSON 对象")
	}

	values := make([]fieldValue, 0, len(schema.Fields))
	for _, field := range schema.Fields {
		raw := root.Get(field.Name)
		if raw.Type != gjson.String {
			return nil, fieldError(field, "缺失或不是字符串")
		}
		value, err := parseField(field, raw.Str)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}

	intent := build(schema.Action, values)
	e.log.Debug("意图抽取完成", slog.String("action", string(schema.Action)), slog.String("intent", intent.String()))
	return intent, nil
}

// fieldValue 是按 FieldKind 校验后的字段值，只有与 Kind 对应的成员有效。
type fieldValue struct {
	asset  asset.ID
	amount *big.Int
	handle string
}

func parseField(field Field, raw string) (fieldValue, error) {
	raw = strings.TrimSpace(raw)
	switch field.Kind {
	case FieldAsset:
		id, err := asset.Parse(raw)
		if err != nil {
			return fieldValue{}, xerrors.Wrap(xerrors.CodeExtractionFailure, err, "资产标识不合法", xerrors.WithMetadata("field", field.Name))
		}
		return fieldValue{asset: id}, nil
	case FieldAmount:
		if raw == "" || strings.HasPrefix(raw, "-") {
			return fieldValue{}, fieldError(field, "数量必须是非负整数")
		}
		amount, ok := math.ParseBig256(raw)
		if !ok {
			return fieldValue{}, fieldError(field, "数量无法解析")
		}
		return fieldValue{amount: amount}, nil
	case FieldHandle:
		if len(raw) < MinHandleLength {
			return fieldValue{}, fieldError(field, fmt.Sprintf("账号名长度不能小于 %d", MinHandleLength))
		}
		return fieldValue{handle: raw}, nil
	default:
		return fieldValue{}, fieldError(field, "字段类型未知")
	}
}

// build 组装意图。调用前 Schema.Validate 已保证 values 的数量与种类符合动作要求。
func build(action Action, values []fieldValue) Intent {
	switch action {
	case ActionSwap:
		return SwapIntent{SellAsset: values[0].asset, BuyAsset: values[1].asset, SellAmount: values[2].amount}
	case ActionPrice:
		return PriceIntent{Asset: values[0].asset}
	case ActionYouTube:
		return SocialLookupIntent{Platform: PlatformYouTube, Handle: values[0].handle}
	default:
		return SocialLookupIntent{Platform: PlatformTwitch, Handle: values[0].handle}
	}
}

func fieldError(field Field, message string) error {
	return xerrors.New(xerrors.CodeExtractionFailure, fmt.Sprintf("字段 %s %s", field.Name, message), xerrors.WithMetadata("field", field.Name))
}

func renderInput(message string, history []Turn) string {
	var builder strings.Builder
	if len(history) > 0 {
		builder.WriteString("Recent messages:\n")
		for _, turn := range history {
			speaker := turn.Speaker
			if speaker == "" {
				speaker = "user"
			}
			builder.WriteString(speaker)
			builder.WriteString(": ")
			builder.WriteString(turn.Text)
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}
	builder.WriteString("Latest message:\n")
	builder.WriteString(strings.TrimSpace(message))
	return builder.String()
}

// stripFence 去掉大模型常见的 ```json 代码块包裹。
func stripFence(content string) string {
	text := strings.TrimSpace(content)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[idx+1:]
	} else {
		text = ""
	}
	if end := strings.LastIndex(text, "```"); end >= 0 {
		text = text[:end]
	}
	return strings.TrimSpace(text)
}
