package intent

import (
	"fmt"
	"strings"

	xerrors "Arya-Agent/internal/errors"
)

// Action 是一条消息要执行的工作流动作。
type Action string

const (
	ActionSwap    Action = "swap"
	ActionPrice   Action = "price"
	ActionTwitch  Action = "twitch"
	ActionYouTube Action = "youtube"
)

// actionAliases 兼容智能体运行时常用的动作名称。
var actionAliases = map[string]Action{
	"swap":                     ActionSwap,
	"execute_starknet_swap":    ActionSwap,
	"starknet_swap_tokens":     ActionSwap,
	"starknet_token_swap":      ActionSwap,
	"starknet_trade_tokens":    ActionSwap,
	"starknet_exchange_tokens": ActionSwap,
	"price":                    ActionPrice,
	"get_starknet_token_price": ActionPrice,
	"starknet_token_price":     ActionPrice,
	"starknet_exchange_price":  ActionPrice,
	"twitch":                   ActionTwitch,
	"get_twitch_data":          ActionTwitch,
	"get_twitch_video":         ActionTwitch,
	"get_twitch_creator":       ActionTwitch,
	"get_twitch_user":          ActionTwitch,
	"youtube":                  ActionYouTube,
	"get_youtube_data":         ActionYouTube,
	"get_youtube_video":        ActionYouTube,
	"get_youtube_creator":      ActionYouTube,
	"get_youtube_user":         ActionYouTube,
	"get_youtube_handler":      ActionYouTube,
}

// ParseAction 解析动作名称，大小写不敏感。
func ParseAction(name string) (Action, error) {
	action, ok := actionAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("unknown action %q", name)
	}
	return action, nil
}

// FieldKind 决定字段的本地校验规则。
type FieldKind int

const (
	// FieldAsset 要求 0x 前缀、66 个字符的十六进制标识符。
	FieldAsset FieldKind = iota
	// FieldAmount 要求十进制或 0x 十六进制的非负整数。
	FieldAmount
	// FieldHandle 要求长度不小于 MinHandleLength 的字符串。
	FieldHandle
)

// Field 描述大模型输出对象中的一个字段。
type Field struct {
	Name        string
	Kind        FieldKind
	Description string
}

// Schema 描述目标意图的结构、提示词模板与示例。
type Schema struct {
	Action   Action
	Fields   []Field
	Guidance string
	Example  string
	// Grounding 是附加的参考资料，例如资产地址表。
	Grounding string
}

const responseRule = "Respond with a JSON markdown block containing only the extracted values. Use null for any values that cannot be determined."

// SwapSchema 返回兑换请求的抽取模式，grounding 为已知资产地址表。
func SwapSchema(grounding string) Schema {
	return Schema{
		Action: ActionSwap,
		Fields: []Field{
			{Name: "sellTokenAddress", Kind: FieldAsset, Description: "Sell token address"},
			{Name: "buyTokenAddress", Kind: FieldAsset, Description: "Buy token address"},
			{Name: "sellAmount", Kind: FieldAmount, Description: "Amount to sell (in wei, as a decimal string scaled by the token decimals)"},
		},
		Guidance:  "These are known addresses you will get asked to swap, use these addresses for sellTokenAddress and buyTokenAddress:",
		Grounding: grounding,
		Example: `{
    "sellTokenAddress": "0x049d36570d4e46f48e99674bd3fcc84644ddd6b96f7c741b1562b82f9e004dc7",
    "buyTokenAddress": "0x0124aeb495b947201f5fac96fd1138e326ad86195b98df6dec9009158a533b49",
    "sellAmount": "1000000000000000000"
}`,
	}
}

// PriceSchema 返回价格查询的抽取模式。
func PriceSchema(grounding string) Schema {
	return Schema{
		Action: ActionPrice,
		Fields: []Field{
			{Name: "getTokenAddress", Kind: FieldAsset, Description: "get token address"},
		},
		Guidance:  "User asks price of a token, you need to find the token address in the list below, use these addresses for getTokenAddress:",
		Grounding: grounding,
		Example: `{
    "getTokenAddress": "0x049d36570d4e46f48e99674bd3fcc84644ddd6b96f7c741b1562b82f9e004dc7"
}`,
	}
}

// TwitchSchema 返回 Twitch 用户查询的抽取模式。
func TwitchSchema() Schema {
	return Schema{
		Action: ActionTwitch,
		Fields: []Field{
			{Name: "twitchUser", Kind: FieldHandle, Description: "twitchUser"},
		},
		Guidance: `User asks for twitch, you need to find the username from the user input.
For example when user ask: "Get twitch user ABCDEF", the twitchUser is ABCDEF`,
		Example: `{
    "twitchUser": "somevalue"
}`,
	}
}

// YouTubeSchema 返回 YouTube 频道查询的抽取模式。
func YouTubeSchema() Schema {
	return Schema{
		Action: ActionYouTube,
		Fields: []Field{
			{Name: "youtubeHandler", Kind: FieldHandle, Description: "youtubeHandler"},
		},
		Guidance: `User asks for youtube, you need to find the username from the user input.
For example when user ask: "Get youtube user ABCDEF", the youtubeHandler is ABCDEF`,
		Example: `{
    "youtubeHandler": "somevalue"
}`,
	}
}

// actionFields 是每个动作要求的字段种类，按 Schema.Fields 的顺序排列。
var actionFields = map[Action][]FieldKind{
	ActionSwap:    {FieldAsset, FieldAsset, FieldAmount},
	ActionPrice:   {FieldAsset},
	ActionTwitch:  {FieldHandle},
	ActionYouTube: {FieldHandle},
}

// Validate 检查字段的数量、种类与名称是否符合动作要求，不符合时返回 INVALID_ARGUMENT。
func (s Schema) Validate() error {
	kinds, ok := actionFields[s.Action]
	if !ok {
		return xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("unsupported action %q", s.Action))
	}
	if len(s.Fields) != len(kinds) {
		return xerrors.New(xerrors.CodeInvalidArgument,
			fmt.Sprintf("动作 %s 需要 %d 个字段，模式提供了 %d 个", s.Action, len(kinds), len(s.Fields)))
	}
	seen := make(map[string]struct{}, len(s.Fields))
	for i, field := range s.Fields {
		if field.Kind != kinds[i] {
			return xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("字段 %s 的类型与动作 %s 不符", field.Name, s.Action))
		}
		name := strings.TrimSpace(field.Name)
		if name == "" {
			return xerrors.New(xerrors.CodeInvalidArgument, "字段名不能为空")
		}
		if _, dup := seen[name]; dup {
			return xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("字段 %s 重复", name))
		}
		seen[name] = struct{}{}
	}
	return nil
}

// SchemaFor 返回动作对应的抽取模式。
func SchemaFor(action Action, grounding string) (Schema, error) {
	switch action {
	case ActionSwap:
		return SwapSchema(grounding), nil
	case ActionPrice:
		return PriceSchema(grounding), nil
	case ActionTwitch:
		return TwitchSchema(), nil
	case ActionYouTube:
		return YouTubeSchema(), nil
	default:
		return Schema{}, fmt.Errorf("unknown action %q", action)
	}
}

// Instructions 渲染系统提示词。
func (s Schema) Instructions() string {
	var builder strings.Builder
	builder.WriteString(responseRule)
	builder.WriteString("\n\n")
	if s.Guidance != "" {
		builder.WriteString(s.Guidance)
		builder.WriteString("\n\n")
	}
	if grounding := strings.TrimSpace(s.Grounding); grounding != "" {
		builder.WriteString(grounding)
		builder.WriteString("\n\n")
	}
	builder.WriteString("Example response:\n```json\n")
	builder.WriteString(s.Example)
	builder.WriteString("\n```\n\nExtract the following information:\n")
	for _, field := range s.Fields {
		builder.WriteString("- ")
		builder.WriteString(field.Description)
		builder.WriteString("\n")
	}
	builder.WriteString("\n")
	builder.WriteString(responseRule)
	return builder.String()
}
