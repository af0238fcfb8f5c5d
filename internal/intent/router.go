package intent

import (
	"strings"
	"unicode"
)

var (
	swapVerbs    = []string{"swap", "trade", "exchange", "sell", "buy"}
	pricePhrases = []string{"price", "how much", "worth", "cost"}
)

// Route 在调用方未指定动作时，根据关键词确定性地选择工作流。
// 价格关键词优先于兑换关键词，只有同时带有数量的消息才会路由到兑换。
func Route(message string) (Action, bool) {
	text := strings.ToLower(message)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.'
	})
	switch {
	case strings.Contains(text, "twitch"):
		return ActionTwitch, true
	case strings.Contains(text, "youtube"):
		return ActionYouTube, true
	case containsAny(text, pricePhrases):
		return ActionPrice, true
	case hasAnyWord(words, swapVerbs) && hasAmount(words):
		return ActionSwap, true
	default:
		return "", false
	}
}

func containsAny(text string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

func hasAnyWord(words, candidates []string) bool {
	for _, word := range words {
		word = strings.Trim(word, ".")
		for _, candidate := range candidates {
			if word == candidate {
				return true
			}
		}
	}
	return false
}

// hasAmount 判断是否存在以数字开头的词，如 10、0.5、1e18。
func hasAmount(words []string) bool {
	for _, word := range words {
		if word != "" && unicode.IsDigit(rune(word[0])) {
			return true
		}
	}
	return false
}
