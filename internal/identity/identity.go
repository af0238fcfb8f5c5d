// Package identity 从创作者简介中提取自述的链上身份。
package identity

import (
	"regexp"
	"strings"

	"Arya-Agent/internal/asset"
)

var (
	addressPattern = regexp.MustCompile(`\b0x[0-9a-fA-F]{1,64}\b`)
	namePattern    = regexp.MustCompile(`(?i)\b(?:[a-z0-9](?:[a-z0-9-]*[a-z0-9])?\.)+stark\b`)
)

// Claim 是简介中出现的身份声明，两个字段都可能缺失。
type Claim struct {
	Address *asset.ID
	Name    string
}

// Empty 判断声明是否不含任何信息。
func (c Claim) Empty() bool {
	return c.Address == nil && c.Name == ""
}

// Parse 提取第一个地址形态的片段和第一个 .stark 域名，从不失败。
func Parse(bio string) Claim {
	var claim Claim
	for _, candidate := range addressPattern.FindAllString(bio, -1) {
		id, err := asset.ParseLoose(candidate)
		if err != nil {
			continue
		}
		claim.Address = &id
		break
	}
	if name := namePattern.FindString(bio); name != "" {
		claim.Name = strings.ToLower(name)
	}
	return claim
}
