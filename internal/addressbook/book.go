// Package addressbook 提供符号化资产名称到链上标识符的静态映射。
package addressbook

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"Arya-Agent/internal/asset"
)

// Entry 描述一个已知资产。
type Entry struct {
	Symbol   string   `yaml:"symbol" json:"symbol"`
	Aliases  []string `yaml:"aliases" json:"aliases,omitempty"`
	Address  asset.ID `yaml:"address" json:"address"`
	Decimals int      `yaml:"decimals" json:"decimals"`
}

// Book 是构造后不可变的资产表，可安全地在并发流水线之间共享。
type Book struct {
	entries []Entry
	bySym   map[string]int
	byAddr  map[asset.ID]int
}

type document struct {
	Tokens []Entry `yaml:"tokens"`
}

// Default 返回内置的 Starknet 主网资产表。
func Default() *Book {
	book, err := New([]Entry{
		{Symbol: "BROTHER", Aliases: []string{"brother", "$brother"}, Address: asset.MustParse("0x03b405a98c9e795d427fe82cdeeeed803f221b52471e3a757574a2b4180793ee"), Decimals: 18},
		{Symbol: "BTC", Aliases: []string{"btc", "wbtc"}, Address: asset.MustParse("0x03fe2b97c1fd336e750087d68b9b867997fd64a2661ff3ca5a7c771641e8e7ac"), Decimals: 8},
		{Symbol: "ETH", Aliases: []string{"eth"}, Address: asset.MustParse("0x049d36570d4e46f48e99674bd3fcc84644ddd6b96f7c741b1562b82f9e004dc7"), Decimals: 18},
		{Symbol: "STRK", Aliases: []string{"strk"}, Address: asset.MustParse("0x04718f5a0fc34cc1af16a1cdee98ffb20c31f5cd61d6ab07201858f4287c938d"), Decimals: 18},
		{Symbol: "LORDS", Aliases: []string{"lords", "$lords"}, Address: asset.MustParse("0x0124aeb495b947201f5fac96fd1138e326ad86195b98df6dec9009158a533b49"), Decimals: 18},
	})
	if err != nil {
		panic(err)
	}
	return book
}

// New 校验并构造资产表；符号与别名大小写不敏感且不得重复。
func New(entries []Entry) (*Book, error) {
	book := &Book{
		entries: make([]Entry, 0, len(entries)),
		bySym:   make(map[string]int, len(entries)*2),
		byAddr:  make(map[asset.ID]int, len(entries)),
	}
	for _, entry := range entries {
		entry.Symbol = strings.ToUpper(strings.TrimSpace(entry.Symbol))
		if entry.Symbol == "" {
			return nil, fmt.Errorf("资产符号不能为空")
		}
		if entry.Address.IsZero() {
			return nil, fmt.Errorf("资产 %s 缺少地址", entry.Symbol)
		}
		if _, dup := book.byAddr[entry.Address]; dup {
			return nil, fmt.Errorf("资产地址重复: %s", entry.Address)
		}
		idx := len(book.entries)
		entry.Aliases = append([]string(nil), entry.Aliases...)
		for _, name := range append([]string{entry.Symbol}, entry.Aliases...) {
			key := normalize(name)
			if key == "" {
				continue
			}
			if prev, dup := book.bySym[key]; dup && prev != idx {
				return nil, fmt.Errorf("资产名称 %q 重复", name)
			}
			book.bySym[key] = idx
		}
		book.byAddr[entry.Address] = idx
		book.entries = append(book.entries, entry)
	}
	return book, nil
}

// Load 从 YAML 文件加载资产表，格式为 tokens: [{symbol, aliases, address, decimals}]。
func Load(path string) (*Book, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("资产表文件路径不能为空")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("解析资产表路径失败: %w", err)
	}
	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("读取资产表文件失败: %w", err)
	}
	var doc document
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("解析资产表文件失败: %w", err)
	}
	return New(doc.Tokens)
}

// Lookup 按符号或别名查找资产，忽略大小写与 $ 前缀。
func (b *Book) Lookup(name string) (Entry, bool) {
	if b == nil {
		return Entry{}, false
	}
	idx, ok := b.bySym[normalize(name)]
	if !ok {
		return Entry{}, false
	}
	return b.entries[idx], true
}

// ByAddress 按链上标识符反查资产。
func (b *Book) ByAddress(id asset.ID) (Entry, bool) {
	if b == nil {
		return Entry{}, false
	}
	idx, ok := b.byAddr[id]
	if !ok {
		return Entry{}, false
	}
	return b.entries[idx], true
}

// Entries 返回按符号排序的资产副本。
func (b *Book) Entries() []Entry {
	if b == nil {
		return nil
	}
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Render 生成供大模型参考的资产清单，每行形如 "- ETH/eth: 0x049d…"。
func (b *Book) Render() string {
	var builder strings.Builder
	for _, entry := range b.Entries() {
		names := append([]string{entry.Symbol}, entry.Aliases...)
		builder.WriteString(fmt.Sprintf("- %s: %s (decimals: %d)\n", strings.Join(names, "/"), entry.Address, entry.Decimals))
	}
	return builder.String()
}

func normalize(name string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), "$")
}
