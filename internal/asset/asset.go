// Package asset defines the canonical 32-byte Starknet identifier shared by
// tokens, accounts and contracts.
package asset

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Length 是标识符的字节长度。
const Length = 32

// textLength 是规范文本形式 "0x" + 64 个十六进制字符的长度。
const textLength = 2 + Length*2

var (
	// ErrPrefix 表示标识符缺少 0x 前缀。
	ErrPrefix = errors.New("asset id must start with 0x")
	// ErrLength 表示标识符长度不是 66 个字符。
	ErrLength = fmt.Errorf("asset id must be %d characters long", textLength)
	// ErrHex 表示标识符包含非十六进制字符。
	ErrHex = errors.New("asset id must be hexadecimal")
)

// ID 是不透明的 32 字节链上标识符，按字节比较相等。
type ID [Length]byte

// Parse 严格解析规范文本形式：小写 0x 前缀、66 个字符、仅含十六进制字符。
func Parse(text string) (ID, error) {
	var id ID
	if !strings.HasPrefix(text, "0x") {
		return id, ErrPrefix
	}
	if len(text) != textLength {
		return id, ErrLength
	}
	raw, err := hexutil.Decode(text)
	if err != nil {
		return id, fmt.Errorf("%w: %v", ErrHex, err)
	}
	copy(id[:], raw)
	return id, nil
}

// MustParse 与 Parse 相同，但在失败时 panic，仅用于常量表。
func MustParse(text string) ID {
	id, err := Parse(text)
	if err != nil {
		panic(fmt.Sprintf("asset: %q: %v", text, err))
	}
	return id
}

// FromBig 将不超过 32 字节的整数左补零为标识符。
func FromBig(v *big.Int) (ID, error) {
	var id ID
	if v == nil || v.Sign() < 0 {
		return id, errors.New("asset id must be a non-negative integer")
	}
	if v.BitLen() > Length*8 {
		return id, ErrLength
	}
	v.FillBytes(id[:])
	return id, nil
}

// ParseLoose 接受 0x 前缀后 1 到 64 位十六进制数字，并左补零到 32 字节。
// 链上地址常以去掉前导零的形式出现在自由文本中。
func ParseLoose(text string) (ID, error) {
	if !strings.HasPrefix(text, "0x") {
		return ID{}, ErrPrefix
	}
	digits := text[2:]
	if len(digits) == 0 || len(digits) > Length*2 {
		return ID{}, ErrLength
	}
	return Parse("0x" + strings.Repeat("0", Length*2-len(digits)) + digits)
}

// String 返回小写的规范文本形式。
func (id ID) String() string {
	return hexutil.Encode(id[:])
}

// Big 返回标识符的整数值，用作链上 felt。
func (id ID) Big() *big.Int {
	return new(big.Int).SetBytes(id[:])
}

// Felt 返回去掉前导零的十六进制形式，与 Starknet JSON-RPC 的 felt 编码一致。
func (id ID) Felt() string {
	return hexutil.EncodeBig(id.Big())
}

// IsZero 判断是否为全零标识符。
func (id ID) IsZero() bool {
	return id == ID{}
}

// MarshalText 实现 encoding.TextMarshaler。
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler，使用严格解析。
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
