package starknet

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ExecutionStatus 是交易回执中的执行结果。
type ExecutionStatus string

const (
	ExecutionSucceeded ExecutionStatus = "SUCCEEDED"
	ExecutionReverted  ExecutionStatus = "REVERTED"
)

// Call 是一次合约调用，字段与 AVNU build 接口返回的结构一致。
type Call struct {
	ContractAddress string   `json:"contractAddress"`
	Entrypoint      string   `json:"entrypoint"`
	Calldata        []string `json:"calldata"`
}

// Receipt 是 starknet_getTransactionReceipt 返回结果的子集。
type Receipt struct {
	TransactionHash string          `json:"transaction_hash"`
	ExecutionStatus ExecutionStatus `json:"execution_status"`
	FinalityStatus  string          `json:"finality_status"`
	RevertReason    string          `json:"revert_reason,omitempty"`
}

// Succeeded 判断交易是否执行成功。
func (r *Receipt) Succeeded() bool {
	return r != nil && r.ExecutionStatus == ExecutionSucceeded
}

var selectorMask = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 250), big.NewInt(1))

// Selector 计算入口函数选择器：keccak256(name) 取低 250 位。
func Selector(name string) string {
	digest := new(big.Int).SetBytes(crypto.Keccak256([]byte(name)))
	return hexutil.EncodeBig(digest.And(digest, selectorMask))
}

var twoPow128 = new(big.Int).Lsh(big.NewInt(1), 128)

// joinU256 把 (low, high) 两个 felt 合并为 u256。
func joinU256(low, high *big.Int) *big.Int {
	value := new(big.Int).Mul(high, twoPow128)
	return value.Add(value, low)
}
