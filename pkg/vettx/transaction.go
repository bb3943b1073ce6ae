package vettx

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// SignatureLength r(32) + s(32) + v(1)
	SignatureLength = 65
	// DependsOnLength 依赖交易 ID 长度
	DependsOnLength = 32
	// MaxValueBits 金额上限 256 位
	MaxValueBits = 256
)

// Variant 编码形态
// Unsigned 不含签名字段 (签名哈希的输入)，Signed 在末尾多一个签名字段
type Variant int

const (
	Unsigned Variant = iota
	Signed
)

func (v Variant) String() string {
	switch v {
	case Unsigned:
		return "unsigned"
	case Signed:
		return "signed"
	default:
		return "unknown"
	}
}

// fieldCount 顶层列表元素个数
func (v Variant) fieldCount() int {
	if v == Signed {
		return 10
	}
	return 9
}

// Clause 一次调用: 目标地址 (nil 表示部署合约)、金额、调用数据
type Clause struct {
	To    *common.Address `rlp:"nil"`
	Value *big.Int
	Data  []byte
}

// Transaction VeChain 多子句交易
type Transaction struct {
	ChainTag     uint8
	BlockRef     [8]byte
	Expiration   uint32
	Clauses      []Clause
	GasPriceCoef uint8
	Gas          uint64
	DependsOn    []byte
	Nonce        uint64
	Reserved     [][]byte
	Signature    []byte
}

// Copy 深拷贝，返回的交易与原交易不共享任何切片
func (tx *Transaction) Copy() *Transaction {
	cpy := *tx
	cpy.Clauses = make([]Clause, len(tx.Clauses))
	for i, c := range tx.Clauses {
		cpy.Clauses[i] = c.copy()
	}
	cpy.DependsOn = common.CopyBytes(tx.DependsOn)
	if tx.Reserved != nil {
		cpy.Reserved = make([][]byte, len(tx.Reserved))
		for i, r := range tx.Reserved {
			cpy.Reserved[i] = common.CopyBytes(r)
		}
	}
	cpy.Signature = common.CopyBytes(tx.Signature)
	return &cpy
}

func (c Clause) copy() Clause {
	out := Clause{Data: common.CopyBytes(c.Data)}
	if c.To != nil {
		to := *c.To
		out.To = &to
	}
	if c.Value != nil {
		out.Value = new(big.Int).Set(c.Value)
	}
	return out
}

// TotalValue 所有子句金额之和
func (tx *Transaction) TotalValue() *big.Int {
	total := new(big.Int)
	for _, c := range tx.Clauses {
		if c.Value != nil {
			total.Add(total, c.Value)
		}
	}
	return total
}

// HasData 是否存在携带调用数据的子句
func (tx *Transaction) HasData() bool {
	for _, c := range tx.Clauses {
		if len(c.Data) > 0 {
			return true
		}
	}
	return false
}
