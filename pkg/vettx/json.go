package vettx

import (
	"encoding/json"
	"fmt"
	"math/big"

	"ledger-core/pkg/errno"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/shopspring/decimal"
)

// VETDecimals 1 VET = 10^18 wei
const VETDecimals = 18

type clauseJSON struct {
	To    *common.Address       `json:"to"`
	Value *math.HexOrDecimal256 `json:"value"`
	Data  hexutil.Bytes         `json:"data"`
}

type transactionJSON struct {
	ChainTag     math.HexOrDecimal64 `json:"chainTag"`
	BlockRef     hexutil.Bytes       `json:"blockRef"`
	Expiration   math.HexOrDecimal64 `json:"expiration"`
	Clauses      []clauseJSON        `json:"clauses"`
	GasPriceCoef math.HexOrDecimal64 `json:"gasPriceCoef"`
	Gas          math.HexOrDecimal64 `json:"gas"`
	DependsOn    hexutil.Bytes       `json:"dependsOn"`
	Nonce        math.HexOrDecimal64 `json:"nonce"`
	Reserved     []hexutil.Bytes     `json:"reserved,omitempty"`
	Signature    hexutil.Bytes       `json:"signature,omitempty"`
}

// MarshalJSON 数值字段以 0x 十六进制输出，字节字段以 0x 十六进制输出
func (tx *Transaction) MarshalJSON() ([]byte, error) {
	enc := transactionJSON{
		ChainTag:     math.HexOrDecimal64(tx.ChainTag),
		BlockRef:     tx.BlockRef[:],
		Expiration:   math.HexOrDecimal64(tx.Expiration),
		Clauses:      make([]clauseJSON, len(tx.Clauses)),
		GasPriceCoef: math.HexOrDecimal64(tx.GasPriceCoef),
		Gas:          math.HexOrDecimal64(tx.Gas),
		DependsOn:    tx.DependsOn,
		Nonce:        math.HexOrDecimal64(tx.Nonce),
		Signature:    tx.Signature,
	}
	for i, c := range tx.Clauses {
		value := new(big.Int)
		if c.Value != nil {
			value.Set(c.Value)
		}
		enc.Clauses[i] = clauseJSON{To: c.To, Value: (*math.HexOrDecimal256)(value), Data: c.Data}
	}
	for _, r := range tx.Reserved {
		enc.Reserved = append(enc.Reserved, r)
	}
	return json.Marshal(&enc)
}

// UnmarshalJSON 数值字段接受十进制或 0x 十六进制，超出字段宽度返回 ErrInvalidInput
func (tx *Transaction) UnmarshalJSON(input []byte) error {
	var dec transactionJSON
	if err := json.Unmarshal(input, &dec); err != nil {
		return errno.Wrap(errno.ErrInvalidInput, "transaction", err)
	}

	if len(dec.BlockRef) != len(tx.BlockRef) {
		return errno.Newf(errno.ErrInvalidInput, "blockRef", "%d bytes, want 8", len(dec.BlockRef))
	}
	if err := checkWidth("chainTag", uint64(dec.ChainTag), 8); err != nil {
		return err
	}
	if err := checkWidth("expiration", uint64(dec.Expiration), 32); err != nil {
		return err
	}
	if err := checkWidth("gasPriceCoef", uint64(dec.GasPriceCoef), 8); err != nil {
		return err
	}

	out := Transaction{
		ChainTag:     uint8(dec.ChainTag),
		Expiration:   uint32(dec.Expiration),
		Clauses:      make([]Clause, len(dec.Clauses)),
		GasPriceCoef: uint8(dec.GasPriceCoef),
		Gas:          uint64(dec.Gas),
		DependsOn:    dec.DependsOn,
		Nonce:        uint64(dec.Nonce),
		Signature:    dec.Signature,
	}
	copy(out.BlockRef[:], dec.BlockRef)
	for i, c := range dec.Clauses {
		value := new(big.Int)
		if c.Value != nil {
			value.Set((*big.Int)(c.Value))
		}
		out.Clauses[i] = Clause{To: c.To, Value: value, Data: c.Data}
	}
	for _, r := range dec.Reserved {
		out.Reserved = append(out.Reserved, r)
	}
	*tx = out
	return nil
}

func checkWidth(field string, v uint64, bits uint) error {
	if v>>bits != 0 {
		return errno.Newf(errno.ErrInvalidInput, field, "%d does not fit in %d bits", v, bits)
	}
	return nil
}

// FormatVET 把 wei 金额格式化为 VET，去掉末尾的 0
func FormatVET(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -VETDecimals).String()
}

// ParseVET 把十进制 VET 金额 (如 "1.5") 转为 wei，超过 18 位小数报错
func ParseVET(amount string) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, errno.Wrap(errno.ErrInvalidInput, "amount", err)
	}
	if d.IsNegative() {
		return nil, errno.Newf(errno.ErrInvalidInput, "amount", "negative amount %s", amount)
	}
	wei := d.Shift(VETDecimals)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, errno.Newf(errno.ErrInvalidInput, "amount", "more than %d decimals", VETDecimals)
	}
	return wei.BigInt(), nil
}

// String 便于日志输出
func (c Clause) String() string {
	to := "<contract creation>"
	if c.To != nil {
		to = c.To.Hex()
	}
	return fmt.Sprintf("%s %s VET (%d bytes data)", to, FormatVET(c.Value), len(c.Data))
}
