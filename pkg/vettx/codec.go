package vettx

import (
	"fmt"
	"math/big"

	"ledger-core/pkg/errno"

	"github.com/ethereum/go-ethereum/rlp"
)

// unsignedBody / signedBody 解码目标，字段顺序即线上顺序
type unsignedBody struct {
	ChainTag     uint8
	BlockRef     [8]byte
	Expiration   uint32
	Clauses      []Clause
	GasPriceCoef uint8
	Gas          uint64
	DependsOn    []byte
	Nonce        uint64
	Reserved     [][]byte
}

type signedBody struct {
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

// Encode 按指定形态输出规范 RLP 编码
// 宽度校验先于编码执行，失败返回 ErrFieldOverflow
func Encode(tx *Transaction, variant Variant) ([]byte, error) {
	if variant != Unsigned && variant != Signed {
		return nil, errno.Newf(errno.ErrInvalidInput, "variant", "unknown variant %d", int(variant))
	}
	if err := tx.validate(variant); err != nil {
		return nil, err
	}

	fields := []interface{}{
		tx.ChainTag,
		tx.BlockRef,
		tx.Expiration,
		normalizeClauses(tx.Clauses),
		tx.GasPriceCoef,
		tx.Gas,
		tx.DependsOn,
		tx.Nonce,
		normalizeReserved(tx.Reserved),
	}
	if variant == Signed {
		fields = append(fields, tx.Signature)
	}

	out, err := rlp.EncodeToBytes(fields)
	if err != nil {
		return nil, errno.Wrap(errno.ErrFieldOverflow, "transaction", err)
	}
	return out, nil
}

// Decode 解析规范 RLP 编码，按顶层元素个数判定形态
// 截断、长度不符、多余字节、非规范整数一律拒绝
func Decode(b []byte) (*Transaction, Variant, error) {
	kind, content, rest, err := rlp.Split(b)
	if err != nil {
		return nil, 0, errno.Wrap(errno.ErrMalformedEncoding, "transaction", err)
	}
	if kind != rlp.List {
		return nil, 0, errno.Newf(errno.ErrMalformedEncoding, "transaction", "top level is not a list")
	}
	if len(rest) > 0 {
		return nil, 0, errno.Newf(errno.ErrMalformedEncoding, "transaction", "%d trailing bytes", len(rest))
	}
	count, err := rlp.CountValues(content)
	if err != nil {
		return nil, 0, errno.Wrap(errno.ErrMalformedEncoding, "transaction", err)
	}

	var tx *Transaction
	var variant Variant
	switch count {
	case Unsigned.fieldCount():
		var body unsignedBody
		if err := rlp.DecodeBytes(b, &body); err != nil {
			return nil, 0, errno.Wrap(errno.ErrMalformedEncoding, "transaction", err)
		}
		tx = &Transaction{
			ChainTag:     body.ChainTag,
			BlockRef:     body.BlockRef,
			Expiration:   body.Expiration,
			Clauses:      body.Clauses,
			GasPriceCoef: body.GasPriceCoef,
			Gas:          body.Gas,
			DependsOn:    body.DependsOn,
			Nonce:        body.Nonce,
			Reserved:     body.Reserved,
		}
		variant = Unsigned
	case Signed.fieldCount():
		var body signedBody
		if err := rlp.DecodeBytes(b, &body); err != nil {
			return nil, 0, errno.Wrap(errno.ErrMalformedEncoding, "transaction", err)
		}
		tx = &Transaction{
			ChainTag:     body.ChainTag,
			BlockRef:     body.BlockRef,
			Expiration:   body.Expiration,
			Clauses:      body.Clauses,
			GasPriceCoef: body.GasPriceCoef,
			Gas:          body.Gas,
			DependsOn:    body.DependsOn,
			Nonce:        body.Nonce,
			Reserved:     body.Reserved,
			Signature:    body.Signature,
		}
		variant = Signed
	default:
		return nil, 0, errno.Newf(errno.ErrMalformedEncoding, "transaction", "%d top-level elements, want 9 or 10", count)
	}

	// 解码成功但超出字段宽度同样视为格式错误
	if err := tx.validate(variant); err != nil {
		return nil, 0, errno.Wrap(errno.ErrMalformedEncoding, "transaction", err)
	}
	return tx, variant, nil
}

func (tx *Transaction) validate(variant Variant) error {
	for i, c := range tx.Clauses {
		if c.Value == nil {
			continue
		}
		if c.Value.Sign() < 0 {
			return errno.Newf(errno.ErrFieldOverflow, fmt.Sprintf("clauses[%d].value", i), "negative value %s", c.Value)
		}
		if c.Value.BitLen() > MaxValueBits {
			return errno.Newf(errno.ErrFieldOverflow, fmt.Sprintf("clauses[%d].value", i), "%d bits, at most %d", c.Value.BitLen(), MaxValueBits)
		}
	}
	if n := len(tx.DependsOn); n != 0 && n != DependsOnLength {
		return errno.Newf(errno.ErrFieldOverflow, "dependsOn", "%d bytes, want 0 or %d", n, DependsOnLength)
	}
	if variant == Signed {
		if n := len(tx.Signature); n != 0 && n != SignatureLength {
			return errno.Newf(errno.ErrFieldOverflow, "signature", "%d bytes, want 0 or %d", n, SignatureLength)
		}
	}
	return nil
}

// normalizeClauses nil 金额按 0 编码
func normalizeClauses(clauses []Clause) []Clause {
	out := make([]Clause, len(clauses))
	for i, c := range clauses {
		out[i] = c
		if c.Value == nil {
			out[i].Value = new(big.Int)
		}
	}
	return out
}

func normalizeReserved(reserved [][]byte) [][]byte {
	if reserved == nil {
		return [][]byte{}
	}
	return reserved
}
