package vettx

import (
	"ledger-core/pkg/crypto_util"
	"ledger-core/pkg/errno"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SigningHash 签名哈希: blake2b-256(未签名编码)
func (tx *Transaction) SigningHash() (common.Hash, error) {
	unsigned, err := Encode(tx, Unsigned)
	if err != nil {
		return common.Hash{}, err
	}
	return common.Hash(crypto_util.Blake2b256(unsigned)), nil
}

// WithSignature 返回带签名的副本，原交易不变
func (tx *Transaction) WithSignature(sig []byte) (*Transaction, error) {
	if len(sig) != SignatureLength {
		return nil, errno.Newf(errno.ErrInvalidInput, "signature", "%d bytes, want %d", len(sig), SignatureLength)
	}
	cpy := tx.Copy()
	cpy.Signature = common.CopyBytes(sig)
	return cpy, nil
}

// Signer 从 r‖s‖v 签名恢复发起方地址
func (tx *Transaction) Signer() (common.Address, error) {
	if len(tx.Signature) != SignatureLength {
		return common.Address{}, errno.Newf(errno.ErrInvalidInput, "signature", "transaction is not signed")
	}
	hash, err := tx.SigningHash()
	if err != nil {
		return common.Address{}, err
	}
	pub, err := crypto.SigToPub(hash[:], tx.Signature)
	if err != nil {
		return common.Address{}, errno.Wrap(errno.ErrInvalidInput, "signature", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// ID 交易 ID: blake2b-256(签名哈希 ‖ 发起方地址)
func (tx *Transaction) ID() (common.Hash, error) {
	signer, err := tx.Signer()
	if err != nil {
		return common.Hash{}, err
	}
	hash, err := tx.SigningHash()
	if err != nil {
		return common.Hash{}, err
	}
	return common.Hash(crypto_util.Blake2b256(hash[:], signer[:])), nil
}
