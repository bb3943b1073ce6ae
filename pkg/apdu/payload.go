package apdu

import (
	"encoding/binary"

	"ledger-core/pkg/bip32"
)

// PathPayload GET_PUBLIC_KEY 负载: 编码后的路径
func PathPayload(path bip32.DerivationPath) ([]byte, error) {
	return path.Encode()
}

// TransactionPayload SIGN 负载: 路径 ‖ 未签名交易编码
func TransactionPayload(path bip32.DerivationPath, encodedTx []byte) ([]byte, error) {
	p, err := path.Encode()
	if err != nil {
		return nil, err
	}
	return append(p, encodedTx...), nil
}

// MessagePayload 个人消息/证书负载: 路径 ‖ 4 字节大端长度 ‖ 消息
func MessagePayload(path bip32.DerivationPath, message []byte) ([]byte, error) {
	p, err := path.Encode()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(p)+4+len(message))
	out = append(out, p...)
	out = binary.BigEndian.AppendUint32(out, uint32(len(message)))
	return append(out, message...), nil
}
