package errno

import (
	"errors"
	"fmt"
)

// SWOk 设备成功状态字
const SWOk uint16 = 0x9000

// Device Status Errors (20400+)
// 错误码 = 20400 + 表内序号，原始状态字保存在 StatusError.SW
var (
	ErrUnknownDestination = Errno{Kind: KindDeviceStatus, Code: 20401, Message: "LEDGER_UNKNOWN_DESTINATION"}
	ErrNonZeroAmount      = Errno{Kind: KindDeviceStatus, Code: 20402, Message: "LEDGER_NON_ZERO_AMOUNT"}
	ErrUserCancelled      = Errno{Kind: KindDeviceStatus, Code: 20403, Message: "LEDGER_TRANSACTION_CANCELLED"}
	ErrTechnicalProblem   = Errno{Kind: KindDeviceStatus, Code: 20404, Message: "LEDGER_TECHNICAL_PROBLEM"}
	ErrIncorrectData      = Errno{Kind: KindDeviceStatus, Code: 20405, Message: "LEDGER_INCORRECT_DATA"}
	ErrIncorrectP1P2      = Errno{Kind: KindDeviceStatus, Code: 20406, Message: "LEDGER_INCORRECT_P1_P2"}
	ErrInvalidMessageSize = Errno{Kind: KindDeviceStatus, Code: 20407, Message: "LEDGER_INVALID_MESSAGE_SIZE"}
	ErrNotEnoughMemory    = Errno{Kind: KindDeviceStatus, Code: 20408, Message: "LEDGER_NOT_ENOUGH_MEMORY_SPACE"}
	ErrClaNotSupported    = Errno{Kind: KindDeviceStatus, Code: 20409, Message: "LEDGER_CLA_NOT_SUPPORTED"}
	ErrInsNotSupported    = Errno{Kind: KindDeviceStatus, Code: 20410, Message: "LEDGER_INS_NOT_SUPPORTED"}
	ErrSecurityStatus     = Errno{Kind: KindDeviceStatus, Code: 20411, Message: "LEDGER_SECURITY_STATUS_NOT_SATISFIED"}
	ErrUnrecognizedStatus = Errno{Kind: KindDeviceStatus, Code: 20499, Message: "UNRECOGNIZED_ERROR_CODE"}
)

// statusTable 状态字到错误的映射，只读
var statusTable = map[uint16]Errno{
	0x6A88: ErrUnknownDestination,
	0x6A87: ErrNonZeroAmount,
	0x6985: ErrUserCancelled,
	0x6F00: ErrTechnicalProblem,
	0x6A80: ErrIncorrectData,
	0x6B00: ErrIncorrectP1P2,
	0x6A83: ErrInvalidMessageSize,
	0x6A84: ErrNotEnoughMemory,
	0x6E00: ErrClaNotSupported,
	0x6D00: ErrInsNotSupported,
	0x6982: ErrSecurityStatus,
}

// StatusError 设备返回的失败状态字
type StatusError struct {
	Errno
	SW uint16
}

// Hex 返回 4 位大写十六进制状态字，如 "6985"
func (e *StatusError) Hex() string {
	return fmt.Sprintf("%04X", e.SW)
}

func (e *StatusError) Error() string {
	if e.Code == ErrUnrecognizedStatus.Code {
		return e.Message + "_" + e.Hex()
	}
	return fmt.Sprintf("%s (0x%s)", e.Message, e.Hex())
}

func (e *StatusError) Is(target error) bool {
	return matchCode(e.Code, target)
}

// MapStatus 把非成功状态字翻译为具名错误；0x9000 返回 nil
func MapStatus(sw uint16) error {
	if sw == SWOk {
		return nil
	}
	if base, ok := statusTable[sw]; ok {
		return &StatusError{Errno: base, SW: sw}
	}
	return &StatusError{Errno: ErrUnrecognizedStatus, SW: sw}
}

// StatusWord 从错误链中取出设备状态字 ("6985")
func StatusWord(err error) (string, bool) {
	var status *StatusError
	if errors.As(err, &status) {
		return status.Hex(), true
	}
	return "", false
}
