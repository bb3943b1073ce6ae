package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"ledger-core/pkg/logger"

	"go.uber.org/zap"
)

const (
	// LengthPrefixSize 长度前缀字节数
	LengthPrefixSize = 4
	// StatusWordSize 响应末尾状态字字节数
	StatusWordSize = 2
	// MaxResponseSize 单条响应数据上限
	MaxResponseSize = 64 * 1024
	// DefaultTimeout 单次交换的默认超时
	DefaultTimeout = 30 * time.Second
)

var (
	ErrClosed           = errors.New("transport closed")
	ErrResponseTooLarge = errors.New("response too large")
	ErrFrameTruncated   = errors.New("frame truncated")
)

// Speculos 模拟器 APDU 端口的 TCP 客户端
// 请求: u32 BE 长度 ‖ APDU；响应: u32 BE 数据长度 ‖ 数据 ‖ SW1 ‖ SW2
type Speculos struct {
	mu      sync.Mutex
	conn    net.Conn
	timeout time.Duration
	log     *zap.Logger
}

// Dial 连接 speculos，timeout 同时作为连接超时与默认交换超时
func Dial(addr string, timeout time.Duration) (*Speculos, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return NewSpeculos(conn, timeout), nil
}

// NewSpeculos 包装一个已建立的连接
func NewSpeculos(conn net.Conn, timeout time.Duration) *Speculos {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Speculos{
		conn:    conn,
		timeout: timeout,
		log:     logger.Named("speculos").With(zap.String("remote", conn.RemoteAddr().String())),
	}
}

// Exchange 发送一条命令帧并读取完整响应
// 截止时间取 ctx 的 deadline 与默认超时中较早者
func (s *Speculos) Exchange(ctx context.Context, command []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	// ctx 取消时打断阻塞中的读写
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := s.writeFrame(command); err != nil {
		return nil, s.wrap(ctx, err)
	}
	out, err := s.readResponse()
	if err != nil {
		return nil, s.wrap(ctx, err)
	}
	s.log.Debug("exchange", zap.Int("sent", len(command)), zap.Int("received", len(out)))
	return out, nil
}

func (s *Speculos) writeFrame(command []byte) error {
	buf := make([]byte, 0, LengthPrefixSize+len(command))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(command)))
	buf = append(buf, command...)
	if _, err := s.conn.Write(buf); err != nil {
		return fmt.Errorf("failed to write apdu: %w", err)
	}
	return nil
}

func (s *Speculos) readResponse() ([]byte, error) {
	var lengthBuf [LengthPrefixSize]byte
	if _, err := io.ReadFull(s.conn, lengthBuf[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrFrameTruncated
		}
		return nil, fmt.Errorf("failed to read length prefix: %w", err)
	}

	length := binary.BigEndian.Uint32(lengthBuf[:])
	if length > MaxResponseSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrResponseTooLarge, length, MaxResponseSize)
	}

	out := make([]byte, int(length)+StatusWordSize)
	if _, err := io.ReadFull(s.conn, out); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, ErrFrameTruncated
		}
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return out, nil
}

// wrap 被 ctx 打断的 I/O 返回 ctx 的错误
func (s *Speculos) wrap(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", ctxErr, err)
	}
	// 连接截止时间可能先于 ctx 的计时器触发
	if d, ok := ctx.Deadline(); ok && !time.Now().Before(d) {
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return err
}

// Close 关闭连接，之后的 Exchange 返回 ErrClosed
func (s *Speculos) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
