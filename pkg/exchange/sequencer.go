package exchange

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"ledger-core/pkg/apdu"
	"ledger-core/pkg/errno"
	"ledger-core/pkg/logger"
	"ledger-core/pkg/monitor"

	"go.uber.org/zap"
)

// Transport 半双工通道: 发送一条命令帧，返回响应数据 ‖ SW1 ‖ SW2
// 实现需要自行处理 ctx 的截止时间
type Transport interface {
	Exchange(ctx context.Context, command []byte) ([]byte, error)
}

// Sequencer 代表一个设备会话，同一时间只允许一条命令在途
type Sequencer struct {
	transport Transport
	session   chan struct{} // 单槽信号量
	log       *zap.Logger
}

// Option 配置 Sequencer
type Option func(*Sequencer)

// WithLogger 替换默认组件日志
func WithLogger(l *zap.Logger) Option {
	return func(s *Sequencer) {
		s.log = l
	}
}

// NewSequencer 绑定一个传输通道
func NewSequencer(t Transport, opts ...Option) *Sequencer {
	s := &Sequencer{
		transport: t,
		session:   make(chan struct{}, 1),
		log:       logger.Named("exchange"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Begin 获取会话并发送除最后一帧外的所有帧 (响应丢弃)，
// 然后异步发送最后一帧并立即返回
// 任何一帧传输失败或状态字非 0x9000 都中止整个序列，不重试
// ctx 只在帧与帧之间检查，已经发出的帧不会被打断
func (s *Sequencer) Begin(ctx context.Context, frames []apdu.Frame) (*PendingExchange, error) {
	if len(frames) == 0 {
		return nil, errno.Newf(errno.ErrEmptySequence, "frames", "nothing to send")
	}
	for i, f := range frames {
		if f.Ins != frames[0].Ins || f.Cla != frames[0].Cla {
			return nil, errno.Newf(errno.ErrInvalidInput, "frames", "frame %d belongs to a different command", i)
		}
	}

	if err := s.acquire(ctx); err != nil {
		return nil, err
	}

	p := &PendingExchange{
		ins:   frames[0].Ins,
		total: len(frames),
		start: time.Now(),
		done:  make(chan struct{}),
	}
	p.state.Store(int32(Sending))

	last := len(frames) - 1
	for i := 0; i < last; i++ {
		if err := ctx.Err(); err != nil {
			return nil, s.abort(p, i, errno.Wrap(errno.ErrTransport, "cancelled", err))
		}
		if _, err := s.roundTrip(ctx, p, i, frames[i]); err != nil {
			return nil, s.abort(p, i, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, s.abort(p, last, errno.Wrap(errno.ErrTransport, "cancelled", err))
	}

	p.state.Store(int32(AwaitingFinalResponse))
	go func() {
		resp, err := s.roundTrip(ctx, p, last, frames[last])
		if err != nil {
			p.err = s.abort(p, last, err)
		} else {
			p.resp = resp
			p.state.Store(int32(Done))
			monitor.Device.ObserveCommand(apdu.InsName(p.ins), p.start)
			s.release()
		}
		close(p.done)
	}()
	return p, nil
}

// Run Begin + Await
func (s *Sequencer) Run(ctx context.Context, frames []apdu.Frame) (apdu.Response, error) {
	p, err := s.Begin(ctx, frames)
	if err != nil {
		return apdu.Response{}, err
	}
	return p.Await(ctx)
}

// Busy 是否有命令在途
func (s *Sequencer) Busy() bool {
	return len(s.session) > 0
}

func (s *Sequencer) roundTrip(ctx context.Context, p *PendingExchange, index int, frame apdu.Frame) (apdu.Response, error) {
	raw, err := frame.Bytes()
	if err != nil {
		return apdu.Response{}, err
	}

	s.log.Debug("send frame",
		zap.String("ins", apdu.InsName(frame.Ins)),
		zap.Int("index", index),
		zap.Int("total", p.total),
		logger.Hex("apdu", raw))
	monitor.Device.FramesSent.WithLabelValues(apdu.InsName(frame.Ins)).Inc()

	out, err := s.transport.Exchange(ctx, raw)
	if err != nil {
		return apdu.Response{}, errno.Wrap(errno.ErrTransport, fmt.Sprintf("frame %d/%d", index+1, p.total), err)
	}
	resp, err := apdu.ParseResponse(out)
	if err != nil {
		return apdu.Response{}, err
	}
	if err := resp.Err(); err != nil {
		return resp, err
	}
	return resp, nil
}

func (s *Sequencer) abort(p *PendingExchange, index int, err error) error {
	p.state.Store(int32(Failed))
	s.log.Warn("command aborted",
		zap.String("ins", apdu.InsName(p.ins)),
		zap.Int("frame", index+1),
		zap.Int("total", p.total),
		zap.String("kind", errno.KindOf(err).String()),
		zap.Error(err))
	monitor.Device.ExchangeFailures.WithLabelValues(apdu.InsName(p.ins), errno.KindOf(err).String()).Inc()
	s.release()
	return err
}

// acquire 会话空闲时立即占用，只有被占用时才等待 ctx
func (s *Sequencer) acquire(ctx context.Context) error {
	select {
	case s.session <- struct{}{}:
		return nil
	default:
	}
	select {
	case s.session <- struct{}{}:
		return nil
	case <-ctx.Done():
		return errno.Wrap(errno.ErrSessionBusy, "session", ctx.Err())
	}
}

func (s *Sequencer) release() {
	<-s.session
}

// PendingExchange 最后一帧已发出、等待设备响应 (通常是等待用户在屏幕上确认)
type PendingExchange struct {
	ins   byte
	total int
	start time.Time
	state atomic.Int32

	done chan struct{}
	resp apdu.Response
	err  error
}

// Ins 命令指令字节
func (p *PendingExchange) Ins() byte {
	return p.ins
}

// State 当前状态
func (p *PendingExchange) State() State {
	return State(p.state.Load())
}

// Done 最后一帧返回后关闭
func (p *PendingExchange) Done() <-chan struct{} {
	return p.done
}

// Await 等待最后一帧的响应
// ctx 结束时提前返回，但在途的交换不会被取消，会话在其返回后才释放
func (p *PendingExchange) Await(ctx context.Context) (apdu.Response, error) {
	select {
	case <-p.done:
		return p.resp, p.err
	case <-ctx.Done():
		return apdu.Response{}, ctx.Err()
	}
}
