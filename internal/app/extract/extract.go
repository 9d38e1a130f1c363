package extract

import (
	"errors"
	"fmt"
	"image"
	"runtime/debug"

	"github.com/John-Robertt/framex/internal/domain"
	"github.com/John-Robertt/framex/internal/naming"
)

// Decoder 是单个录像的有状态解码句柄。
//
// 约束：
// - 句柄只属于处理该录像的任务，不允许跨 goroutine 共享
// - Seek 之后的 Read 依次返回 frame, frame+1, ...；读到流末尾返回 io.EOF
type Decoder interface {
	Seek(frame int) error
	Read() (image.Image, error)
}

// Sink 把一帧写出为 name，并返回最终输出路径。
// 同名文件按覆盖处理（输出名是确定性的）。
type Sink interface {
	Write(name string, img image.Image) (string, error)
}

// Env 聚合一个任务内策略所需的全部依赖。
type Env struct {
	Recording domain.RecordingFile
	Decoder   Decoder
	Sink      Sink
	Namer     naming.Namer
}

// PanicError 表示策略执行到一半发生了 panic。
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("策略执行 panic：%v", e.Value) }

// Run 按策略处理一组记录；每条输入记录恰好产出一个 Outcome。
//
// 策略中途 panic 时，panic 之前已产出的结果原样保留（对应的图片已写出），
// 其余记录记为 read_error，并返回 *PanicError。
func Run(s domain.Strategy, env Env, records []domain.Record) (outs []domain.Outcome, err error) {
	var c collector
	defer func() {
		v := recover()
		if v == nil {
			return
		}
		pe := &PanicError{Value: v, Stack: debug.Stack()}
		outs = append(c.outs, domain.FailAll(c.remaining(records), s, domain.ErrKindReadError,
			fmt.Sprintf("处理录像时发生内部错误：%v", v))...)
		err = pe
	}()

	switch s {
	case domain.StrategyBufferedWindow:
		bufferedWindow(env, records, &c)
	default:
		directSeek(env, records, &c)
	}
	return c.outs, nil
}

// collector 按处理顺序收集结果。
type collector struct {
	outs []domain.Outcome
}

func (c *collector) add(o domain.Outcome) { c.outs = append(c.outs, o) }

// remaining 返回 records 中还没有结果的记录（保持输入顺序）。
func (c *collector) remaining(records []domain.Record) []domain.Record {
	done := make(map[int]bool, len(c.outs))
	for _, o := range c.outs {
		done[o.RecordID] = true
	}
	var rest []domain.Record
	for _, r := range records {
		if !done[r.ID] {
			rest = append(rest, r)
		}
	}
	return rest
}

var errEmptyFrame = errors.New("解码器返回空帧")

func readFrame(d Decoder) (image.Image, error) {
	img, err := d.Read()
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, errEmptyFrame
	}
	return img, nil
}

func write(env Env, s domain.Strategy, r domain.Record, idx int, img image.Image) domain.Outcome {
	out, err := env.Sink.Write(env.Namer.FileName(r), img)
	if err != nil {
		return domain.Failed(r, s, domain.ErrKindWriteError, idx, err.Error())
	}
	return domain.Succeeded(r, s, idx, out)
}
