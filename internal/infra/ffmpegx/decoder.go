package ffmpegx

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"sync"

	ffmpeg "github.com/u2takey/ffmpeg-go"
	"go.uber.org/zap"
)

func init() {
	ffmpeg.LogCompiledCommand = false
}

// DefaultBin 是默认的 ffmpeg 可执行文件名（从 PATH 查找）。
const DefaultBin = "ffmpeg"

// Options 控制解码进程的启动方式。
type Options struct {
	Bin      string // 为空时使用 DefaultBin
	ProbeBin string // 为空时由 Bin 推导，见 ProbeBin
	HWAccel  bool   // 是否请求硬件解码（-hwaccel auto）
	Logger   *zap.Logger
}

// OpenError 表示录像无法打开（探测失败、没有视频流等）。
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("打开录像失败：%q：%v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// Decoder 是单个录像的有状态解码句柄：Seek 启动一个从目标帧开始输出 rgb24 原始帧的 ffmpeg 进程，
// Read 依次读出后续帧。
//
// 约束：
// - 句柄不是并发安全的，只属于处理该录像的任务
// - 连续读取时 Seek 到当前位置不会重启进程
// - Close 之后不可再使用
type Decoder struct {
	ctx  context.Context
	path string
	info Info
	opts Options
	log  *zap.Logger

	proc   *exec.Cmd
	stdout io.ReadCloser
	r      *bufio.Reader
	stderr *tailBuffer
	pos    int
	frame  []byte
	closed bool
}

// Open 探测 path 并返回解码句柄；真正的解码进程延迟到第一次 Seek 才启动。
func Open(ctx context.Context, path string, opts Options) (*Decoder, error) {
	if opts.Bin == "" {
		opts.Bin = DefaultBin
	}
	if opts.ProbeBin == "" {
		opts.ProbeBin = ProbeBin(opts.Bin)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	info, err := Probe(ctx, opts.ProbeBin, path)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	log.Debug("录像已探测",
		zap.String("path", path),
		zap.Int("width", info.Width),
		zap.Int("height", info.Height),
		zap.Float64("frame_rate", info.FrameRate),
		zap.Int("frame_count", info.FrameCount),
	)

	return &Decoder{
		ctx:   ctx,
		path:  path,
		info:  info,
		opts:  opts,
		log:   log.With(zap.String("path", path)),
		frame: make([]byte, info.Width*info.Height*3),
		pos:   -1,
	}, nil
}

func (d *Decoder) Info() Info { return d.info }

func (d *Decoder) FrameRate() float64 { return d.info.FrameRate }

func (d *Decoder) FrameCount() int { return d.info.FrameCount }

// Seek 定位到第 frame 帧（0-based）；下一次 Read 返回该帧。
func (d *Decoder) Seek(frame int) error {
	if d.closed {
		return errors.New("解码器已关闭")
	}
	if frame < 0 {
		return fmt.Errorf("帧号无效：%d", frame)
	}
	if d.proc != nil && d.pos == frame {
		return nil
	}
	d.stop()

	args := seekArgs(d.path, seekSeconds(frame, d.info.FrameRate), d.opts.HWAccel)
	cmd := exec.CommandContext(d.ctx, d.opts.Bin, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	d.stderr = newTailBuffer(4096)
	cmd.Stderr = d.stderr

	d.log.Debug("启动 ffmpeg", zap.Int("frame", frame), zap.Strings("args", args))
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("启动 ffmpeg 失败：%w", err)
	}
	d.proc = cmd
	d.stdout = stdout
	d.r = bufio.NewReaderSize(stdout, len(d.frame))
	d.pos = frame
	return nil
}

// Read 返回当前位置的帧并前进一帧；流结束返回 io.EOF。
func (d *Decoder) Read() (image.Image, error) {
	if d.closed {
		return nil, errors.New("解码器已关闭")
	}
	if d.proc == nil {
		return nil, errors.New("尚未 seek")
	}

	if _, err := io.ReadFull(d.r, d.frame); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			d.stop()
			return nil, io.EOF
		}
		return nil, err
	}
	img := rgb24ToRGBA(d.frame, d.info.Width, d.info.Height)
	d.pos++
	return img, nil
}

// Close 结束仍在运行的解码进程。可重复调用。
func (d *Decoder) Close() error {
	if d.closed {
		return nil
	}
	d.stop()
	d.closed = true
	return nil
}

func (d *Decoder) stop() {
	if d.proc == nil {
		return
	}
	_ = d.stdout.Close()
	if d.proc.Process != nil {
		_ = d.proc.Process.Kill()
	}
	// 被 Kill 的进程必然返回错误；只记录 ffmpeg 自己报告的内容。
	if err := d.proc.Wait(); err != nil && d.stderr.Len() > 0 {
		d.log.Warn("ffmpeg 退出", zap.Error(err), zap.String("stderr", d.stderr.String()))
	}
	d.proc = nil
	d.stdout = nil
	d.r = nil
	d.pos = -1
}

// seekSeconds 把帧号换算为 -ss 时间点；帧率无效时回退 30fps。
func seekSeconds(frame int, rate float64) float64 {
	if rate <= 0 {
		rate = 30
	}
	return float64(frame) / rate
}

func seekArgs(path string, sec float64, hwaccel bool) []string {
	in := ffmpeg.KwArgs{"ss": strconv.FormatFloat(sec, 'f', 6, 64)}
	if hwaccel {
		in["hwaccel"] = "auto"
	}
	return ffmpeg.Input(path, in).
		Output("pipe:", ffmpeg.KwArgs{"format": "rawvideo", "pix_fmt": "rgb24"}).
		GlobalArgs("-nostdin", "-loglevel", "error").
		GetArgs()
}

func rgb24ToRGBA(src []byte, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i, j := 0, 0; i+2 < len(src); i, j = i+3, j+4 {
		img.Pix[j] = src[i]
		img.Pix[j+1] = src[i+1]
		img.Pix[j+2] = src[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}

// tailBuffer 只保留最后 max 字节的 stderr 输出。
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer { return &tailBuffer{max: max} }

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
