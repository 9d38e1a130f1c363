package ffmpegx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultProbeBin 是默认的 ffprobe 可执行文件名（从 PATH 查找）。
const DefaultProbeBin = "ffprobe"

// Info 是录像的视频流元信息。
//
// 约定：
// - FrameRate<=0 表示容器没有给出可用帧率（由上层回退到默认帧率）
// - FrameCount<=0 表示总帧数未知
type Info struct {
	Width      int
	Height     int
	FrameRate  float64
	FrameCount int
}

// 通过可替换的函数指针，让测试不依赖本机 ffprobe。
var probeFunc = runProbe

func runProbe(ctx context.Context, bin, path string) (string, error) {
	cmd := exec.CommandContext(ctx, bin, "-v", "error", "-show_format", "-show_streams", "-of", "json", path)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%w：%s", err, msg)
		}
		return "", err
	}
	return stdout.String(), nil
}

// ProbeBin 推导与 ffmpeg 同目录、同命名方式的 ffprobe。
//
// 例如 /opt/ff/bin/ffmpeg => /opt/ff/bin/ffprobe，ffmpeg-6.exe => ffprobe-6.exe；
// 名字里没有 "ffmpeg" 时退回 PATH 中的 ffprobe。
func ProbeBin(ffmpegBin string) string {
	if ffmpegBin == "" {
		return DefaultProbeBin
	}
	dir, base := filepath.Split(ffmpegBin)
	if !strings.Contains(base, "ffmpeg") {
		return DefaultProbeBin
	}
	return dir + strings.Replace(base, "ffmpeg", "ffprobe", 1)
}

type probeOutput struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
		NbFrames     string `json:"nb_frames"`
		Duration     string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe 用 bin 指定的 ffprobe 读取 path 的首个视频流信息；ctx 取消时终止 ffprobe。
func Probe(ctx context.Context, bin, path string) (Info, error) {
	if bin == "" {
		bin = DefaultProbeBin
	}
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	raw, err := probeFunc(ctx, bin, path)
	if err != nil {
		return Info{}, fmt.Errorf("ffprobe 失败：%w", err)
	}
	return parseProbe(raw)
}

func parseProbe(raw string) (Info, error) {
	var out probeOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return Info{}, fmt.Errorf("解析 ffprobe 输出失败：%w", err)
	}

	for _, s := range out.Streams {
		if s.CodecType != "video" {
			continue
		}
		if s.Width <= 0 || s.Height <= 0 {
			return Info{}, fmt.Errorf("视频流尺寸无效：%dx%d", s.Width, s.Height)
		}

		info := Info{Width: s.Width, Height: s.Height}
		info.FrameRate = parseRate(s.AvgFrameRate)
		if info.FrameRate <= 0 {
			info.FrameRate = parseRate(s.RFrameRate)
		}

		if n, err := strconv.Atoi(strings.TrimSpace(s.NbFrames)); err == nil && n > 0 {
			info.FrameCount = n
		} else if info.FrameRate > 0 {
			// 容器不记录帧数时按时长估算；时长也没有则保持未知。
			d := parseFloat(s.Duration)
			if d <= 0 {
				d = parseFloat(out.Format.Duration)
			}
			if d > 0 {
				info.FrameCount = int(math.Round(d * info.FrameRate))
			}
		}
		return info, nil
	}
	return Info{}, errors.New("文件中没有视频流")
}

// parseRate 解析 "30000/1001" 或 "25" 形式的帧率；无法解析返回 0。
func parseRate(s string) float64 {
	s = strings.TrimSpace(s)
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		return parseFloat(s)
	}
	n := parseFloat(num)
	d := parseFloat(den)
	if n <= 0 || d <= 0 {
		return 0
	}
	return n / d
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
