package frame

import (
	"math"
	"time"

	"github.com/John-Robertt/framex/internal/domain"
)

// FallbackFrameRate 在解码器未报告有效帧率（<=0/NaN/Inf）时使用。
const FallbackFrameRate = 30.0

// EffectiveRate 返回可用于计算的帧率。
func EffectiveRate(rate float64) float64 {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return FallbackFrameRate
	}
	return rate
}

// Elapsed 返回 ts 相对录像起点的偏移（秒，可为小数/负数）。
func Elapsed(ts, start time.Time) float64 {
	return ts.Sub(start).Seconds()
}

// Index 把偏移与帧率换算为目标帧号，并判断是否可用。
//
// - elapsed < 0：返回 ErrKindTimestampBeforeStart，帧号为 -1（绝不换算负偏移）
// - frameCount > 0 且帧号 >= frameCount：返回 ErrKindOutOfRange（帧号照常返回，便于报告）
// - 否则返回 ErrKindNone
func Index(elapsed, rate float64, frameCount int) (int, domain.ErrKind) {
	if elapsed < 0 || math.IsNaN(elapsed) {
		return -1, domain.ErrKindTimestampBeforeStart
	}
	idx := int(math.Floor(elapsed * EffectiveRate(rate)))
	if frameCount > 0 && idx >= frameCount {
		return idx, domain.ErrKindOutOfRange
	}
	return idx, domain.ErrKindNone
}

// ForRecord 是 Index 的便捷包装：直接以记录与录像元数据计算。
func ForRecord(r domain.Record, rec domain.RecordingFile) (int, domain.ErrKind) {
	return Index(Elapsed(r.Timestamp, rec.StartTime), rec.FrameRate, rec.FrameCount)
}
