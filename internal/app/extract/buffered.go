package extract

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/John-Robertt/framex/internal/domain"
	"github.com/John-Robertt/framex/internal/frame"
)

type bufferedFrame struct {
	at  float64 // 近似偏移：bucket + i/rate
	idx int
	img image.Image
}

type pending struct {
	r       domain.Record
	elapsed float64
	idx     int
}

// BufferedWindow 按偏移的整数秒分桶：每个桶只 seek 一次，顺序解码 ceil(rate)+1 帧到缓冲，
// 再为桶内每条记录挑选时间最近的缓冲帧（并列时取最先解码的那一帧）。
//
// 处理顺序：
// 1) 负偏移记录先行产出 timestamp_before_start（不参与分桶）
// 2) 桶按秒升序；桶内记录与缓冲帧的匹配与记录到达顺序无关
func BufferedWindow(env Env, records []domain.Record) []domain.Outcome {
	var c collector
	bufferedWindow(env, records, &c)
	return c.outs
}

func bufferedWindow(env Env, records []domain.Record, c *collector) {
	const s = domain.StrategyBufferedWindow

	rec := env.Recording
	rate := frame.EffectiveRate(rec.FrameRate)

	buckets := make(map[int][]pending, 16)
	for _, r := range records {
		elapsed := frame.Elapsed(r.Timestamp, rec.StartTime)
		idx, kind := frame.Index(elapsed, rate, rec.FrameCount)
		if kind == domain.ErrKindTimestampBeforeStart {
			c.add(domain.Failed(r, s, kind, -1, "记录时间早于录像开始时间"))
			continue
		}
		sec := int(math.Floor(elapsed))
		buckets[sec] = append(buckets[sec], pending{r: r, elapsed: elapsed, idx: idx})
	}

	secs := make([]int, 0, len(buckets))
	for sec := range buckets {
		secs = append(secs, sec)
	}
	sort.Ints(secs)

	window := int(math.Ceil(rate)) + 1
	buf := make([]bufferedFrame, 0, window)

	for _, sec := range secs {
		items := buckets[sec]
		startIdx, _ := frame.Index(float64(sec), rate, 0)

		if rec.FrameCountKnown() && startIdx >= rec.FrameCount {
			for _, p := range items {
				c.add(domain.Failed(p.r, s, domain.ErrKindOutOfRange, p.idx,
					fmt.Sprintf("第 %d 秒（起始帧 %d）超出录像总帧数 %d", sec, startIdx, rec.FrameCount)))
			}
			continue
		}

		buf = fill(env.Decoder, buf[:0], sec, startIdx, rate, window)
		if len(buf) == 0 {
			for _, p := range items {
				c.add(domain.Failed(p.r, s, domain.ErrKindReadError, p.idx,
					fmt.Sprintf("第 %d 秒（起始帧 %d）没有可解码的帧", sec, startIdx)))
			}
			continue
		}

		for _, p := range items {
			best := nearest(buf, p.elapsed)
			c.add(write(env, s, p.r, p.idx, best.img))
		}
	}
}

// fill seek 到 startIdx 后顺序解码至多 window 帧；遇到错误/流末尾即停止。
func fill(d Decoder, buf []bufferedFrame, sec, startIdx int, rate float64, window int) []bufferedFrame {
	if err := d.Seek(startIdx); err != nil {
		return buf
	}
	for i := 0; i < window; i++ {
		img, err := readFrame(d)
		if err != nil {
			break
		}
		buf = append(buf, bufferedFrame{
			at:  float64(sec) + float64(i)/rate,
			idx: startIdx + i,
			img: img,
		})
	}
	return buf
}

// nearest 返回与 elapsed 时间差最小的缓冲帧；严格小于才替换，因此并列时保留最先解码的帧。
func nearest(buf []bufferedFrame, elapsed float64) bufferedFrame {
	best := buf[0]
	bestDiff := math.Abs(best.at - elapsed)
	for _, f := range buf[1:] {
		if d := math.Abs(f.at - elapsed); d < bestDiff {
			best, bestDiff = f, d
		}
	}
	return best
}
