package extract

import (
	"fmt"
	"sort"

	"github.com/John-Robertt/framex/internal/domain"
	"github.com/John-Robertt/framex/internal/frame"
)

// DirectSeek 逐条处理：按时间戳升序，每条记录独立 seek 到目标帧并解码一帧。
//
// 帧号无效（起点之前/越界）的记录直接产出失败，不触碰解码器。
func DirectSeek(env Env, records []domain.Record) []domain.Outcome {
	var c collector
	directSeek(env, records, &c)
	return c.outs
}

func directSeek(env Env, records []domain.Record, c *collector) {
	const s = domain.StrategyDirectSeek

	sorted := append([]domain.Record(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	for _, r := range sorted {
		idx, kind := frame.ForRecord(r, env.Recording)
		switch kind {
		case domain.ErrKindTimestampBeforeStart:
			c.add(domain.Failed(r, s, kind, -1, "记录时间早于录像开始时间"))
			continue
		case domain.ErrKindOutOfRange:
			c.add(domain.Failed(r, s, kind, idx,
				fmt.Sprintf("帧号 %d 超出录像总帧数 %d", idx, env.Recording.FrameCount)))
			continue
		}

		if err := env.Decoder.Seek(idx); err != nil {
			c.add(domain.Failed(r, s, domain.ErrKindReadError, idx, fmt.Sprintf("seek 到第 %d 帧失败：%v", idx, err)))
			continue
		}
		img, err := readFrame(env.Decoder)
		if err != nil {
			c.add(domain.Failed(r, s, domain.ErrKindReadError, idx, fmt.Sprintf("读取第 %d 帧失败：%v", idx, err)))
			continue
		}
		c.add(write(env, s, r, idx, img))
	}
}
