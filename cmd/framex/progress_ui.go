package main

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/framex/internal/app/run"
	"github.com/John-Robertt/framex/internal/config"
	"github.com/John-Robertt/framex/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是一个“简洁版”的交互终端进度输出。
//
// - 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约
// - 事件驱动：run 层只发事件，CLI 决定如何展示
// - keepalive：长时间没有分组完成时也会定期输出一行
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	workers int
	total   int
	done    int
	ok      int
	fail    int

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	fmt.Fprintf(p.w, "[%s] framex run\n", now.Format("15:04:05"))
	fmt.Fprintln(p.w, "配置（生效）:")
	if eff.ConfigPath != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigPath)
	}
	fmt.Fprintf(p.w, "  records: %s\n", eff.Records)
	fmt.Fprintf(p.w, "  videos: %s\n", eff.Videos)
	fmt.Fprintf(p.w, "  max_workers: %d\n", eff.MaxWorkers)
	fmt.Fprintf(p.w, "  hwaccel: %s\n", onOff(eff.UseHardwareDecode))
	fmt.Fprintf(p.w, "  density_threshold: %d\n", eff.DensityThreshold)
	if eff.Location != nil {
		fmt.Fprintf(p.w, "  timezone: %s\n", eff.Location)
	}
	fmt.Fprintf(p.w, "  page_labels: %s\n", formatLabels(eff.PageLabels))
	fmt.Fprintf(p.w, "  ffmpeg: %s\n", eff.FFmpegBin)

	fmt.Fprintln(p.w, "输出:")
	fmt.Fprintf(p.w, "  out: %s\n", eff.Out)
	fmt.Fprintln(p.w)

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "load":
		fmt.Fprintf(p.w, "读取: records=%d recordings=%d (%s)\n",
			intField(fields, "records"), intField(fields, "recordings"), formatShortDuration(dur),
		)
	case "group":
		fmt.Fprintf(p.w, "分组: groups=%d unresolved=%d (%s)\n",
			intField(fields, "groups"), intField(fields, "unresolved"), formatShortDuration(dur),
		)
	case "plan":
		fmt.Fprintf(p.w, "规划: direct_seek=%d buffered_window=%d (%s)\n",
			intField(fields, "direct_seek"), intField(fields, "buffered_window"), formatShortDuration(dur),
		)
	case "exec":
		p.workers = intField(fields, "workers")
		p.total = intField(fields, "total_groups")
		fmt.Fprintf(p.w, "执行: workers=%d total_groups=%d\n\n", p.workers, p.total)
		if p.total > 0 && !p.tickerStarted {
			p.startTickerLocked()
		}
	default:
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnGroupDone(idx, total int, plan domain.GroupPlan, outs []domain.Outcome, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done = idx
	p.total = total

	ok, fail := 0, 0
	kinds := map[domain.ErrKind]int{}
	for _, o := range outs {
		if o.Status == domain.StatusSuccess {
			ok++
			continue
		}
		fail++
		kinds[o.Kind]++
	}
	p.ok += ok
	p.fail += fail

	status := "OK"
	if fail > 0 {
		status = "FAIL"
		if ok > 0 {
			status = "PART"
		}
	}

	line := fmt.Sprintf("[%d/%d] %s %s %s records=%d ok=%d fail=%d",
		idx, total, filepath.Base(plan.Group.Path), status, plan.Strategy, len(outs), ok, fail,
	)
	if k := formatKinds(kinds); k != "" {
		line += " (" + k + ")"
	}
	fmt.Fprintf(p.w, "%s (%s)\n", line, formatShortDuration(dur))

	p.lastPrinted = time.Now()

	// 最后一组完成：停止 ticker，避免在结束打印后又冒出 keepalive。
	if p.tickerStarted && p.done >= p.total {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) OnProgress(done, total, ok, fail, active int, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printProgressLocked(done, total, ok, fail, active, elapsed)
}

func (p *progressUI) printProgressLocked(done, total, ok, fail, active int, elapsed time.Duration) {
	fmt.Fprintf(p.w, "进度: groups=%d/%d ok=%d fail=%d active=%d elapsed=%s\n",
		done, total, ok, fail, active, formatElapsed(elapsed),
	)
	p.lastPrinted = time.Now()
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}
	stop := p.stopCh

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if p.total > 0 && p.done >= p.total {
					p.mu.Unlock()
					return
				}
				if p.total > 0 && time.Since(p.lastPrinted) > threshold {
					active := min(p.workers, p.total-p.done)
					p.printProgressLocked(p.done, p.total, p.ok, p.fail, active, time.Since(p.startedAt))
				}
				p.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

// formatKinds 按失败种类的固定顺序输出 "kind=n"，忽略计数为 0 的种类。
func formatKinds(kinds map[domain.ErrKind]int) string {
	parts := make([]string, 0, len(kinds))
	for _, k := range domain.AllErrKinds {
		if n := kinds[k]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", k, n))
		}
	}
	return strings.Join(parts, " ")
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"→"+labels[k])
	}
	return truncate(strings.Join(parts, ", "), 160)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	switch x := fields[key].(type) {
	case int:
		return x
	case int64:
		return int(x)
	default:
		return 0
	}
}
