package run

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/John-Robertt/framex/internal/app"
	"github.com/John-Robertt/framex/internal/app/extract"
	"github.com/John-Robertt/framex/internal/app/planner"
	"github.com/John-Robertt/framex/internal/config"
	"github.com/John-Robertt/framex/internal/domain"
	"github.com/John-Robertt/framex/internal/infra/imgx"
	"github.com/John-Robertt/framex/internal/infra/metrics"
	"github.com/John-Robertt/framex/internal/infra/records"
	"github.com/John-Robertt/framex/internal/locate"
	"github.com/John-Robertt/framex/internal/naming"
	"github.com/John-Robertt/framex/internal/session"
)

// Video 是打开后的录像：解码句柄加上探测到的元信息。
type Video interface {
	extract.Decoder
	FrameRate() float64
	FrameCount() int
	Close() error
}

// OpenFunc 打开一个录像；由 CLI 注入 ffmpeg 实现，测试注入内存实现。
type OpenFunc func(ctx context.Context, path string) (Video, error)

// Deps 是一次运行的外部依赖。
type Deps struct {
	Open OpenFunc
	// Sink 为空时写入 eff.Out（JPEG，原子覆盖）。
	Sink    extract.Sink
	Logger  *zap.Logger
	Metrics *metrics.Recorder
}

// Execute 执行一次 run，并返回对外稳定的 RunReport。
// 该函数尽量把错误“降级”为记录级失败（单个录像失败不影响其他）。
func Execute(ctx context.Context, eff config.EffectiveConfig, deps Deps) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, deps, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息（由上层决定是否启用）。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, deps Deps, obs Observer) domain.RunReport {
	started := time.Now().UTC()
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		RunID:     uuid.NewString(),
		Records:   eff.Records,
		Videos:    eff.Videos,
		Out:       eff.Out,
		StartedAt: started,
		Items:     make([]domain.ItemResult, 0, 128),
	}
	log = log.With(zap.String("run_id", rr.RunID))

	fail := func(code, msg string) domain.RunReport {
		log.Error("运行中止", zap.String("error_code", code), zap.String("error_msg", msg))
		rr.Errors = append(rr.Errors, domain.RunError{ErrorCode: code, ErrorMsg: msg})
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr
	}

	if deps.Open == nil {
		return fail(domain.ErrCodeConfigInvalid, "未配置录像解码器")
	}

	loadStarted := time.Now()
	recs, err := records.Load(eff.Records, eff.Location)
	if err != nil {
		return fail(domain.ErrCodeRecordsInvalid, fmt.Sprintf("读取记录失败：%v", err))
	}

	loc, err := locate.New(eff.Videos)
	if err != nil {
		return fail(domain.ErrCodeIOFailed, fmt.Sprintf("读取录像目录失败：%v", err))
	}

	sink := deps.Sink
	if sink == nil {
		s, err := imgx.NewDirSink(eff.Out)
		if err != nil {
			return fail(domain.ErrCodeIOFailed, fmt.Sprintf("准备输出目录失败：%v", err))
		}
		sink = s
	}
	loadDur := time.Since(loadStarted)

	groupStarted := time.Now()
	groups, unresolved, err := app.GroupByRecording(recs, loc)
	if err != nil {
		return fail(domain.ErrCodeIOFailed, fmt.Sprintf("分组失败：%v", err))
	}
	groupDur := time.Since(groupStarted)

	if obs != nil {
		obs.OnPhaseDone("load", map[string]any{
			"records":    len(recs),
			"recordings": loc.Len(),
		}, loadDur)
		obs.OnPhaseDone("group", map[string]any{
			"groups":     len(groups),
			"unresolved": len(unresolved),
		}, groupDur)
	}

	// unresolved：每条记录单独形成一个 item（不属于任何任务）。
	unresolvedOuts := make([]domain.Outcome, 0, len(unresolved))
	for _, r := range unresolved {
		unresolvedOuts = append(unresolvedOuts, domain.Unresolved(r))
	}
	rr.Add(unresolvedOuts)
	deps.Metrics.ObserveOutcomes(unresolvedOuts)

	planStarted := time.Now()
	plans := planner.PlanGroups(groups, eff.DensityThreshold)
	planner.SortPlans(plans)
	planDur := time.Since(planStarted)

	if obs != nil {
		var direct, buffered int
		for _, p := range plans {
			if p.Strategy == domain.StrategyBufferedWindow {
				buffered++
			} else {
				direct++
			}
		}
		obs.OnPhaseDone("plan", map[string]any{
			"groups":          len(plans),
			"direct_seek":     direct,
			"buffered_window": buffered,
		}, planDur)
	}

	// 执行阶段：按录像并发（worker pool），分组内串行。
	workers := eff.MaxWorkers
	if workers > len(plans) {
		workers = len(plans)
	}
	if workers < 1 {
		workers = 1
	}

	if obs != nil {
		obs.OnPhaseDone("exec", map[string]any{
			"workers":      workers,
			"total_groups": len(plans),
		}, 0)
	}

	t := task{
		eff:   eff,
		open:  deps.Open,
		sink:  sink,
		namer: naming.New(eff.PageLabels),
		log:   log,
		m:     deps.Metrics,
	}

	type execResult struct {
		plan domain.GroupPlan
		outs []domain.Outcome
		dur  time.Duration
	}

	jobs := make(chan domain.GroupPlan)
	results := make(chan execResult, len(plans))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				oneStarted := time.Now()
				outs := t.run(ctx, p)
				dur := time.Since(oneStarted)
				deps.Metrics.ObserveGroup(p.Strategy, dur)
				results <- execResult{plan: p, outs: outs, dur: dur}
			}
		}()
	}

	go func() {
		for _, p := range plans {
			jobs <- p
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	done := 0
	for it := range results {
		done++
		rr.Add(it.outs)
		deps.Metrics.ObserveOutcomes(it.outs)
		if obs != nil {
			obs.OnGroupDone(done, len(plans), it.plan, it.outs, it.dur)
		}
	}

	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	log.Debug("运行结束",
		zap.Int("total_records", rr.Summary.TotalRecords),
		zap.Int("successes", rr.Summary.Successes),
		zap.Int("failed", rr.Summary.Failed),
		zap.Int("unresolved", rr.Summary.Unresolved),
	)
	return rr
}

// task 持有所有分组共享的只读依赖；每次 run 独占一个录像的解码句柄。
type task struct {
	eff   config.EffectiveConfig
	open  OpenFunc
	sink  extract.Sink
	namer naming.Namer
	log   *zap.Logger
	m     *metrics.Recorder
}

// run 处理一个分组；分组内每条记录恰好产出一个 Outcome。
//
// 任务级失败（文件名无法解析、录像无法打开）会让整组记录以同一原因失败，但任务本身仍正常结束。
// 抽帧途中的 panic 只影响尚未产出结果的记录（见 extract.Run）。
func (t task) run(ctx context.Context, p domain.GroupPlan) (outs []domain.Outcome) {
	g := p.Group
	log := t.log.With(zap.String("recording", filepath.Base(g.Path)), zap.String("strategy", string(p.Strategy)))
	log.Debug("开始处理分组", zap.Int("records", len(g.Records)))

	defer func() {
		if v := recover(); v != nil {
			log.Error("分组处理 panic", zap.Any("panic", v), zap.ByteString("stack", debug.Stack()))
			outs = domain.FailAll(g.Records, p.Strategy, domain.ErrKindReadError, fmt.Sprintf("处理录像时发生内部错误：%v", v))
		}
	}()

	start, err := session.StartTime(g.Path, t.eff.Location)
	if err != nil {
		return domain.FailAll(g.Records, p.Strategy, domain.ErrKindMalformedFileName, err.Error())
	}

	if err := ctx.Err(); err != nil {
		return domain.FailAll(g.Records, p.Strategy, domain.ErrKindOpenError, fmt.Sprintf("运行已取消：%v", err))
	}
	v, err := t.open(ctx, g.Path)
	if err != nil {
		log.Warn("打开录像失败", zap.Error(err))
		return domain.FailAll(g.Records, p.Strategy, domain.ErrKindOpenError, err.Error())
	}
	defer func() {
		if err := v.Close(); err != nil {
			log.Warn("关闭录像失败", zap.Error(err))
		}
	}()

	env := extract.Env{
		Recording: domain.RecordingFile{
			Path:       g.Path,
			StartTime:  start,
			FrameRate:  v.FrameRate(),
			FrameCount: v.FrameCount(),
		},
		Decoder: &countingDecoder{d: v, s: p.Strategy, m: t.m},
		Sink:    t.sink,
		Namer:   t.namer,
	}
	outs, err = extract.Run(p.Strategy, env, g.Records)
	var pe *extract.PanicError
	if errors.As(err, &pe) {
		log.Error("分组处理 panic", zap.Any("panic", pe.Value), zap.ByteString("stack", pe.Stack))
	}
	log.Debug("分组处理完成", zap.Int("outcomes", len(outs)))
	return outs
}

// countingDecoder 在解码句柄外层统计 seek/解码帧数。
type countingDecoder struct {
	d extract.Decoder
	s domain.Strategy
	m *metrics.Recorder
}

func (c *countingDecoder) Seek(frame int) error {
	c.m.ObserveSeek(c.s)
	return c.d.Seek(frame)
}

func (c *countingDecoder) Read() (image.Image, error) {
	img, err := c.d.Read()
	if err == nil {
		c.m.ObserveFrame(c.s)
	}
	return img, err
}
