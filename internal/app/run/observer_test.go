package run

import (
	"context"
	"reflect"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/John-Robertt/framex/internal/config"
	"github.com/John-Robertt/framex/internal/domain"
)

type recordObserver struct {
	mu sync.Mutex

	startCalls int
	phases     []string
	fields     map[string]map[string]any
	groups     []string
	outcomes   int
	lastTotal  int
}

func (o *recordObserver) OnStart(eff config.EffectiveConfig) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.startCalls++
}

func (o *recordObserver) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.phases = append(o.phases, name)
	if o.fields == nil {
		o.fields = map[string]map[string]any{}
	}
	o.fields[name] = fields
}

func (o *recordObserver) OnGroupDone(idx, total int, plan domain.GroupPlan, outs []domain.Outcome, dur time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.groups = append(o.groups, plan.Group.Path)
	o.outcomes += len(outs)
	o.lastTotal = total
}

func (o *recordObserver) OnProgress(done, total, ok, fail, active int, elapsed time.Duration) {
	// keepalive 由 CLI 触发；这里无需断言。
}

func TestExecuteWithObserver_EmitsPhaseAndGroupEvents(t *testing.T) {
	f := newFixture(t)
	obs := &recordObserver{}
	_ = ExecuteWithObserver(context.Background(), f.eff, f.deps(), obs)

	if obs.startCalls != 1 {
		t.Fatalf("期望 OnStart 调用 1 次，实际 %d", obs.startCalls)
	}

	wantPhases := []string{"load", "group", "plan", "exec"}
	if !reflect.DeepEqual(obs.phases, wantPhases) {
		t.Fatalf("阶段事件不符合预期：got=%v want=%v", obs.phases, wantPhases)
	}
	// 3 个录像分组（含文件名无法解析与无法打开的分组）；unresolved 记录不属于任何分组。
	if len(obs.groups) != 3 || obs.lastTotal != 3 {
		t.Fatalf("分组事件不符合预期：groups=%v total=%d", obs.groups, obs.lastTotal)
	}
	if obs.outcomes != 5 {
		t.Fatalf("分组事件中的结果数=%d，期望 5", obs.outcomes)
	}
	paths := append([]string(nil), obs.groups...)
	sort.Strings(paths)
	for i := 1; i < len(paths); i++ {
		if paths[i] == paths[i-1] {
			t.Fatalf("同一录像不应被处理两次：%v", obs.groups)
		}
	}
}

func TestExecuteWithObserver_NilObserver_SameResultAsExecute(t *testing.T) {
	f := newFixture(t)

	a := Execute(context.Background(), f.eff, f.deps())
	b := ExecuteWithObserver(context.Background(), f.eff, f.deps(), nil)

	// 运行 ID 与时间字段本身允许不同；对比时归零。
	a.RunID, b.RunID = "", ""
	a.StartedAt, a.FinishedAt = time.Time{}, time.Time{}
	b.StartedAt, b.FinishedAt = time.Time{}, time.Time{}

	if !reflect.DeepEqual(a, b) {
		t.Fatalf("nil observer 不应改变结果：\nExecute=%+v\nWithObs=%+v", a, b)
	}
}
