package planner

import (
	"sort"

	"github.com/John-Robertt/framex/internal/domain"
)

// DefaultDensityThreshold 是策略切换的默认组大小阈值。
const DefaultDensityThreshold = 10

// ChooseStrategy 按组内记录数选择策略：
// - n <= threshold：DirectSeek（逐条随机 seek，记录少时可接受）
// - n >  threshold：BufferedWindow（按秒分桶，一次 seek 读一段缓冲）
//
// threshold < 1 时使用 DefaultDensityThreshold。
func ChooseStrategy(n, threshold int) domain.Strategy {
	if threshold < 1 {
		threshold = DefaultDensityThreshold
	}
	if n > threshold {
		return domain.StrategyBufferedWindow
	}
	return domain.StrategyDirectSeek
}

// PlanGroups 为每个分组生成确定性的执行计划（不做任何 IO）。
func PlanGroups(groups []domain.RecordingGroup, threshold int) []domain.GroupPlan {
	plans := make([]domain.GroupPlan, 0, len(groups))
	for _, g := range groups {
		plans = append(plans, domain.GroupPlan{
			Group:    g,
			Strategy: ChooseStrategy(len(g.Records), threshold),
		})
	}
	return plans
}

// SortPlans 按组大小降序排列（稳定）；分组之间互不依赖，顺序不影响结果。
func SortPlans(plans []domain.GroupPlan) {
	sort.SliceStable(plans, func(i, j int) bool {
		return len(plans[i].Group.Records) > len(plans[j].Group.Records)
	})
}
