package domain

// GroupPlan 是对某个录像分组的最小执行计划：用哪种策略处理哪些记录。
type GroupPlan struct {
	Group    RecordingGroup
	Strategy Strategy
}
