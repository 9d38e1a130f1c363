package sysx

import (
	"runtime"

	"github.com/shirou/gopsutil/v4/mem"
)

const gib = 1 << 30

// 通过可替换的函数指针，让测试稳定模拟不同内存规格。
var (
	totalMemory = func() (uint64, error) {
		vm, err := mem.VirtualMemory()
		if err != nil {
			return 0, err
		}
		return vm.Total, nil
	}
	numCPU = runtime.NumCPU
)

// RecommendWorkers 给出默认并发度：每个 worker 持有一个解码进程与一帧缓冲。
//
// 规则：
// - 硬件解码：2（硬件解码会话数有限）
// - 内存 < 8GiB：2；< 16GiB：4；否则 min(CPU, 6)
// - 读取内存失败时按 min(CPU, 4)
// - 结果至少为 1
func RecommendWorkers(hwaccel bool) int {
	if hwaccel {
		return 2
	}
	cpu := numCPU()
	if cpu < 1 {
		cpu = 1
	}

	total, err := totalMemory()
	var n int
	switch {
	case err != nil:
		n = min(cpu, 4)
	case total < 8*gib:
		n = 2
	case total < 16*gib:
		n = 4
	default:
		n = min(cpu, 6)
	}
	return max(n, 1)
}
