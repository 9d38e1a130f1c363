package app

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/John-Robertt/framex/internal/domain"
	"github.com/John-Robertt/framex/internal/locate"
)

// Locator 是 RecordGrouper 对录像定位能力的最小依赖。
type Locator interface {
	Locate(userID int, ts time.Time) (string, error)
}

// GroupByRecording 把记录流按解析到的录像路径分组。
//
// - 分组主键：clean 后的录像路径；首次出现时创建分组
// - groups 顺序：按首次出现顺序（确定性，不依赖 map 遍历）
// - 组内记录保持输入顺序
// - 找不到录像的记录进入 unresolved，不属于任何分组
func GroupByRecording(records []domain.Record, loc Locator) (groups []domain.RecordingGroup, unresolved []domain.Record, err error) {
	index := make(map[string]int, 64)
	groups = make([]domain.RecordingGroup, 0, 64)
	unresolved = make([]domain.Record, 0, 16)

	for _, r := range records {
		p, e := loc.Locate(r.UserID, r.Timestamp)
		if e != nil {
			if errors.Is(e, locate.ErrNoVideoMatch) {
				unresolved = append(unresolved, r)
				continue
			}
			return nil, nil, e
		}

		key := filepath.Clean(p)
		if idx, ok := index[key]; ok {
			groups[idx].Records = append(groups[idx].Records, r)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, domain.RecordingGroup{
			Path:    key,
			Records: []domain.Record{r},
		})
	}
	return groups, unresolved, nil
}
