package vision

import "context"

// CountResult 单帧计数结果
type CountResult struct {
	NewlyCounted int          // 本帧首次过线的目标数
	Heights      []float64    // 新计数目标的高度，与 Widths 一一对应
	Widths       []float64
	Boxes        []TrackedBox // 当前帧所有在跟踪目标，供标注
}

// LineCounter 钢锭过线计数
// 跟踪 id 只计数一次，目标在多帧中反复出现不会重复累加
type LineCounter struct {
	tracker        Tracker
	lineX          int
	matchThreshold int
	counted        map[int64]struct{}
}

func NewLineCounter(tracker Tracker, lineX, matchThreshold int) *LineCounter {
	if matchThreshold <= 0 {
		matchThreshold = 5
	}
	return &LineCounter{
		tracker:        tracker,
		lineX:          lineX,
		matchThreshold: matchThreshold,
		counted:        make(map[int64]struct{}),
	}
}

// Process 跟踪当前帧并统计新过线目标
// 中心点横坐标落在计数线阈值范围内且未计数过的目标记为新计数
func (c *LineCounter) Process(ctx context.Context, jpeg []byte) (CountResult, error) {
	boxes, err := c.tracker.Track(ctx, jpeg)
	if err != nil {
		return CountResult{}, err
	}

	out := CountResult{Boxes: boxes}
	for _, box := range boxes {
		if abs(box.X-float64(c.lineX)) > float64(c.matchThreshold) {
			continue
		}
		if _, ok := c.counted[box.ID]; ok {
			continue
		}
		c.counted[box.ID] = struct{}{}
		out.NewlyCounted++
		out.Heights = append(out.Heights, box.H)
		out.Widths = append(out.Widths, box.W)
	}
	return out, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
