package model

// DefaultOIHistoryLen 持仓量历史最多保留的样本数
const DefaultOIHistoryLen = 500

// OIHistory 持仓量 (open interest) 样本，最旧的在前，超过上限时丢弃最旧样本。
// 每个交易实例独占一个，不做并发保护。
type OIHistory struct {
	samples []float64
	maxLen  int
}

// NewOIHistory 创建持仓量历史，maxLen <= 0 时使用默认值
func NewOIHistory(maxLen int) *OIHistory {
	if maxLen <= 0 {
		maxLen = DefaultOIHistoryLen
	}
	return &OIHistory{
		samples: make([]float64, 0, maxLen),
		maxLen:  maxLen,
	}
}

// Append 记录一个样本，非正值 (拉取失败) 直接忽略
func (h *OIHistory) Append(oi float64) bool {
	if oi <= 0 {
		return false
	}
	h.samples = append(h.samples, oi)
	if len(h.samples) > h.maxLen {
		h.samples = append(h.samples[:0], h.samples[len(h.samples)-h.maxLen:]...)
	}
	return true
}

// Samples 返回样本副本
func (h *OIHistory) Samples() []float64 {
	out := make([]float64, len(h.samples))
	copy(out, h.samples)
	return out
}

func (h *OIHistory) Len() int {
	return len(h.samples)
}
