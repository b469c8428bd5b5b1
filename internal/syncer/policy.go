package syncer

import (
	"time"

	conf "github.com/bartek5186/woo2mag/internal/config"
)

// Policy - parametry przebiegu
type Policy struct {
	PageSize               int
	MaxDuration            time.Duration
	MaxStallPages          int
	StallThresholdFraction float64
	InitialEstimate        int
	EstimateGrowth         float64
	MaxPageRetries         int
	LowStockThreshold      int
	// X-WP-Total podnosi szacunek, gdy katalog go podaje
	UseReportedTotal bool
}

func DefaultPolicy() Policy {
	return Policy{
		PageSize:               20,
		MaxDuration:            60 * time.Minute,
		MaxStallPages:          10,
		StallThresholdFraction: 0.9,
		InitialEstimate:        5000,
		EstimateGrowth:         1.2,
		MaxPageRetries:         3,
		LowStockThreshold:      5,
		UseReportedTotal:       true,
	}
}

func PolicyFromConfig(c conf.SyncConfig, maxDuration time.Duration) Policy {
	p := DefaultPolicy()
	if c.PageSize > 0 {
		p.PageSize = c.PageSize
	}
	if maxDuration > 0 {
		p.MaxDuration = maxDuration
	}
	if c.MaxStallPages > 0 {
		p.MaxStallPages = c.MaxStallPages
	}
	if c.StallThresholdFraction > 0 && c.StallThresholdFraction <= 1 {
		p.StallThresholdFraction = c.StallThresholdFraction
	}
	if c.InitialEstimate > 0 {
		p.InitialEstimate = c.InitialEstimate
	}
	if c.MaxPageRetries > 0 {
		p.MaxPageRetries = c.MaxPageRetries
	}
	if c.DefaultLowStockThreshold > 0 {
		p.LowStockThreshold = c.DefaultLowStockThreshold
	}
	return p
}

// estimate: pełna strona -> max(obecny, page*pageSize*1.2, zgłoszony), niepełna -> dokładnie.
// Przy pełnej stronie szacunek nigdy nie maleje.
func (p Policy) estimate(current, page, pageSize, count, reported int) int {
	if count < pageSize {
		return (page-1)*pageSize + count
	}
	grown := int(float64(page*pageSize) * p.EstimateGrowth)
	est := max(current, grown)
	if p.UseReportedTotal && reported > est {
		est = reported
	}
	return est
}

// stalled: za dużo stron bez zmian przy prawie całym katalogu przetworzonym
func (p Policy) stalled(st *SyncState) bool {
	return st.StallPages > p.MaxStallPages &&
		float64(st.ProcessedProducts) > p.StallThresholdFraction*float64(st.EstimatedTotal)
}
