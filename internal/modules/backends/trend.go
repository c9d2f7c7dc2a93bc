package backends

import (
	"fmt"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/floats"
)

// TrendPeriod is the moving-average window used for queue trend analysis.
const TrendPeriod = 5

// ErrInsufficientHistory indicates too few snapshots exist to compute a
// trend for a backend.
type ErrInsufficientHistory struct {
	Backend string
	Samples int
	Needed  int
}

func (e ErrInsufficientHistory) Error() string {
	return fmt.Sprintf("not enough history for %s: have %d samples, need %d", e.Backend, e.Samples, e.Needed)
}

// QueueTrend computes the queue depth trend for one backend from its
// stored snapshots: simple and exponential moving averages over the
// pending-jobs series, plus the series extremes.
func (s *Service) QueueTrend(backend string, limit int) (*QueueTrend, error) {
	if s.history == nil {
		return nil, fmt.Errorf("snapshot history is not enabled")
	}

	series, err := s.history.PendingSeries(backend, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending series: %w", err)
	}
	if len(series) <= TrendPeriod {
		return nil, ErrInsufficientHistory{Backend: backend, Samples: len(series), Needed: TrendPeriod + 1}
	}

	sma := talib.Sma(series, TrendPeriod)
	ema := talib.Ema(series, TrendPeriod)

	latest := series[len(series)-1]
	lastSMA := sma[len(sma)-1]
	lastEMA := ema[len(ema)-1]

	direction := "flat"
	switch {
	case latest > lastSMA:
		direction = "rising"
	case latest < lastSMA:
		direction = "falling"
	}

	return &QueueTrend{
		Backend:   backend,
		Samples:   len(series),
		Latest:    latest,
		Min:       floats.Min(series),
		Max:       floats.Max(series),
		SMA:       lastSMA,
		EMA:       lastEMA,
		Direction: direction,
	}, nil
}
