package indicator

import (
	"math"

	"github.com/markcheno/go-talib"
)

// Window statistics over the newest n values of a series. Every helper returns
// ok=false when the series is shorter than n so callers can decline quietly.

// Mean is the simple average of the newest n values.
func Mean(series []float64, n int) (float64, bool) {
	window, ok := tail(series, n)
	if !ok {
		return 0, false
	}
	if n == 1 {
		return window[0], true
	}
	return lastValid(talib.Sma(window, n))
}

// StdDev is the population standard deviation of the newest n values.
func StdDev(series []float64, n int) (float64, bool) {
	window, ok := tail(series, n)
	if !ok || n < 2 {
		return 0, false
	}
	return lastValid(talib.StdDev(window, n, 1))
}

// Highest is the maximum of the newest n values.
func Highest(series []float64, n int) (float64, bool) {
	window, ok := tail(series, n)
	if !ok {
		return 0, false
	}
	if n == 1 {
		return window[0], true
	}
	return lastValid(talib.Max(window, n))
}

// Lowest is the minimum of the newest n values.
func Lowest(series []float64, n int) (float64, bool) {
	window, ok := tail(series, n)
	if !ok {
		return 0, false
	}
	if n == 1 {
		return window[0], true
	}
	return lastValid(talib.Min(window, n))
}

// MeanStd returns the population mean and standard deviation of a whole series.
func MeanStd(series []float64) (mean, std float64, ok bool) {
	n := len(series)
	if n < 2 {
		return 0, 0, false
	}
	if mean, ok = Mean(series, n); !ok {
		return 0, 0, false
	}
	if std, ok = StdDev(series, n); !ok {
		return 0, 0, false
	}
	return mean, std, true
}

func tail(series []float64, n int) ([]float64, bool) {
	if n <= 0 || len(series) < n {
		return nil, false
	}
	window := series[len(series)-n:]
	for _, v := range window {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, false
		}
	}
	return window, true
}

func lastValid(series []float64) (float64, bool) {
	if len(series) == 0 {
		return 0, false
	}
	v := series[len(series)-1]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
