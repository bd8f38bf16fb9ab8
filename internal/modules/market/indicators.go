package market

import (
	"math"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"
)

const (
	rsiPeriod        = 14
	smaPeriod        = 20
	volatilityWindow = 30
	tradingDays      = 252
)

// RSI returns the latest RSI over period or nil with insufficient data
func RSI(closes []float64, period int) *float64 {
	if period <= 0 || len(closes) < period+1 {
		return nil
	}
	return last(talib.Rsi(closes, period))
}

// SMA returns the latest simple moving average over period or nil with insufficient data
func SMA(closes []float64, period int) *float64 {
	if period <= 0 || len(closes) < period {
		return nil
	}
	return last(talib.Sma(closes, period))
}

// Volatility returns the annualized standard deviation of daily returns over
// the last window closes, as a percentage
func Volatility(closes []float64, window int) *float64 {
	if window < 2 || len(closes) < window+1 {
		return nil
	}

	tail := closes[len(closes)-window-1:]
	returns := make([]float64, 0, window)
	for i := 1; i < len(tail); i++ {
		if tail[i-1] == 0 {
			return nil
		}
		returns = append(returns, tail[i]/tail[i-1]-1)
	}

	v := round(stat.StdDev(returns, nil)*math.Sqrt(tradingDays)*100, 2)
	return &v
}

func last(series []float64) *float64 {
	if len(series) == 0 {
		return nil
	}
	v := series[len(series)-1]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	v = round(v, 2)
	return &v
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
