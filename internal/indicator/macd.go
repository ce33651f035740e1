// Package indicator computes exponential moving averages and the MACD family over close prices.
package indicator

// EMA returns the exponentially weighted moving average with smoothing factor
// alpha = 2/(span+1), seeded with the first input value and no bias correction:
// EMA[0] = x[0]; EMA[i] = alpha*x[i] + (1-alpha)*EMA[i-1].
func EMA(values []float64, span int) []float64 {
	if len(values) == 0 {
		return nil
	}
	if span < 1 {
		span = 1
	}
	alpha := 2.0 / (float64(span) + 1.0)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// MACD returns the MACD line, signal line, and histogram for the given close
// prices. All three outputs are aligned index-for-index with the input; empty
// input yields empty outputs.
func MACD(closes []float64, fast, slow, signalSpan int) (macd, signal, hist []float64) {
	if len(closes) == 0 {
		return nil, nil, nil
	}
	emaFast := EMA(closes, fast)
	emaSlow := EMA(closes, slow)
	macd = make([]float64, len(closes))
	for i := range closes {
		macd[i] = emaFast[i] - emaSlow[i]
	}
	signal = EMA(macd, signalSpan)
	hist = make([]float64, len(closes))
	for i := range closes {
		hist[i] = macd[i] - signal[i]
	}
	return macd, signal, hist
}
