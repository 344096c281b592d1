package indicators

// MACD holds the MACD line, its signal line and the histogram.
type MACD struct {
	Line      []float64
	Signal    []float64
	Histogram []float64
}

// CalculateMACD computes MACD from fast/slow EMAs plus a signal EMA over the
// MACD line. Standard parameters are 12/26/9.
func CalculateMACD(closes []float64, fast, slow, signal int) MACD {
	length := len(closes)
	out := MACD{
		Line:      make([]float64, length),
		Signal:    make([]float64, length),
		Histogram: make([]float64, length),
	}
	if length < slow+signal {
		return out
	}

	fastEMA := CalculateEMA(closes, fast)
	slowEMA := CalculateEMA(closes, slow)

	for i := slow - 1; i < length; i++ {
		out.Line[i] = fastEMA[i] - slowEMA[i]
	}

	// Signal line: EMA of the MACD line, starting where it is defined.
	macdValid := out.Line[slow-1:]
	signalEMA := CalculateEMA(macdValid, signal)
	for i, v := range signalEMA {
		out.Signal[slow-1+i] = v
	}

	for i := slow - 1; i < length; i++ {
		out.Histogram[i] = out.Line[i] - out.Signal[i]
	}

	return out
}

// GoldenCrossWithin reports whether the MACD line crossed above its signal
// line within the last n candles.
func (m MACD) GoldenCrossWithin(n int) bool {
	length := len(m.Line)
	if length < 2 {
		return false
	}
	start := length - n
	if start < 1 {
		start = 1
	}
	for i := start; i < length; i++ {
		if m.Signal[i] == 0 && m.Signal[i-1] == 0 {
			continue
		}
		if m.Line[i-1] <= m.Signal[i-1] && m.Line[i] > m.Signal[i] {
			return true
		}
	}
	return false
}
