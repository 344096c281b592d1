package indicators

// CalculateRSI computes the Relative Strength Index using Wilder smoothing.
// Indices below period are left at zero.
func CalculateRSI(closes []float64, period int) []float64 {
	rsi := make([]float64, len(closes))
	if len(closes) < period+1 {
		return rsi
	}

	gains := make([]float64, 0, len(closes))
	losses := make([]float64, 0, len(closes))

	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains = append(gains, change)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, -change)
		}
	}

	if len(gains) < period {
		return rsi
	}

	sumGain := 0.0
	sumLoss := 0.0
	for i := 0; i < period; i++ {
		sumGain += gains[i]
		sumLoss += losses[i]
	}

	avgGain := sumGain / float64(period)
	avgLoss := sumLoss / float64(period)

	if avgLoss == 0 {
		rsi[period] = 100
	} else {
		rs := avgGain / avgLoss
		rsi[period] = 100 - (100 / (1 + rs))
	}

	for i := period + 1; i < len(closes); i++ {
		currentGain := gains[i-1]
		currentLoss := losses[i-1]

		avgGain = ((avgGain * float64(period-1)) + currentGain) / float64(period)
		avgLoss = ((avgLoss * float64(period-1)) + currentLoss) / float64(period)

		if avgLoss == 0 {
			rsi[i] = 100
		} else {
			rs := avgGain / avgLoss
			rsi[i] = 100 - (100 / (1 + rs))
		}
	}

	return rsi
}
