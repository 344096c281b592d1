package indicators

// VolumeSurge reports whether the latest volume exceeds multiplier times its
// rolling simple average over period candles.
func VolumeSurge(volumes []float64, period int, multiplier float64) bool {
	if len(volumes) < period+1 {
		return false
	}

	last := len(volumes) - 1
	sum := 0.0
	for i := last - period; i < last; i++ {
		sum += volumes[i]
	}
	avg := sum / float64(period)
	if avg <= 0 {
		return false
	}
	return volumes[last] > avg*multiplier
}
