package drive

// Translator maps encoder counts to motor steps for absolute commands.
// Status always stays in counts; there is no inverse.
type Translator struct {
	Ratio float64
}

// EncoderToSteps truncates toward zero.
func (t Translator) EncoderToSteps(counts int64) int64 {
	return int64(float64(counts) * t.Ratio)
}
