package capture

const (
	darkLevel   = 80
	minDarkness = 0.1
	maxDarkness = 0.7
)

// hasGoodBlackLevel rejects frames that are mostly dark (lens covered, IR
// emitter off) or mostly bright (overexposed).
func hasGoodBlackLevel(pix []byte) bool {
	total := len(pix)
	if total == 0 {
		return false
	}
	dark := 0
	for i := 0; i < total; i++ {
		if pix[i] < darkLevel {
			dark++
		}
	}
	darkness := float64(dark) / float64(total)
	return darkness > minDarkness && darkness < maxDarkness
}
