package documents

// tokenCount accumulates the rune classes used by EstimateTokens so that the
// estimate of a concatenation can be computed without re-scanning text.
type tokenCount struct {
	cjk   int
	other int
}

func countTokens(text string) tokenCount {
	var c tokenCount
	for _, r := range text {
		c.addRune(r)
	}
	return c
}

func (c *tokenCount) addRune(r rune) {
	if isCJK(r) {
		c.cjk++
	} else {
		c.other++
	}
}

func (c tokenCount) plus(o tokenCount) tokenCount {
	return tokenCount{cjk: c.cjk + o.cjk, other: c.other + o.other}
}

func (c tokenCount) estimate() int {
	return int(float64(c.cjk)/1.5 + float64(c.other)/4.0)
}

// EstimateTokens approximates the token length of text: CJK ideographs
// (U+4E00 to U+9FA5) weigh 1/1.5, every other rune 1/4, and the sum is
// floored.
func EstimateTokens(text string) int {
	return countTokens(text).estimate()
}

func isCJK(r rune) bool {
	return r >= 0x4E00 && r <= 0x9FA5
}
