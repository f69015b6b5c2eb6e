package tesseract

import (
	"regexp"
	"strings"
)

var (
	reDate   = regexp.MustCompile(`\b20\d{2}[-/.]\d{1,2}[-/.]\d{1,2}\b|\b\d{1,2}[-/.]\d{1,2}[-/.]20\d{2}\b`)
	reCurr   = regexp.MustCompile(`\b(usd|eur|gbp|cad|aud|inr|jpy)\b|[$£€]`)
	reAmount = regexp.MustCompile(`\b\d{1,3}(,\d{3})*(\.\d{2})\b|\b\d+\.\d{2}\b`)
)

// heuristicConfidence scores recognized text by whether it looks like
// business-document content at all. Garbled OCR output rarely produces
// well-formed dates or amounts.
func heuristicConfidence(txt string) float64 {
	lower := strings.ToLower(txt)
	score := 0.2
	if reDate.MatchString(lower) {
		score += 0.2
	}
	if reCurr.MatchString(lower) {
		score += 0.15
	}
	if reAmount.MatchString(lower) {
		score += 0.15
	}
	if len(txt) > 0 {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// blendConfidence weights the engine's own confidence over the text-shape
// heuristic when the engine reported one.
func blendConfidence(engineConf float64, text string) float64 {
	heur := heuristicConfidence(text)
	if text == "" {
		return 0
	}
	if engineConf <= 0 {
		return heur
	}
	conf := 0.7*engineConf + 0.3*heur
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}
