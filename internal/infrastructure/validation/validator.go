// Package validation turns extracted fields into a routing decision.
// Validation never fails a document: data-quality problems route to
// review, and failures stay reserved for stage errors.
package validation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/scanwell/digidoc/internal/core/domain"
)

type Options struct {
	// HighStakesFields must individually reach HighStakesFloor before a
	// document may auto-commit, regardless of the overall confidence.
	HighStakesFields []string
	HighStakesFloor  float64
	// ConfidenceFloor marks individual fields as low-confidence.
	ConfidenceFloor float64
	// WarningReviewCount is the number of business-rule warnings that
	// forces review on its own.
	WarningReviewCount int
	// Now lets tests pin the clock for the future-date rule.
	Now func() time.Time
}

type Validator struct {
	opts Options
}

func NewValidator(opts Options) *Validator {
	if opts.HighStakesFloor <= 0 {
		opts.HighStakesFloor = 0.99
	}
	if opts.ConfidenceFloor <= 0 {
		opts.ConfidenceFloor = 0.60
	}
	if opts.WarningReviewCount <= 0 {
		opts.WarningReviewCount = 3
	}
	if len(opts.HighStakesFields) == 0 {
		opts.HighStakesFields = []string{"total_amount"}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Validator{opts: opts}
}

// Validate runs the checks in a fixed order: required fields, the
// high-stakes confidence floor, then business rules. Business rules only
// ever produce warnings; enough of them still forces review.
func (v *Validator) Validate(fields []domain.ExtractedField, tpl domain.Template) domain.ValidationResult {
	byName := make(map[string]domain.ExtractedField, len(fields))
	for _, f := range fields {
		byName[f.Name] = f
	}

	res := domain.ValidationResult{IsValid: true}

	for _, name := range tpl.RequiredFields() {
		f, ok := byName[name]
		if !ok || strings.TrimSpace(f.Value) == "" {
			res.MissingFields = append(res.MissingFields, name)
			res.IsValid = false
		}
	}

	highStakesOK := true
	for _, name := range v.opts.HighStakesFields {
		f, ok := byName[name]
		if !ok {
			continue
		}
		if f.Confidence < v.opts.HighStakesFloor {
			highStakesOK = false
			res.LowConfidenceFields = appendOnce(res.LowConfidenceFields, name)
		}
	}
	for _, f := range fields {
		if f.Value != "" && f.Confidence < v.opts.ConfidenceFloor {
			res.LowConfidenceFields = appendOnce(res.LowConfidenceFields, f.Name)
		}
	}

	res.Warnings = v.businessWarnings(byName)
	res.OverallConfidence = overallConfidence(fields)

	switch {
	case !res.IsValid,
		!highStakesOK,
		len(res.Warnings) >= v.opts.WarningReviewCount,
		len(res.LowConfidenceFields) > 0:
		res.Decision = domain.RouteReview
	default:
		res.Decision = domain.RouteAutoCommit
	}
	return res
}

// businessWarnings cross-checks the monetary and date fields a business
// document conventionally carries. Absent fields skip their rules.
func (v *Validator) businessWarnings(byName map[string]domain.ExtractedField) []string {
	var warnings []string

	total, totalOK := amountOf(byName, "total_amount")
	subtotal, subtotalOK := amountOf(byName, "subtotal")
	tax, taxOK := amountOf(byName, "tax_amount")

	lineSum, lineCount := lineTotalSum(byName)
	if subtotalOK && lineCount > 0 {
		tol := math.Max(0.01, 0.005*subtotal)
		if math.Abs(lineSum-subtotal) > tol {
			warnings = append(warnings, fmt.Sprintf(
				"line totals sum %.2f disagrees with subtotal %.2f", lineSum, subtotal))
		}
	}

	if totalOK && subtotalOK {
		implied := total - subtotal
		if taxOK {
			implied = tax
		}
		if subtotal > 0 {
			rate := implied / subtotal
			if rate < 0 || rate > 0.30 {
				warnings = append(warnings, fmt.Sprintf(
					"implied tax rate %.1f%% outside plausible range", rate*100))
			}
		}
	}

	if f, ok := byName["document_date"]; ok && f.Value != "" {
		ts, err := time.Parse("2006-01-02", f.Value)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("document date %q is not well-formed", f.Value))
		} else if ts.After(v.opts.Now()) {
			warnings = append(warnings, fmt.Sprintf("document date %s is in the future", f.Value))
		}
	}

	return warnings
}

// lineTotalSum adds every field whose name carries the line_total prefix.
func lineTotalSum(byName map[string]domain.ExtractedField) (float64, int) {
	var sum float64
	var n int
	for name, f := range byName {
		if !strings.HasPrefix(name, "line_total") {
			continue
		}
		if v, err := strconv.ParseFloat(f.Value, 64); err == nil {
			sum += v
			n++
		}
	}
	return sum, n
}

func amountOf(byName map[string]domain.ExtractedField, name string) (float64, bool) {
	f, ok := byName[name]
	if !ok || f.Value == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(f.Value, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func overallConfidence(fields []domain.ExtractedField) float64 {
	if len(fields) == 0 {
		return 0
	}
	var sum float64
	for _, f := range fields {
		sum += f.Confidence
	}
	return sum / float64(len(fields))
}

func appendOnce(list []string, name string) []string {
	for _, v := range list {
		if v == name {
			return list
		}
	}
	return append(list, name)
}
