package config

import (
	"testing"
	"time"
)

func TestLoadIncludesThresholdDefaults(t *testing.T) {
	t.Setenv("AUTO_MATCH_THRESHOLD", "")
	t.Setenv("PARTIAL_MATCH_THRESHOLD", "")
	t.Setenv("HIGH_STAKES_FLOOR", "")
	t.Setenv("WARNING_REVIEW_COUNT", "")
	t.Setenv("TEMPLATE_CACHE_TTL", "")

	cfg := Load()
	if cfg.AutoMatchThreshold != 0.85 {
		t.Fatalf("expected default auto match threshold 0.85, got %v", cfg.AutoMatchThreshold)
	}
	if cfg.PartialMatchThreshold != 0.60 {
		t.Fatalf("expected default partial match threshold 0.60, got %v", cfg.PartialMatchThreshold)
	}
	if cfg.HighStakesFloor != 0.99 {
		t.Fatalf("expected default high stakes floor 0.99, got %v", cfg.HighStakesFloor)
	}
	if cfg.WarningReviewCount != 3 {
		t.Fatalf("expected default warning review count 3, got %d", cfg.WarningReviewCount)
	}
	if cfg.TemplateCacheTTL != 24*time.Hour {
		t.Fatalf("expected default cache ttl 24h, got %v", cfg.TemplateCacheTTL)
	}
	if len(cfg.HighStakesFields) != 1 || cfg.HighStakesFields[0] != "total_amount" {
		t.Fatalf("expected default high stakes fields [total_amount], got %v", cfg.HighStakesFields)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("AUTO_MATCH_THRESHOLD", "0.9")
	t.Setenv("HIGH_STAKES_FIELDS", "total_amount, tax_amount")
	t.Setenv("EXTRACT_TIMEOUT", "45s")
	t.Setenv("DESKEW_ENABLED", "false")
	t.Setenv("TARGET_DPI", "400")

	cfg := Load()
	if cfg.AutoMatchThreshold != 0.9 {
		t.Fatalf("expected auto match threshold override 0.9, got %v", cfg.AutoMatchThreshold)
	}
	if len(cfg.HighStakesFields) != 2 || cfg.HighStakesFields[1] != "tax_amount" {
		t.Fatalf("expected two high stakes fields, got %v", cfg.HighStakesFields)
	}
	if cfg.ExtractTimeout != 45*time.Second {
		t.Fatalf("expected extract timeout 45s, got %v", cfg.ExtractTimeout)
	}
	if cfg.DeskewEnabled {
		t.Fatalf("expected deskew disabled")
	}
	if cfg.TargetDPI != 400 {
		t.Fatalf("expected target dpi 400, got %d", cfg.TargetDPI)
	}
}

func TestLoadFallsBackOnMalformedValues(t *testing.T) {
	t.Setenv("AUTO_MATCH_THRESHOLD", "not-a-number")
	t.Setenv("MATCH_TOP_N", "five")
	t.Setenv("PREPROCESS_TIMEOUT", "soon")

	cfg := Load()
	if cfg.AutoMatchThreshold != 0.85 {
		t.Fatalf("expected fallback threshold 0.85, got %v", cfg.AutoMatchThreshold)
	}
	if cfg.MatchTopN != 5 {
		t.Fatalf("expected fallback top n 5, got %d", cfg.MatchTopN)
	}
	if cfg.PreprocessTimeout != 60*time.Second {
		t.Fatalf("expected fallback preprocess timeout 60s, got %v", cfg.PreprocessTimeout)
	}
}
