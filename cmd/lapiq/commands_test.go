package main

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSeedFileParsing(t *testing.T) {
	raw := `{
		"products": [{"sku": "SKU-1", "brand": "Lenovo", "model_name": "ThinkPad E14", "average_rating": 4.3, "review_count": 27}],
		"prices": [{"sku": "SKU-1", "price": 849.99, "recorded_on": "2026-03-01", "promo": "spring sale"}],
		"reviews": [{"sku": "SKU-1", "rating": 5, "body": "great keyboard", "recorded_on": "2026-03-02"}],
		"questions": [{"sku": "SKU-1", "question": "USB-C charging?", "answer": "Yes."}]
	}`

	var seed seedFile
	if err := json.Unmarshal([]byte(raw), &seed); err != nil {
		t.Fatalf("parsing seed: %v", err)
	}
	if len(seed.Products) != 1 || seed.Products[0].AverageRating != 4.3 {
		t.Errorf("products = %+v", seed.Products)
	}
	if len(seed.Prices) != 1 || seed.Prices[0].Promo != "spring sale" {
		t.Errorf("prices = %+v", seed.Prices)
	}
}

func TestParseSeedDate(t *testing.T) {
	got, err := parseSeedDate("2026-03-01")
	if err != nil {
		t.Fatalf("parseSeedDate: %v", err)
	}
	want := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}

	if _, err := parseSeedDate("03/01/2026"); err == nil {
		t.Error("expected error for non-ISO date")
	}

	now, err := parseSeedDate("")
	if err != nil {
		t.Fatalf("empty date: %v", err)
	}
	if time.Since(now) > time.Minute {
		t.Errorf("empty date should default to now, got %v", now)
	}
}
