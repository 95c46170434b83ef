package ai

import (
	"sync"
	"testing"
)

func TestMeter(t *testing.T) {
	var m Meter

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Record(ModelMetrics{InputTokens: 10, OutputTokens: 5, TotalTokens: 15, DurationMs: 100})
		}()
	}
	wg.Wait()

	got := m.GetMetrics()
	if got.Requests != 10 || got.TotalTokens != 150 || got.DurationMs != 1000 {
		t.Fatalf("unexpected totals: %+v", got)
	}
	if got.TokenPerSecond != 150 {
		t.Fatalf("TokenPerSecond = %v, want 150", got.TokenPerSecond)
	}

	m.ResetMetrics()
	if got := m.GetMetrics(); got != (ModelMetrics{}) {
		t.Fatalf("expected zero metrics after reset, got %+v", got)
	}
}

func TestApplyOptions(t *testing.T) {
	got := ApplyOptions(
		GenerateOptions{Model: "default", Temperature: 0.3},
		WithModel("gpt-4o-mini"),
		WithSystemPrompts("a", "b"),
		WithMaxTokens(320),
	)
	if got.Model != "gpt-4o-mini" || got.Temperature != 0.3 || got.MaxTokens != 320 || len(got.SystemPrompts) != 2 {
		t.Fatalf("unexpected options: %+v", got)
	}
}
