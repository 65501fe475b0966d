package executor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/j-veylop/tokenwatch/internal/models"
)

func TestFuncAdapter(t *testing.T) {
	var got []string
	var exec Executor = Func(func(ctx context.Context, contextText, prompt, model string) (models.Response, error) {
		got = append(got, contextText, prompt, model)
		return models.Response{Content: "ok"}, nil
	})

	resp, err := exec.Execute(context.Background(), "c", "p", "m")
	if err != nil || resp.Content != "ok" {
		t.Fatalf("Execute = %+v, %v", resp, err)
	}
	if strings.Join(got, ",") != "c,p,m" {
		t.Errorf("arguments = %v", got)
	}
}

func TestSimulatorResponse(t *testing.T) {
	s := NewSimulator(SimulatorConfig{})

	resp, err := s.Execute(context.Background(), strings.Repeat("a", 400), "Summarize", "gpt-4.1")
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if resp.Model != "gpt-4.1" || !strings.Contains(resp.Content, "Summarize") {
		t.Errorf("response = %+v", resp)
	}
	if resp.TokenUsage == nil {
		t.Fatal("TokenUsage should be set")
	}
	if resp.TokenUsage.InputTokens != 103 {
		t.Errorf("InputTokens = %d, want 103", resp.TokenUsage.InputTokens)
	}
	if resp.TokenUsage.OutputTokens <= 0 {
		t.Errorf("OutputTokens = %d, want positive", resp.TokenUsage.OutputTokens)
	}
}

func TestSimulatorFailures(t *testing.T) {
	always := NewSimulator(SimulatorConfig{ErrorRate: 1})
	if _, err := always.Execute(context.Background(), "c", "p", "m"); !errors.Is(err, ErrSimulatedFailure) {
		t.Errorf("err = %v, want ErrSimulatedFailure", err)
	}

	never := NewSimulator(SimulatorConfig{ErrorRate: 0})
	for range 100 {
		if _, err := never.Execute(context.Background(), "c", "p", "m"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}

func TestSimulatorDeterministic(t *testing.T) {
	run := func() []bool {
		s := NewSimulator(SimulatorConfig{ErrorRate: 0.5, Seed: 42})
		var out []bool
		for range 20 {
			_, err := s.Execute(context.Background(), "c", "p", "m")
			out = append(out, err != nil)
		}
		return out
	}

	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("runs diverge at %d", i)
		}
	}
}

func TestSimulatorLatencyHonorsContext(t *testing.T) {
	s := NewSimulator(SimulatorConfig{Latency: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := s.Execute(ctx, "c", "p", "m"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate short = %q", got)
	}
	if got := truncate("abcdef", 3); got != "abc..." {
		t.Errorf("truncate long = %q", got)
	}
}
