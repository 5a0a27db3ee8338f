package agent

import (
	"errors"
	"testing"

	globalconfig "aichat/config"
)

func testFactory(t *testing.T) *Factory {
	t.Helper()
	cfg := &globalconfig.Config{
		OllamaHost:   "http://localhost:11434",
		OllamaModels: []string{"llama3.1", "qwen3"},
	}
	return NewFactory(cfg, nil)
}

func TestFactoryUnknownModel(t *testing.T) {
	f := testFactory(t)

	_, err := f.Agent("gpt-99-ultra")
	if !errors.Is(err, ErrUnknownModel) {
		t.Fatalf("expected ErrUnknownModel, got %v", err)
	}
}

func TestFactoryDispatch(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("DEEPSEEK_API_KEY", "test-key")

	f := testFactory(t)

	tests := []struct {
		model string
		check func(Agent) bool
	}{
		{"claude-sonnet-4-5", func(a Agent) bool { _, ok := a.(*ClaudeAgent); return ok }},
		{"gpt-4o-mini", func(a Agent) bool { _, ok := a.(*GPTAgent); return ok }},
		{"gemini-2.5-flash", func(a Agent) bool { _, ok := a.(*GeminiAgent); return ok }},
		{"deepseek-chat", func(a Agent) bool { _, ok := a.(*DeepSeekAgent); return ok }},
		{"llama3.1", func(a Agent) bool { _, ok := a.(*OllamaAgent); return ok }},
		{"dummy", func(a Agent) bool { _, ok := a.(*DummyAgent); return ok }},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			agent, err := f.Agent(tt.model)
			if err != nil {
				t.Fatalf("Agent(%q) failed: %v", tt.model, err)
			}
			if !tt.check(agent) {
				t.Errorf("wrong agent type %T for %q", agent, tt.model)
			}
			if tt.model != "dummy" && agent.Model() != tt.model {
				t.Errorf("agent reports model %q", agent.Model())
			}
		})
	}
}

func TestFactoryMissingAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	f := testFactory(t)
	if _, err := f.Agent("claude-sonnet-4-5"); err == nil {
		t.Fatal("expected error when API key is missing")
	}
}

func TestFactoryCachesAgents(t *testing.T) {
	f := testFactory(t)

	first, err := f.Agent("dummy")
	if err != nil {
		t.Fatalf("Agent failed: %v", err)
	}
	second, err := f.Agent("dummy")
	if err != nil {
		t.Fatalf("Agent failed: %v", err)
	}
	if first != second {
		t.Error("expected the same cached agent instance")
	}
}

func TestFactoryModels(t *testing.T) {
	f := testFactory(t)
	models := f.Models()

	want := map[string]bool{
		"gpt-4o-mini": false, "claude-sonnet-4-5": false,
		"llama3.1": false, "dummy": false, "deepseek-chat": false,
	}
	for _, m := range models {
		if _, ok := want[m]; ok {
			want[m] = true
		}
	}
	for m, seen := range want {
		if !seen {
			t.Errorf("model %q missing from catalog", m)
		}
	}

	for i := 1; i < len(models); i++ {
		if models[i-1] > models[i] {
			t.Errorf("catalog not sorted at %q > %q", models[i-1], models[i])
			break
		}
	}
}
