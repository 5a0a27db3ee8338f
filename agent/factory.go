package agent

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	globalconfig "aichat/config"
)

// ErrUnknownModel is returned when a model name matches no provider.
var ErrUnknownModel = errors.New("unknown model")

// Known cloud models per provider. Local models come from the ollama_models
// setting instead since any pulled model works.
var (
	claudeModels = []string{
		"claude-sonnet-4-5",
		"claude-opus-4-1",
		"claude-3-7-sonnet-latest",
		"claude-3-5-haiku-latest",
	}
	gptModels = []string{
		"gpt-4o",
		"gpt-4o-mini",
		"gpt-4.1",
		"gpt-4.1-mini",
		"o4-mini",
	}
	geminiModels = []string{
		"gemini-2.5-pro",
		"gemini-2.5-flash",
		"gemini-2.0-flash",
	}
	deepseekModels = []string{
		"deepseek-chat",
		"deepseek-reasoner",
	}
)

type providerKind int

const (
	kindClaude providerKind = iota
	kindGPT
	kindGemini
	kindDeepSeek
	kindOllama
	kindDummy
)

// Factory creates and caches one agent per model name. All agents share the
// same tool connector. Safe for concurrent use.
type Factory struct {
	cfg   *globalconfig.Config
	tools ToolRunner

	mu     sync.Mutex
	agents map[string]Agent
}

func NewFactory(cfg *globalconfig.Config, tools ToolRunner) *Factory {
	return &Factory{
		cfg:    cfg,
		tools:  tools,
		agents: make(map[string]Agent),
	}
}

// Agent returns the agent for a model, creating it on first use. The same
// model name always yields the same agent instance.
func (f *Factory) Agent(modelName string) (Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if agent, ok := f.agents[modelName]; ok {
		return agent, nil
	}

	agent, err := f.newAgent(modelName)
	if err != nil {
		return nil, err
	}

	f.agents[modelName] = agent
	return agent, nil
}

func (f *Factory) newAgent(modelName string) (Agent, error) {
	kind, ok := f.kindFor(modelName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, modelName)
	}

	switch kind {
	case kindClaude:
		return NewClaudeAgent(modelName, f.tools, f.cfg.SystemPrompt)
	case kindGPT:
		return NewGPTAgent(modelName, f.tools, f.cfg.SystemPrompt)
	case kindGemini:
		return NewGeminiAgent(modelName, f.tools, f.cfg.SystemPrompt)
	case kindDeepSeek:
		return NewDeepSeekAgent(modelName, f.cfg.DeepSeekBaseURL, f.tools, f.cfg.SystemPrompt)
	case kindOllama:
		return NewOllamaAgent(modelName, f.cfg.OllamaHost, f.tools, f.cfg.SystemPrompt)
	case kindDummy:
		return NewDummyAgent(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, modelName)
	}
}

func (f *Factory) kindFor(modelName string) (providerKind, bool) {
	if modelName == "dummy" {
		return kindDummy, true
	}
	if contains(claudeModels, modelName) {
		return kindClaude, true
	}
	if contains(gptModels, modelName) {
		return kindGPT, true
	}
	if contains(geminiModels, modelName) {
		return kindGemini, true
	}
	if contains(deepseekModels, modelName) {
		return kindDeepSeek, true
	}
	if contains(f.cfg.OllamaModels, modelName) {
		return kindOllama, true
	}
	return 0, false
}

// Models returns every selectable model name, sorted.
func (f *Factory) Models() []string {
	var all []string
	all = append(all, claudeModels...)
	all = append(all, gptModels...)
	all = append(all, geminiModels...)
	all = append(all, deepseekModels...)
	all = append(all, f.cfg.OllamaModels...)
	all = append(all, "dummy")
	sort.Strings(all)
	return all
}

func contains(list []string, item string) bool {
	for _, candidate := range list {
		if candidate == item {
			return true
		}
	}
	return false
}
