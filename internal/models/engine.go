package models

import (
	"fmt"
	"strings"
)

// Engine identifies an AI assistant surface that answers queries with
// optional URL citations.
type Engine string

const (
	EnginePerplexity Engine = "perplexity"
	EngineQwen       Engine = "qwen"
	EngineDeepSeek   Engine = "deepseek"
	EngineKimi       Engine = "kimi"
	EngineChatGPT    Engine = "chatgpt"
	EngineDoubao     Engine = "doubao"
	EngineChatGLM    Engine = "chatglm"
	EngineGoogleSGE  Engine = "google_sge"
	EngineBingCopilot Engine = "bing_copilot"
)

// AllEngines is the closed set of supported engine identifiers.
var AllEngines = []Engine{
	EnginePerplexity,
	EngineQwen,
	EngineDeepSeek,
	EngineKimi,
	EngineChatGPT,
	EngineDoubao,
	EngineChatGLM,
	EngineGoogleSGE,
	EngineBingCopilot,
}

// DefaultAPIEngines lists engines that ship a usable chat-completion HTTP API.
// Engines outside this set always go through the browser adapter.
var DefaultAPIEngines = []Engine{
	EngineDeepSeek,
	EngineQwen,
	EngineKimi,
	EnginePerplexity,
	EngineChatGPT,
}

// ParseEngine validates and normalizes an engine identifier
func ParseEngine(s string) (Engine, error) {
	e := Engine(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllEngines {
		if e == known {
			return e, nil
		}
	}
	return "", fmt.Errorf("unknown engine: %q", s)
}

// String returns the engine identifier
func (e Engine) String() string {
	return string(e)
}

// IsValid reports whether the engine is in the closed set
func (e Engine) IsValid() bool {
	_, err := ParseEngine(string(e))
	return err == nil
}
