package apiclient

import "github.com/brandlens/brandlens/internal/models"

// Endpoint describes one vendor's chat-completions API. All five vendors
// speak the OpenAI-compatible request shape; citations come back in
// vendor-specific response fields.
type Endpoint struct {
	Engine  models.Engine
	BaseURL string
	Model   string
	// SearchFlag adds the DashScope-style enable_search request field
	SearchFlag bool
}

var endpoints = map[models.Engine]Endpoint{
	models.EngineDeepSeek: {
		Engine:  models.EngineDeepSeek,
		BaseURL: "https://api.deepseek.com",
		Model:   "deepseek-chat",
	},
	models.EngineQwen: {
		Engine:     models.EngineQwen,
		BaseURL:    "https://dashscope.aliyuncs.com/compatible-mode/v1",
		Model:      "qwen-plus",
		SearchFlag: true,
	},
	models.EngineKimi: {
		Engine:  models.EngineKimi,
		BaseURL: "https://api.moonshot.cn/v1",
		Model:   "moonshot-v1-8k",
	},
	models.EnginePerplexity: {
		Engine:  models.EnginePerplexity,
		BaseURL: "https://api.perplexity.ai",
		Model:   "sonar",
	},
	models.EngineChatGPT: {
		Engine:  models.EngineChatGPT,
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o",
	},
}

// EndpointFor returns the vendor endpoint for an engine; ok is false when
// the engine has no HTTP API.
func EndpointFor(engine models.Engine) (Endpoint, bool) {
	e, ok := endpoints[engine]
	return e, ok
}
