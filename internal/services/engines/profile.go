package engines

import "github.com/brandlens/brandlens/internal/models"

// Profile describes how to drive one engine's web UI. Selector lists are
// tried in order; engines ship hashed class names so the lists degrade from
// stable attributes to structural guesses.
type Profile struct {
	Engine  models.Engine
	ChatURL string

	// OwnHosts are excluded from citation extraction
	OwnHosts []string

	InputSelectors      []string
	SendButtonSelectors []string
	StopButtonSelectors []string
	AnswerSelectors     []string
	CitationSelectors   []string

	// WebSearchToggleSelectors is empty when the engine has no toggle
	WebSearchToggleSelectors []string

	LoginSelectors []string
	LoginKeywords  []string

	// PrependInstruction is sent ahead of the query text when non-empty
	PrependInstruction string
}

// HasWebSearchToggle reports whether the engine exposes a search switch
func (p *Profile) HasWebSearchToggle() bool {
	return len(p.WebSearchToggleSelectors) > 0
}

var commonLoginKeywords = []string{
	"sign in", "log in", "sign up", "登录", "注册", "请先登录",
}

var profiles = map[models.Engine]*Profile{
	models.EnginePerplexity: {
		Engine:   models.EnginePerplexity,
		ChatURL:  "https://www.perplexity.ai/",
		OwnHosts: []string{"perplexity.ai", "www.perplexity.ai", "pplx.ai"},
		InputSelectors: []string{
			`textarea[placeholder*="Ask"]`,
			`textarea[autofocus]`,
			`div[contenteditable="true"]`,
			`textarea`,
		},
		SendButtonSelectors: []string{
			`button[aria-label="Submit"]`,
			`button[type="submit"]`,
		},
		StopButtonSelectors: []string{
			`button[aria-label="Stop"]`,
			`button[aria-label*="stop"]`,
		},
		AnswerSelectors: []string{
			`div[class*="prose"]`,
			`main article`,
		},
		CitationSelectors: []string{
			`a[class*="citation"]`,
			`main article a[href^="http"]`,
		},
		LoginSelectors: []string{`button[data-testid="login-modal"]`},
		LoginKeywords:  commonLoginKeywords,
	},
	models.EngineQwen: {
		Engine:   models.EngineQwen,
		ChatURL:  "https://tongyi.aliyun.com/qianwen/",
		OwnHosts: []string{"tongyi.aliyun.com", "aliyun.com", "qianwen.aliyun.com"},
		InputSelectors: []string{
			`textarea[placeholder*="输入"]`,
			`div[contenteditable="true"]`,
			`textarea`,
		},
		SendButtonSelectors: []string{
			`div[class*="operateBtn"]`,
			`button[class*="send"]`,
		},
		StopButtonSelectors: []string{
			`div[class*="stopBtn"]`,
			`button[class*="stop"]`,
		},
		AnswerSelectors: []string{
			`div[class*="answerItem"]`,
			`div[class*="tongyi-markdown"]`,
			`div[class*="markdown"]`,
		},
		CitationSelectors: []string{
			`div[class*="referenceLink"] a`,
			`div[class*="answerItem"] a[href^="http"]`,
		},
		WebSearchToggleSelectors: []string{
			`div[class*="internetSearch"]`,
			`button[class*="search-toggle"]`,
		},
		LoginSelectors: []string{`div[class*="loginDialog"]`, `div[class*="qrcode"]`},
		LoginKeywords:  commonLoginKeywords,
	},
	models.EngineDeepSeek: {
		Engine:   models.EngineDeepSeek,
		ChatURL:  "https://chat.deepseek.com/",
		OwnHosts: []string{"chat.deepseek.com", "deepseek.com"},
		InputSelectors: []string{
			`textarea#chat-input`,
			`textarea[placeholder]`,
			`textarea`,
		},
		SendButtonSelectors: []string{
			`div[role="button"][aria-disabled="false"]`,
			`button[type="submit"]`,
		},
		StopButtonSelectors: []string{
			`div[class*="stop"]`,
			`button[aria-label*="Stop"]`,
		},
		AnswerSelectors: []string{
			`div[class*="markdown"]`,
			`div[class*="message-content"]`,
		},
		CitationSelectors: []string{
			`div[class*="markdown"] a[href^="http"]`,
		},
		WebSearchToggleSelectors: []string{
			`div[class*="search-toggle"]`,
			`span[class*="联网搜索"]`,
		},
		LoginSelectors:     []string{`div[class*="login-modal"]`},
		LoginKeywords:      commonLoginKeywords,
		PrependInstruction: "请直接回答，不要反问或要求更多细节。",
	},
	models.EngineKimi: {
		Engine:   models.EngineKimi,
		ChatURL:  "https://kimi.moonshot.cn/",
		OwnHosts: []string{"kimi.moonshot.cn", "moonshot.cn"},
		InputSelectors: []string{
			`div[contenteditable="true"][data-testid="msh-chatinput-editor"]`,
			`div[contenteditable="true"]`,
			`textarea`,
		},
		SendButtonSelectors: []string{
			`button[data-testid="msh-chatinput-send-button"]`,
			`button[class*="send"]`,
		},
		StopButtonSelectors: []string{
			`button[data-testid="msh-chat-stop-button"]`,
			`button[class*="stop"]`,
		},
		AnswerSelectors: []string{
			`div[data-testid="msh-chat-segment-content"]`,
			`div[class*="markdown"]`,
		},
		CitationSelectors: []string{
			`div[class*="search-result"] a`,
			`div[class*="markdown"] a[href^="http"]`,
		},
		WebSearchToggleSelectors: []string{
			`button[data-testid="msh-chatinput-search-button"]`,
			`div[class*="online-search"]`,
		},
		LoginSelectors: []string{`div[class*="login"] img[class*="qrcode"]`},
		LoginKeywords:  commonLoginKeywords,
	},
	models.EngineChatGPT: {
		Engine:   models.EngineChatGPT,
		ChatURL:  "https://chatgpt.com/",
		OwnHosts: []string{"chatgpt.com", "chat.openai.com", "openai.com"},
		InputSelectors: []string{
			`div#prompt-textarea`,
			`div[contenteditable="true"]`,
			`textarea[data-testid="prompt-textarea"]`,
		},
		SendButtonSelectors: []string{
			`button[data-testid="send-button"]`,
			`button[aria-label*="Send"]`,
		},
		StopButtonSelectors: []string{
			`button[data-testid="stop-button"]`,
			`button[aria-label*="Stop"]`,
		},
		AnswerSelectors: []string{
			`div[data-message-author-role="assistant"]`,
			`div[class*="markdown"]`,
		},
		CitationSelectors: []string{
			`div[data-message-author-role="assistant"] a[href^="http"]`,
		},
		LoginSelectors: []string{`button[data-testid="login-button"]`},
		LoginKeywords:  commonLoginKeywords,
	},
	models.EngineDoubao: {
		Engine:   models.EngineDoubao,
		ChatURL:  "https://www.doubao.com/chat/",
		OwnHosts: []string{"doubao.com", "www.doubao.com"},
		InputSelectors: []string{
			`textarea[data-testid="chat_input_input"]`,
			`textarea[placeholder]`,
			`div[contenteditable="true"]`,
		},
		SendButtonSelectors: []string{
			`button[data-testid="chat_input_send_button"]`,
			`button[class*="send"]`,
		},
		StopButtonSelectors: []string{
			`button[data-testid="chat_input_stop_button"]`,
			`button[class*="stop"]`,
		},
		AnswerSelectors: []string{
			`div[data-testid="receive_message"]`,
			`div[class*="markdown"]`,
		},
		CitationSelectors: []string{
			`div[data-testid="receive_message"] a[href^="http"]`,
		},
		LoginSelectors: []string{`div[class*="login-panel"]`},
		LoginKeywords:  commonLoginKeywords,
	},
	models.EngineChatGLM: {
		Engine:   models.EngineChatGLM,
		ChatURL:  "https://chatglm.cn/main/alltoolsdetail",
		OwnHosts: []string{"chatglm.cn", "www.chatglm.cn"},
		InputSelectors: []string{
			`textarea[class*="input"]`,
			`div[contenteditable="true"]`,
			`textarea`,
		},
		SendButtonSelectors: []string{
			`div[class*="enter"] img`,
			`button[class*="send"]`,
		},
		StopButtonSelectors: []string{
			`div[class*="stop"]`,
		},
		AnswerSelectors: []string{
			`div[class*="answer-content"]`,
			`div[class*="markdown-body"]`,
		},
		CitationSelectors: []string{
			`div[class*="answer-content"] a[href^="http"]`,
		},
		LoginSelectors: []string{`div[class*="login-box"]`},
		LoginKeywords:  commonLoginKeywords,
	},
	models.EngineGoogleSGE: {
		Engine:   models.EngineGoogleSGE,
		ChatURL:  "https://www.google.com/search?udm=50",
		OwnHosts: []string{"google.com", "www.google.com", "gstatic.com"},
		InputSelectors: []string{
			`textarea[name="q"]`,
			`input[name="q"]`,
		},
		SendButtonSelectors: []string{
			`button[aria-label="Search"]`,
		},
		StopButtonSelectors: []string{},
		AnswerSelectors: []string{
			`div[data-attrid="SGE"]`,
			`div[class*="ai-overview"]`,
			`div#search`,
		},
		CitationSelectors: []string{
			`div[data-attrid="SGE"] a[href^="http"]`,
			`div[class*="ai-overview"] a[href^="http"]`,
		},
		LoginSelectors: []string{},
		LoginKeywords:  commonLoginKeywords,
	},
	models.EngineBingCopilot: {
		Engine:   models.EngineBingCopilot,
		ChatURL:  "https://copilot.microsoft.com/",
		OwnHosts: []string{"copilot.microsoft.com", "bing.com", "microsoft.com"},
		InputSelectors: []string{
			`textarea#userInput`,
			`textarea[placeholder]`,
			`div[contenteditable="true"]`,
		},
		SendButtonSelectors: []string{
			`button[aria-label*="Submit"]`,
			`button[title*="Submit"]`,
		},
		StopButtonSelectors: []string{
			`button[aria-label*="Stop"]`,
		},
		AnswerSelectors: []string{
			`div[class*="ai-message"]`,
			`div[data-content="ai-message"]`,
		},
		CitationSelectors: []string{
			`div[class*="citation"] a`,
			`div[class*="ai-message"] a[href^="http"]`,
		},
		LoginSelectors: []string{`a[data-testid="signin"]`},
		LoginKeywords:  commonLoginKeywords,
	},
}

// ProfileFor returns the UI profile for an engine, nil when unknown
func ProfileFor(engine models.Engine) *Profile {
	return profiles[engine]
}
