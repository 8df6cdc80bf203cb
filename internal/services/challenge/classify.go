package challenge

import "strings"

// PageMarkers carries DOM-selector hits gathered from the live page. Each
// field is true when at least one matching element exists.
type PageMarkers struct {
	CloudflareForm  bool // #challenge-form, .cf-browser-verification, #cf-wrapper
	TurnstileWidget bool // iframe[src*="challenges.cloudflare.com"], input[name="cf-turnstile-response"]
	RecaptchaWidget bool // .g-recaptcha, iframe[src*="recaptcha"]
	HCaptchaWidget  bool // .h-captcha, iframe[src*="hcaptcha"]
	LoginForm       bool // input[type="password"], form[action*="login"]
}

// Phrase tables are scanned case-insensitively against the page's visible
// text. Chinese engines surface the same walls with localized copy.
var (
	cloudflarePhrases = []string{
		"checking your browser",
		"just a moment",
		"verify you are human",
		"verifying you are human",
		"cloudflare",
		"请稍候",
		"正在验证您的浏览器",
		"确认您是真人",
	}
	rateLimitPhrases = []string{
		"too many requests",
		"rate limit",
		"you are being rate limited",
		"请求过于频繁",
		"操作过于频繁",
		"访问太频繁",
	}
	blockedPhrases = []string{
		"access denied",
		"you have been blocked",
		"request blocked",
		"访问被拒绝",
		"您已被封禁",
	}
	loginPhrases = []string{
		"please sign in",
		"please log in",
		"login required",
		"sign in to continue",
		"log in to continue",
		"请先登录",
		"请登录后",
		"登录后继续",
	}
)

// Classify maps page text and DOM markers to a single challenge kind. When
// several families are present the highest-priority one wins: Cloudflare,
// then reCAPTCHA, hCaptcha, rate-limited, blocked, login-required.
func Classify(pageText string, markers PageMarkers) Kind {
	text := strings.ToLower(pageText)

	if markers.TurnstileWidget {
		return KindCloudflareTurnstile
	}
	if markers.CloudflareForm || containsAny(text, cloudflarePhrases) {
		return KindCloudflareJS
	}
	if markers.RecaptchaWidget {
		return KindRecaptcha
	}
	if markers.HCaptchaWidget {
		return KindHCaptcha
	}
	if containsAny(text, rateLimitPhrases) {
		return KindRateLimited
	}
	if containsAny(text, blockedPhrases) {
		return KindBlocked
	}
	if markers.LoginForm || containsAny(text, loginPhrases) {
		return KindLoginRequired
	}
	return KindNone
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
