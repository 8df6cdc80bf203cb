package challenge

// Kind is the single challenge family detected on a page
type Kind string

const (
	KindNone                Kind = "none"
	KindCloudflareJS        Kind = "cloudflare_js"
	KindCloudflareTurnstile Kind = "cloudflare_turnstile"
	KindRecaptcha           Kind = "recaptcha"
	KindHCaptcha            Kind = "hcaptcha"
	KindRateLimited         Kind = "rate_limited"
	KindBlocked             Kind = "blocked"
	KindLoginRequired       Kind = "login_required"
)

// IsChallenge reports whether the kind blocks the page
func (k Kind) IsChallenge() bool {
	return k != KindNone && k != ""
}

// Result is the outcome of one resolution attempt. Strategies never return
// errors across the boundary; failures carry a short message here.
type Result struct {
	Success        bool   `json:"success"`
	Kind           Kind   `json:"kind"`
	Message        string `json:"message,omitempty"`
	ScreenshotPath string `json:"screenshot_path,omitempty"`
	ElapsedMs      int64  `json:"elapsed_ms"`
}
