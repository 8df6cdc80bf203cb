package challenge

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
)

// markerScript probes the DOM for the selector families Classify understands.
// Runs inside the page so one round-trip covers all selectors.
const markerScript = `(() => {
	const has = (sel) => document.querySelector(sel) !== null;
	return {
		cloudflareForm: has('#challenge-form') || has('.cf-browser-verification') || has('#cf-wrapper') || has('#challenge-running'),
		turnstileWidget: has('iframe[src*="challenges.cloudflare.com"]') || has('input[name="cf-turnstile-response"]'),
		recaptchaWidget: has('.g-recaptcha') || has('iframe[src*="recaptcha"]') || has('iframe[src*="google.com/recaptcha"]'),
		hcaptchaWidget: has('.h-captcha') || has('iframe[src*="hcaptcha"]'),
		loginForm: (has('input[type="password"]') && has('form')) || has('form[action*="login"]') || has('form[action*="signin"]'),
	};
})()`

const visibleTextScript = `document.body ? document.body.innerText.slice(0, 20000) : ""`

type markerProbe struct {
	CloudflareForm  bool `json:"cloudflareForm"`
	TurnstileWidget bool `json:"turnstileWidget"`
	RecaptchaWidget bool `json:"recaptchaWidget"`
	HCaptchaWidget  bool `json:"hcaptchaWidget"`
	LoginForm       bool `json:"loginForm"`
}

// Detector classifies the current state of a live chromedp page
type Detector struct {
	logger arbor.ILogger
}

// NewDetector creates a page challenge detector
func NewDetector(logger arbor.ILogger) *Detector {
	return &Detector{logger: logger}
}

// Detect returns the single highest-priority challenge kind on the page.
// A page that cannot be probed at all is reported as blocked.
func (d *Detector) Detect(ctx context.Context) Kind {
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var text string
	var probe markerProbe
	err := chromedp.Run(probeCtx,
		chromedp.Evaluate(visibleTextScript, &text),
		chromedp.Evaluate(markerScript, &probe),
	)
	if err != nil {
		d.logger.Debug().Err(err).Msg("Challenge probe failed, treating page as blocked")
		return KindBlocked
	}

	kind := Classify(text, PageMarkers{
		CloudflareForm:  probe.CloudflareForm,
		TurnstileWidget: probe.TurnstileWidget,
		RecaptchaWidget: probe.RecaptchaWidget,
		HCaptchaWidget:  probe.HCaptchaWidget,
		LoginForm:       probe.LoginForm,
	})

	if kind.IsChallenge() {
		d.logger.Debug().Str("kind", string(kind)).Msg("Challenge detected")
	}
	return kind
}
