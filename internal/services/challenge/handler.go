package challenge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/brandlens/brandlens/internal/common"
)

const (
	autoWaitDeadline = 30 * time.Second
	autoWaitPoll     = 1 * time.Second
	manualPoll       = 2 * time.Second
)

// Handler resolves detected challenges on a live page using the configured
// strategy. A nil solver disables the api_solver path.
type Handler struct {
	detector      *Detector
	solver        *SolverClient
	strategy      string
	manualTimeout time.Duration
	screenshotDir string
	logger        arbor.ILogger
}

// NewHandler wires the detector and optional solver client from config
func NewHandler(config *common.CaptchaConfig, screenshotDir string, logger arbor.ILogger) *Handler {
	var solver *SolverClient
	if config.APIKey != "" {
		solver = NewSolverClient(config.SolverBaseURL, config.APIKey, config.SolverPollTimeout, logger)
	}
	return &Handler{
		detector:      NewDetector(logger),
		solver:        solver,
		strategy:      config.Strategy,
		manualTimeout: time.Duration(config.ManualTimeoutSeconds) * time.Second,
		screenshotDir: screenshotDir,
		logger:        logger,
	}
}

// Detector exposes the page classifier for callers that only need detection
func (h *Handler) Detector() *Detector {
	return h.detector
}

// Resolve detects and attempts to clear whatever blocks the page. A page
// with no challenge resolves immediately.
func (h *Handler) Resolve(ctx context.Context, pageURL string) Result {
	kind := h.detector.Detect(ctx)
	if !kind.IsChallenge() {
		return Result{Success: true, Kind: KindNone}
	}

	h.logger.Info().
		Str("kind", string(kind)).
		Str("strategy", h.strategy).
		Msg("Resolving challenge")

	switch h.strategy {
	case "auto_wait":
		return h.autoWait(ctx, kind)
	case "manual":
		return h.manual(ctx, kind)
	case "api":
		return h.apiSolve(ctx, kind, pageURL)
	default:
		return h.smart(ctx, kind, pageURL)
	}
}

// smart picks a strategy from the challenge family. Turnstile gets a cheap
// auto-wait attempt before falling back to manual.
func (h *Handler) smart(ctx context.Context, kind Kind, pageURL string) Result {
	switch kind {
	case KindCloudflareJS:
		return h.autoWait(ctx, kind)
	case KindCloudflareTurnstile:
		if res := h.autoWait(ctx, kind); res.Success {
			return res
		}
		return h.manual(ctx, kind)
	case KindRecaptcha, KindHCaptcha:
		if h.solver != nil {
			return h.apiSolve(ctx, kind, pageURL)
		}
		return h.manual(ctx, kind)
	default:
		return h.manual(ctx, kind)
	}
}

// autoWait polls the detector for up to 30 seconds. For Cloudflare families
// the cf_clearance cookie appearing also counts as success.
func (h *Handler) autoWait(ctx context.Context, kind Kind) Result {
	start := time.Now()
	deadline := time.Now().Add(autoWaitDeadline)

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return h.failure(kind, "cancelled while waiting", start)
		case <-time.After(autoWaitPoll):
		}

		if h.detector.Detect(ctx) == KindNone {
			return h.success(kind, start)
		}
		if (kind == KindCloudflareJS || kind == KindCloudflareTurnstile) && h.hasClearanceCookie(ctx) {
			return h.success(kind, start)
		}
	}

	return h.failure(kind, "challenge still present after auto-wait", start)
}

// manual captures a screenshot for the operator, then waits for a human to
// clear the wall in the visible browser.
func (h *Handler) manual(ctx context.Context, kind Kind) Result {
	start := time.Now()
	shot := h.captureScreenshot(ctx, kind)
	deadline := time.Now().Add(h.manualTimeout)

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			res := h.failure(kind, "cancelled while waiting for manual resolution", start)
			res.ScreenshotPath = shot
			return res
		case <-time.After(manualPoll):
		}

		if h.detector.Detect(ctx) == KindNone {
			h.waitForDOMSettle(ctx)
			res := h.success(kind, start)
			res.ScreenshotPath = shot
			return res
		}
	}

	res := h.failure(kind, fmt.Sprintf("manual resolution timed out after %s", h.manualTimeout), start)
	res.ScreenshotPath = shot
	return res
}

// apiSolve delegates reCAPTCHA and hCaptcha to the external solver, then
// injects the token into the page. Other kinds fail fast.
func (h *Handler) apiSolve(ctx context.Context, kind Kind, pageURL string) Result {
	start := time.Now()

	if h.solver == nil {
		return h.failure(kind, "no solver API key configured", start)
	}

	var method, responseField string
	switch kind {
	case KindRecaptcha:
		method, responseField = "userrecaptcha", "g-recaptcha-response"
	case KindHCaptcha:
		method, responseField = "hcaptcha", "h-captcha-response"
	default:
		return h.failure(kind, fmt.Sprintf("solver does not support %s", kind), start)
	}

	siteKey, err := h.extractSiteKey(ctx, kind)
	if err != nil {
		return h.failure(kind, "site key not found on page", start)
	}

	token, err := h.solver.Solve(ctx, method, siteKey, pageURL)
	if err != nil {
		return h.failure(kind, err.Error(), start)
	}

	if err := h.injectToken(ctx, responseField, token); err != nil {
		return h.failure(kind, "failed to inject solver token", start)
	}

	if h.detector.Detect(ctx) == KindNone {
		return h.success(kind, start)
	}
	return h.failure(kind, "challenge persisted after token injection", start)
}

func (h *Handler) hasClearanceCookie(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	found := false
	err := chromedp.Run(probeCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, c := range cookies {
			if c.Name == "cf_clearance" {
				found = true
				break
			}
		}
		return nil
	}))
	return err == nil && found
}

func (h *Handler) extractSiteKey(ctx context.Context, kind Kind) (string, error) {
	script := `(() => {
		const el = document.querySelector('.g-recaptcha[data-sitekey], .h-captcha[data-sitekey], [data-sitekey]');
		return el ? el.getAttribute('data-sitekey') : "";
	})()`

	var key string
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := chromedp.Run(probeCtx, chromedp.Evaluate(script, &key)); err != nil {
		return "", err
	}
	if key == "" {
		return "", fmt.Errorf("no data-sitekey attribute found")
	}
	return key, nil
}

// injectToken writes the token into the hidden response field and fires any
// registered completion callback the widget installed.
func (h *Handler) injectToken(ctx context.Context, field, token string) error {
	script := fmt.Sprintf(`(() => {
		const els = document.querySelectorAll('textarea[name=%q], input[name=%q]');
		els.forEach((el) => { el.value = %q; });
		if (typeof window.___grecaptcha_cfg !== 'undefined' && window.___grecaptcha_cfg.clients) {
			try {
				for (const client of Object.values(window.___grecaptcha_cfg.clients)) {
					for (const obj of Object.values(client)) {
						if (obj && typeof obj.callback === 'function') { obj.callback(%q); }
					}
				}
			} catch (e) {}
		}
		return true;
	})()`, field, field, token, token)

	var ok bool
	injectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return chromedp.Run(injectCtx, chromedp.Evaluate(script, &ok))
}

func (h *Handler) waitForDOMSettle(ctx context.Context) {
	settleCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var ready bool
	for i := 0; i < 15; i++ {
		if err := chromedp.Run(settleCtx, chromedp.Evaluate(`document.readyState === "complete"`, &ready)); err != nil {
			return
		}
		if ready {
			return
		}
		select {
		case <-settleCtx.Done():
			return
		case <-time.After(1 * time.Second):
		}
	}
}

func (h *Handler) captureScreenshot(ctx context.Context, kind Kind) string {
	if h.screenshotDir == "" {
		return ""
	}
	shotCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var buf []byte
	if err := chromedp.Run(shotCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		h.logger.Debug().Err(err).Msg("Challenge screenshot failed")
		return ""
	}

	if err := os.MkdirAll(h.screenshotDir, 0755); err != nil {
		return ""
	}
	name := "challenge_" + string(kind) + "_" + time.Now().Format("20060102_150405") + ".png"
	path := filepath.Join(h.screenshotDir, name)
	if err := os.WriteFile(path, buf, 0644); err != nil {
		h.logger.Debug().Err(err).Msg("Failed to write challenge screenshot")
		return ""
	}
	return path
}

func (h *Handler) success(kind Kind, start time.Time) Result {
	h.logger.Info().
		Str("kind", string(kind)).
		Int64("elapsed_ms", time.Since(start).Milliseconds()).
		Msg("Challenge resolved")
	return Result{Success: true, Kind: kind, ElapsedMs: time.Since(start).Milliseconds()}
}

func (h *Handler) failure(kind Kind, message string, start time.Time) Result {
	h.logger.Warn().
		Str("kind", string(kind)).
		Str("reason", message).
		Msg("Challenge resolution failed")
	return Result{Success: false, Kind: kind, Message: message, ElapsedMs: time.Since(start).Milliseconds()}
}
