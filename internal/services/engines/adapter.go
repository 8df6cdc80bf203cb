package engines

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/brandlens/brandlens/internal/common"
	"github.com/brandlens/brandlens/internal/interfaces"
	"github.com/brandlens/brandlens/internal/models"
	"github.com/brandlens/brandlens/internal/services/challenge"
)

const (
	completionPoll   = 2 * time.Second
	stopQuietWindow  = 6 * time.Second
	minAnswerChars   = 30
	successTextChars = 50
)

// BrowserAdapter drives one engine's web UI through a stealth Chrome context
type BrowserAdapter struct {
	profile       *Profile
	factory       *BrowserFactory
	sessions      interfaces.SessionStore
	challenges    *challenge.Handler
	config        *common.CrawlerConfig
	screenshotDir string
	targetDomains []string
	logger        arbor.ILogger
}

// NewBrowserAdapter builds an adapter for the given engine. Returns an error
// for engines without a UI profile.
func NewBrowserAdapter(
	engine models.Engine,
	factory *BrowserFactory,
	sessions interfaces.SessionStore,
	challenges *challenge.Handler,
	config *common.CrawlerConfig,
	screenshotDir string,
	targetDomains []string,
	logger arbor.ILogger,
) (*BrowserAdapter, error) {
	profile := ProfileFor(engine)
	if profile == nil {
		return nil, fmt.Errorf("no browser profile for engine %q", engine)
	}
	return &BrowserAdapter{
		profile:       profile,
		factory:       factory,
		sessions:      sessions,
		challenges:    challenges,
		config:        config,
		screenshotDir: screenshotDir,
		targetDomains: targetDomains,
		logger:        logger,
	}, nil
}

// Engine returns the engine this adapter speaks to
func (a *BrowserAdapter) Engine() models.Engine {
	return a.profile.Engine
}

// Crawl runs the full pipeline: navigate, clear challenges, check login,
// toggle search, type, submit, wait, clarify, extract.
func (a *BrowserAdapter) Crawl(ctx context.Context, queryText string, opts interfaces.CrawlOptions) *interfaces.AdapterResult {
	start := time.Now()
	result := &interfaces.AdapterResult{QueryText: queryText}

	browser, err := a.factory.NewBrowser(ctx)
	if err != nil {
		result.Error = "browser launch failed: " + err.Error()
		return a.finish(result, start)
	}
	defer browser.Close()

	if blob, err := a.sessions.Load(a.profile.Engine, opts.Account); err == nil && blob != nil {
		if err := browser.RestoreSession(blob); err != nil {
			a.logger.Debug().Err(err).Msg("Session restore failed, continuing cold")
		}
	}

	pageCtx := browser.Ctx

	if err := a.navigate(pageCtx); err != nil {
		result.Error = "navigation failed: " + err.Error()
		return a.finish(result, start)
	}

	if res := a.challenges.Resolve(pageCtx, a.profile.ChatURL); !res.Success {
		if res.Kind == challenge.KindLoginRequired {
			result.RequiresLogin = true
			result.Error = "login required"
		} else {
			result.Error = "challenge failed: " + res.Message
		}
		result.ScreenshotPath = res.ScreenshotPath
		return a.finish(result, start)
	}

	if a.loginRequired(pageCtx) {
		result.RequiresLogin = true
		result.Error = "login required"
		result.ScreenshotPath = a.screenshot(pageCtx, queryText)
		return a.finish(result, start)
	}

	if opts.EnableWebSearch && a.profile.HasWebSearchToggle() {
		result.WebSearchEnabled = a.enableWebSearch(pageCtx)
	}

	prompt := queryText
	if a.profile.PrependInstruction != "" {
		prompt = a.profile.PrependInstruction + "\n" + queryText
	}

	if err := a.submitQuery(pageCtx, prompt); err != nil {
		result.Error = "query submission failed: " + err.Error()
		result.ScreenshotPath = a.screenshot(pageCtx, queryText)
		return a.finish(result, start)
	}

	deadline := a.config.CompletionTimeout
	if result.WebSearchEnabled {
		deadline = a.config.CompletionTimeoutWebSearch
	}

	text := a.waitForCompletion(pageCtx, deadline)

	// Clarification loop: a short counter-question gets one canned nudge per
	// remaining turn, then we keep whatever text exists.
	maxTurns := opts.MaxTurns
	if maxTurns <= 0 {
		maxTurns = a.config.MaxTurns
	}
	turns := 1
	for turns < maxTurns && IsClarificationRequest(text) {
		a.logger.Debug().
			Str("engine", string(a.profile.Engine)).
			Int("turn", turns).
			Msg("Engine asked for clarification, sending follow-up")
		if err := a.submitQuery(pageCtx, clarificationFollowUp); err != nil {
			break
		}
		turns++
		text = a.waitForCompletion(pageCtx, deadline)
	}
	result.Turns = turns

	result.ResponseText = CleanResponseText(text)
	result.RawHTML = a.captureAnswerHTML(pageCtx)
	result.Citations = a.extractCitations(pageCtx, result.RawHTML)

	if opts.Screenshot {
		result.ScreenshotPath = a.screenshot(pageCtx, queryText)
	}

	// Citations alone count as success; they are the scoring signal
	result.Success = len(result.ResponseText) > successTextChars || len(result.Citations) > 0

	if result.Success {
		if blob, err := browser.ExportSession(); err == nil {
			if err := a.sessions.Save(a.profile.Engine, opts.Account, blob); err != nil {
				a.logger.Debug().Err(err).Msg("Session save failed")
			}
		}
	}

	return a.finish(result, start)
}

func (a *BrowserAdapter) finish(result *interfaces.AdapterResult, start time.Time) *interfaces.AdapterResult {
	result.ResponseTimeMs = time.Since(start).Milliseconds()
	a.logger.Info().
		Str("engine", string(a.profile.Engine)).
		Bool("success", result.Success).
		Int("citations", len(result.Citations)).
		Int64("elapsed_ms", result.ResponseTimeMs).
		Msg("Crawl finished")
	return result
}

// navigate waits for DOM-ready only. Anti-bot pages hold network connections
// open, so waiting for network idle never returns.
func (a *BrowserAdapter) navigate(ctx context.Context) error {
	navCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	return chromedp.Run(navCtx,
		chromedp.Navigate(a.profile.ChatURL),
		chromedp.WaitReady("body"),
	)
}

func (a *BrowserAdapter) loginRequired(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	script := fmt.Sprintf(`(() => {
		const has = (sel) => { try { return document.querySelector(sel) !== null; } catch (e) { return false; } };
		if (%s.some(has)) { return true; }
		// A usable chat input means we are past any login wall
		if (%s.some(has)) { return false; }
		const text = (document.body ? document.body.innerText : '').toLowerCase().slice(0, 5000);
		return %s.some((k) => text.includes(k.toLowerCase()));
	})()`, jsStringArray(a.profile.LoginSelectors), jsStringArray(a.profile.InputSelectors), jsStringArray(a.profile.LoginKeywords))

	var required bool
	if err := chromedp.Run(probeCtx, chromedp.Evaluate(script, &required)); err != nil {
		return false
	}
	return required
}

// enableWebSearch clicks the first present toggle that is not already on.
// Missing toggles are non-fatal; the return value records the end state.
func (a *BrowserAdapter) enableWebSearch(ctx context.Context) bool {
	toggleCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	script := fmt.Sprintf(`(() => {
		const selectors = %s;
		for (const sel of selectors) {
			let el;
			try { el = document.querySelector(sel); } catch (e) { continue; }
			if (!el) { continue; }
			const on = el.getAttribute('aria-pressed') === 'true' ||
				el.getAttribute('aria-checked') === 'true' ||
				el.className.includes('active') ||
				el.className.includes('selected');
			if (!on) { el.click(); }
			return true;
		}
		return false;
	})()`, jsStringArray(a.profile.WebSearchToggleSelectors))

	var enabled bool
	if err := chromedp.Run(toggleCtx, chromedp.Evaluate(script, &enabled)); err != nil {
		return false
	}
	if enabled {
		_ = RandomPause(toggleCtx, 100*time.Millisecond, 2*time.Second)
	}
	return enabled
}

// submitQuery focuses the first matching input, types like a human, and
// submits via the send button or the Enter key.
func (a *BrowserAdapter) submitQuery(ctx context.Context, prompt string) error {
	inputSel, err := a.firstPresent(ctx, a.profile.InputSelectors)
	if err != nil {
		return fmt.Errorf("no query input found")
	}

	typeCtx, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	if err := chromedp.Run(typeCtx, chromedp.Click(inputSel, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("failed to focus input: %w", err)
	}
	if err := RandomPause(typeCtx, 100*time.Millisecond, 2*time.Second); err != nil {
		return err
	}
	if err := TypeHumanized(typeCtx, prompt); err != nil {
		return fmt.Errorf("typing failed: %w", err)
	}
	if err := RandomPause(typeCtx, 100*time.Millisecond, 2*time.Second); err != nil {
		return err
	}

	if sendSel, err := a.firstPresent(typeCtx, a.profile.SendButtonSelectors); err == nil {
		if err := chromedp.Run(typeCtx, chromedp.Click(sendSel, chromedp.ByQuery)); err == nil {
			return nil
		}
	}
	return chromedp.Run(typeCtx, chromedp.KeyEvent("\r"))
}

// waitForCompletion polls for the two completion signals: a stop button that
// stays absent while the answer text is stable, or a stabilized citation
// list. Partial text is returned on deadline.
func (a *BrowserAdapter) waitForCompletion(ctx context.Context, deadline time.Duration) string {
	waitCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	var lastText string
	var lastTextLen, lastCitations int
	stopAbsentSince := time.Time{}

	for {
		select {
		case <-waitCtx.Done():
			return lastText
		case <-time.After(completionPoll):
		}

		text := a.extractAnswerText(waitCtx)
		citations := a.countCitationAnchors(waitCtx)
		stopPresent := a.stopButtonPresent(waitCtx)

		if stopPresent {
			stopAbsentSince = time.Time{}
		} else if stopAbsentSince.IsZero() {
			stopAbsentSince = time.Now()
		}

		quiet := !stopAbsentSince.IsZero() && time.Since(stopAbsentSince) >= stopQuietWindow
		textStable := countNonWhitespace(text) >= minAnswerChars && len(text) == lastTextLen
		citationsStable := citations >= 1 && citations == lastCitations

		if quiet && (textStable || citationsStable) {
			return text
		}

		lastText = text
		lastTextLen = len(text)
		lastCitations = citations
	}
}

func countNonWhitespace(s string) int {
	n := 0
	for _, r := range s {
		if !strings.ContainsRune(" \t\n\r", r) {
			n++
		}
	}
	return n
}

// extractAnswerText tries the profile's answer selectors, then falls back to
// a page-side scan for the longest substantial text block.
func (a *BrowserAdapter) extractAnswerText(ctx context.Context) string {
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	script := fmt.Sprintf(`(() => {
		const selectors = %s;
		for (const sel of selectors) {
			let els;
			try { els = document.querySelectorAll(sel); } catch (e) { continue; }
			if (els.length > 0) {
				return els[els.length - 1].innerText || '';
			}
		}
		// Hashed class names defeated the selectors; take the longest visible
		// block with substantial ASCII or CJK content.
		let best = '';
		const blocks = document.querySelectorAll('main div, main section, main article, body div');
		for (const el of blocks) {
			if (el.children.length > 8) { continue; }
			const text = el.innerText || '';
			if (text.length > best.length && /[一-鿿]|[a-zA-Z]{3,}/.test(text)) {
				best = text;
			}
		}
		return best;
	})()`, jsStringArray(a.profile.AnswerSelectors))

	var text string
	if err := chromedp.Run(probeCtx, chromedp.Evaluate(script, &text)); err != nil {
		return ""
	}
	return text
}

func (a *BrowserAdapter) stopButtonPresent(ctx context.Context) bool {
	if len(a.profile.StopButtonSelectors) == 0 {
		return false
	}
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	script := fmt.Sprintf(`(() => {
		const selectors = %s;
		for (const sel of selectors) {
			try { if (document.querySelector(sel)) { return true; } } catch (e) {}
		}
		return false;
	})()`, jsStringArray(a.profile.StopButtonSelectors))

	var present bool
	if err := chromedp.Run(probeCtx, chromedp.Evaluate(script, &present)); err != nil {
		return false
	}
	return present
}

func (a *BrowserAdapter) countCitationAnchors(ctx context.Context) int {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	script := fmt.Sprintf(`(() => {
		const selectors = %s;
		const seen = new Set();
		for (const sel of selectors) {
			let els;
			try { els = document.querySelectorAll(sel); } catch (e) { continue; }
			for (const el of els) {
				if (el.href) { seen.add(el.href); }
			}
		}
		return seen.size;
	})()`, jsStringArray(a.profile.CitationSelectors))

	var count int
	if err := chromedp.Run(probeCtx, chromedp.Evaluate(script, &count)); err != nil {
		return 0
	}
	return count
}

// extractCitations scrapes anchors from the live page, falling back to the
// captured answer HTML when the live selectors miss.
func (a *BrowserAdapter) extractCitations(ctx context.Context, rawHTML string) []models.Citation {
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	script := fmt.Sprintf(`(() => {
		const selectors = %s;
		const out = [];
		for (const sel of selectors) {
			let els;
			try { els = document.querySelectorAll(sel); } catch (e) { continue; }
			for (const el of els) {
				if (!el.href || !el.href.startsWith('http')) { continue; }
				out.push({
					url: el.href,
					text: (el.innerText || '').trim(),
					titleAttr: el.getAttribute('title') || '',
					ariaLabel: el.getAttribute('aria-label') || '',
					parentText: el.parentElement ? (el.parentElement.innerText || '').trim().slice(0, 200) : '',
				});
			}
		}
		return out;
	})()`, jsStringArray(a.profile.CitationSelectors))

	var scraped []struct {
		URL        string `json:"url"`
		Text       string `json:"text"`
		TitleAttr  string `json:"titleAttr"`
		AriaLabel  string `json:"ariaLabel"`
		ParentText string `json:"parentText"`
	}
	if err := chromedp.Run(probeCtx, chromedp.Evaluate(script, &scraped)); err == nil && len(scraped) > 0 {
		links := make([]RawLink, len(scraped))
		for i, s := range scraped {
			links[i] = RawLink{URL: s.URL, Text: s.Text, TitleAttr: s.TitleAttr, AriaLabel: s.AriaLabel, ParentText: s.ParentText}
		}
		return BuildCitations(links, a.profile.OwnHosts, a.targetDomains)
	}

	if rawHTML != "" {
		return BuildCitations(ExtractLinksFromHTML(rawHTML), a.profile.OwnHosts, a.targetDomains)
	}
	return nil
}

func (a *BrowserAdapter) captureAnswerHTML(ctx context.Context) string {
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	script := fmt.Sprintf(`(() => {
		const selectors = %s;
		for (const sel of selectors) {
			let els;
			try { els = document.querySelectorAll(sel); } catch (e) { continue; }
			if (els.length > 0) {
				return els[els.length - 1].outerHTML || '';
			}
		}
		return '';
	})()`, jsStringArray(a.profile.AnswerSelectors))

	var html string
	if err := chromedp.Run(probeCtx, chromedp.Evaluate(script, &html)); err != nil {
		return ""
	}
	return html
}

func (a *BrowserAdapter) firstPresent(ctx context.Context, selectors []string) (string, error) {
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	script := fmt.Sprintf(`(() => {
		const selectors = %s;
		for (const sel of selectors) {
			try { if (document.querySelector(sel)) { return sel; } } catch (e) {}
		}
		return '';
	})()`, jsStringArray(selectors))

	var found string
	if err := chromedp.Run(probeCtx, chromedp.Evaluate(script, &found)); err != nil {
		return "", err
	}
	if found == "" {
		return "", fmt.Errorf("no selector matched")
	}
	return found, nil
}

func (a *BrowserAdapter) screenshot(ctx context.Context, queryText string) string {
	if a.screenshotDir == "" {
		return ""
	}
	shotCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var buf []byte
	if err := chromedp.Run(shotCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return ""
	}
	if err := os.MkdirAll(a.screenshotDir, 0755); err != nil {
		return ""
	}
	path := common.ScreenshotPath(a.screenshotDir, string(a.profile.Engine), queryText, time.Now())
	if err := os.WriteFile(path, buf, 0644); err != nil {
		return ""
	}
	return path
}

// jsStringArray serializes selectors for embedding in page scripts
func jsStringArray(items []string) string {
	encoded, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(encoded)
}
