package engines

import (
	"fmt"
	"math/rand"

	"github.com/chromedp/chromedp"
)

// Curated desktop user agents. One is picked per browser context so that
// successive contexts do not share an identical fingerprint.
var userAgentPool = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
}

var viewportPool = [][2]int{
	{1920, 1080},
	{1728, 1117},
	{1680, 1050},
	{1536, 864},
	{1440, 900},
}

// Fingerprint is the per-context identity rolled at browser creation
type Fingerprint struct {
	UserAgent string
	Width     int
	Height    int
	Timezone  string
	Locale    string
}

// RollFingerprint samples a fingerprint from the curated pools
func RollFingerprint(locale, timezone string) Fingerprint {
	if locale == "" {
		locale = "en-US"
	}
	if timezone == "" {
		timezone = "America/New_York"
	}
	vp := viewportPool[rand.Intn(len(viewportPool))]
	return Fingerprint{
		UserAgent: userAgentPool[rand.Intn(len(userAgentPool))],
		Width:     vp[0],
		Height:    vp[1],
		Timezone:  timezone,
		Locale:    locale,
	}
}

// allocatorOptions builds the Chrome flags for a stealth context
func allocatorOptions(fp Fingerprint, headless, noSandbox, disableGPU bool) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,

		chromedp.UserAgent(fp.UserAgent),

		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-popup-blocking", true),

		chromedp.Flag("excludeSwitches", "enable-automation"),
		chromedp.Flag("useAutomationExtension", false),

		chromedp.Flag("enable-webgl", true),
		chromedp.Flag("enable-features", "NetworkService,NetworkServiceInProcess"),

		// WebRTC would leak the real address through ICE candidates
		chromedp.Flag("force-webrtc-ip-handling-policy", "disable_non_proxied_udp"),
		chromedp.Flag("webrtc-ip-handling-policy", "disable_non_proxied_udp"),

		chromedp.Flag("lang", fp.Locale),
		chromedp.WindowSize(fp.Width, fp.Height),
	}

	if headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	}
	if noSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if disableGPU {
		opts = append(opts, chromedp.DisableGPU)
	}
	return opts
}

// stealthScript runs on every new document before page scripts. It hides the
// automation flag, installs a plausible chrome object, overrides permission
// and WebGL readouts, and adds faint canvas noise.
func stealthScript(fp Fingerprint) string {
	return fmt.Sprintf(`(() => {
	Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
	delete window.cdc_adoQpoasnfa76pfcZLmcfl_Array;
	delete window.cdc_adoQpoasnfa76pfcZLmcfl_Promise;
	delete window.cdc_adoQpoasnfa76pfcZLmcfl_Symbol;
	delete window.__nightmare;
	delete window._phantom;
	delete window.callPhantom;

	if (!window.chrome) {
		window.chrome = {};
	}
	if (!window.chrome.runtime) {
		window.chrome.runtime = { connect: () => {}, sendMessage: () => {} };
	}
	window.chrome.app = window.chrome.app || { isInstalled: false };

	Object.defineProperty(navigator, 'languages', { get: () => [%q, 'en'] });
	Object.defineProperty(navigator, 'plugins', {
		get: () => [1, 2, 3, 4, 5],
	});

	const origQuery = window.navigator.permissions.query.bind(window.navigator.permissions);
	window.navigator.permissions.query = (parameters) =>
		parameters.name === 'notifications'
			? Promise.resolve({ state: Notification.permission })
			: origQuery(parameters);

	const getParameter = WebGLRenderingContext.prototype.getParameter;
	WebGLRenderingContext.prototype.getParameter = function (parameter) {
		if (parameter === 37445) { return 'Intel Inc.'; }
		if (parameter === 37446) { return 'Intel Iris OpenGL Engine'; }
		return getParameter.call(this, parameter);
	};

	const origToDataURL = HTMLCanvasElement.prototype.toDataURL;
	HTMLCanvasElement.prototype.toDataURL = function (...args) {
		const ctx = this.getContext('2d');
		if (ctx && this.width > 0 && this.height > 0) {
			try {
				const imageData = ctx.getImageData(0, 0, this.width, this.height);
				for (let i = 0; i < imageData.data.length; i += 997) {
					imageData.data[i] = imageData.data[i] ^ 1;
				}
				ctx.putImageData(imageData, 0, 0);
			} catch (e) {}
		}
		return origToDataURL.apply(this, args);
	};
})();`, fp.Locale)
}
