package engines

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/brandlens/brandlens/internal/common"
)

// BrowserFactory creates stealth Chrome contexts for engine adapters. Each
// context gets its own fingerprint and lives for the duration of one task.
type BrowserFactory struct {
	config *common.BrowserConfig
	logger arbor.ILogger
}

// NewBrowserFactory creates a browser context factory
func NewBrowserFactory(config *common.BrowserConfig, logger arbor.ILogger) *BrowserFactory {
	return &BrowserFactory{config: config, logger: logger}
}

// Browser is a live stealth Chrome context. Close releases the process.
type Browser struct {
	Ctx         context.Context
	Fingerprint Fingerprint

	cancelCtx   context.CancelFunc
	cancelAlloc context.CancelFunc
	logger      arbor.ILogger
}

// NewBrowser launches Chrome with a freshly rolled fingerprint and the
// stealth script installed on every new document.
func (f *BrowserFactory) NewBrowser(ctx context.Context) (*Browser, error) {
	fp := RollFingerprint(f.config.Locale, f.config.Timezone)
	opts := allocatorOptions(fp, f.config.Headless, f.config.NoSandbox, f.config.DisableGPU)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelCtx := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(s string, i ...interface{}) {
			f.logger.Debug().Msgf("chromedp: "+s, i...)
		}),
	)

	startCtx, cancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer cancel()

	err := chromedp.Run(startCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript(fp)).Do(ctx)
			return err
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetTimezoneOverride(fp.Timezone).Do(ctx)
		}),
		chromedp.Navigate("about:blank"),
	)
	if err != nil {
		cancelCtx()
		cancelAlloc()
		return nil, fmt.Errorf("browser failed to start: %w", err)
	}

	f.logger.Debug().
		Str("user_agent", fp.UserAgent).
		Int("width", fp.Width).
		Int("height", fp.Height).
		Msg("Stealth browser context ready")

	return &Browser{
		Ctx:         browserCtx,
		Fingerprint: fp,
		cancelCtx:   cancelCtx,
		cancelAlloc: cancelAlloc,
		logger:      f.logger,
	}, nil
}

// Close shuts down the browser process
func (b *Browser) Close() {
	if b.cancelCtx != nil {
		b.cancelCtx()
	}
	if b.cancelAlloc != nil {
		b.cancelAlloc()
	}
}

func cdpTimeSinceEpoch(sec float64) cdp.TimeSinceEpoch {
	return cdp.TimeSinceEpoch(time.Unix(int64(sec), 0))
}

// sessionState is the shape of the opaque blob kept in the session store.
// Cookies cover classic session auth; the origin-keyed web storage maps carry
// the tokens engines keep in localStorage instead.
type sessionState struct {
	Cookies        []sessionCookie   `json:"cookies"`
	Origin         string            `json:"origin,omitempty"`
	LocalStorage   map[string]string `json:"local_storage,omitempty"`
	SessionStorage map[string]string `json:"session_storage,omitempty"`
}

type sessionCookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"http_only"`
	Secure   bool    `json:"secure"`
}

// RestoreSession loads cookies and web storage from a session blob into the
// browser. A nil or empty blob is a no-op. Web storage replay navigates to
// the saved origin first; setItem only works from a page on that origin.
func (b *Browser) RestoreSession(blob []byte) error {
	if len(blob) == 0 {
		return nil
	}
	var state sessionState
	if err := json.Unmarshal(blob, &state); err != nil {
		return fmt.Errorf("unreadable session blob: %w", err)
	}

	if len(state.Cookies) > 0 {
		restoreCtx, cancel := context.WithTimeout(b.Ctx, 15*time.Second)
		defer cancel()

		err := chromedp.Run(restoreCtx, chromedp.ActionFunc(func(ctx context.Context) error {
			for _, c := range state.Cookies {
				param := network.SetCookie(c.Name, c.Value).
					WithDomain(c.Domain).
					WithPath(c.Path).
					WithHTTPOnly(c.HTTPOnly).
					WithSecure(c.Secure)
				if c.Expires > 0 {
					expires := cdpTimeSinceEpoch(c.Expires)
					param = param.WithExpires(&expires)
				}
				if err := param.Do(ctx); err != nil {
					return err
				}
			}
			return nil
		}))
		if err != nil {
			return fmt.Errorf("failed to restore session cookies: %w", err)
		}
	}

	if state.Origin != "" && (len(state.LocalStorage) > 0 || len(state.SessionStorage) > 0) {
		storageCtx, cancel := context.WithTimeout(b.Ctx, 30*time.Second)
		defer cancel()

		var replayed bool
		err := chromedp.Run(storageCtx,
			chromedp.Navigate(state.Origin),
			chromedp.WaitReady("body"),
			chromedp.Evaluate(storageRestoreScript(state.LocalStorage, state.SessionStorage), &replayed),
		)
		if err != nil {
			return fmt.Errorf("failed to restore web storage: %w", err)
		}
	}

	b.logger.Debug().
		Int("cookies", len(state.Cookies)).
		Int("local_storage", len(state.LocalStorage)).
		Msg("Session restored into browser")
	return nil
}

// storageSnapshotScript dumps the current page's web storage with its origin
const storageSnapshotScript = `(() => {
	const dump = (store) => {
		const out = {};
		try {
			for (let i = 0; i < store.length; i++) {
				const k = store.key(i);
				out[k] = store.getItem(k);
			}
		} catch (e) {}
		return out;
	};
	try {
		return { origin: location.origin, local: dump(localStorage), session: dump(sessionStorage) };
	} catch (e) {
		return { origin: '', local: {}, session: {} };
	}
})()`

// storageRestoreScript replays web storage entries on the current page
func storageRestoreScript(local, session map[string]string) string {
	localJSON, _ := json.Marshal(local)
	sessionJSON, _ := json.Marshal(session)
	return fmt.Sprintf(`(() => {
		const put = (store, entries) => {
			for (const [k, v] of Object.entries(entries)) {
				try { store.setItem(k, v); } catch (e) {}
			}
		};
		put(localStorage, %s);
		put(sessionStorage, %s);
		return true;
	})()`, localJSON, sessionJSON)
}

// ExportSession captures the cookie jar plus the current origin's web storage
// as an opaque blob. Called while still on the engine page, so the storage
// snapshot lands on the right origin.
func (b *Browser) ExportSession() ([]byte, error) {
	exportCtx, cancel := context.WithTimeout(b.Ctx, 15*time.Second)
	defer cancel()

	var state sessionState
	var snap struct {
		Origin  string            `json:"origin"`
		Local   map[string]string `json:"local"`
		Session map[string]string `json:"session"`
	}
	err := chromedp.Run(exportCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			cookies, err := network.GetCookies().Do(ctx)
			if err != nil {
				return err
			}
			for _, c := range cookies {
				state.Cookies = append(state.Cookies, sessionCookie{
					Name:     c.Name,
					Value:    c.Value,
					Domain:   c.Domain,
					Path:     c.Path,
					Expires:  c.Expires,
					HTTPOnly: c.HTTPOnly,
					Secure:   c.Secure,
				})
			}
			return nil
		}),
		chromedp.Evaluate(storageSnapshotScript, &snap),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to export session state: %w", err)
	}

	// about:blank and sandboxed frames report an opaque origin
	if strings.HasPrefix(snap.Origin, "http") {
		state.Origin = snap.Origin
		if len(snap.Local) > 0 {
			state.LocalStorage = snap.Local
		}
		if len(snap.Session) > 0 {
			state.SessionStorage = snap.Session
		}
	}
	return json.Marshal(state)
}
