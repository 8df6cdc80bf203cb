package engines

import (
	"context"
	"math/rand"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
)

const (
	typeDelayMin = 30 * time.Millisecond
	typeDelayMax = 150 * time.Millisecond
	typoRatio    = 0.03
)

// neighborKeys supplies a plausible slip for each lowercase letter
var neighborKeys = map[rune]rune{
	'a': 's', 'b': 'v', 'c': 'x', 'd': 'f', 'e': 'r', 'f': 'g', 'g': 'h',
	'h': 'j', 'i': 'o', 'j': 'k', 'k': 'l', 'l': 'k', 'm': 'n', 'n': 'm',
	'o': 'p', 'p': 'o', 'q': 'w', 'r': 't', 's': 'd', 't': 'y', 'u': 'i',
	'v': 'b', 'w': 'e', 'x': 'c', 'y': 'u', 'z': 'x',
}

// TypeHumanized sends the text into the focused element one rune at a time
// with 30-150ms pacing and an occasional typo that gets backspaced away.
func TypeHumanized(ctx context.Context, text string) error {
	for _, r := range text {
		if wrong, ok := neighborKeys[r]; ok && rand.Float64() < typoRatio {
			if err := sendRune(ctx, wrong); err != nil {
				return err
			}
			if err := humanPause(ctx); err != nil {
				return err
			}
			if err := sendBackspace(ctx); err != nil {
				return err
			}
			if err := humanPause(ctx); err != nil {
				return err
			}
		}
		if err := sendRune(ctx, r); err != nil {
			return err
		}
		if err := humanPause(ctx); err != nil {
			return err
		}
	}
	return nil
}

func sendRune(ctx context.Context, r rune) error {
	return chromedp.Run(ctx, input.InsertText(string(r)))
}

func sendBackspace(ctx context.Context) error {
	return chromedp.Run(ctx, chromedp.KeyEvent("\b"))
}

func humanPause(ctx context.Context) error {
	delay := typeDelayMin + time.Duration(rand.Int63n(int64(typeDelayMax-typeDelayMin)))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// RandomPause sleeps between min and max, used around scrolls and submits
func RandomPause(ctx context.Context, min, max time.Duration) error {
	delay := min + time.Duration(rand.Int63n(int64(max-min)))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}
