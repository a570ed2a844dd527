package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/chromedp"

	appLog "shulscreen/internal/log"
	"shulscreen/internal/model"
)

// Default capture parameters: a 1080p screen in a shul lobby.
const (
	DefaultWidth      = 1920
	DefaultHeight     = 1080
	DefaultTimeoutSec = 30
)

// Options defines parameters for a Chromium-based screenshot of the board.
type Options struct {
	// URL of the board page, e.g. "http://127.0.0.1:8080/".
	URL string

	// OutputPath is where the PNG is written, e.g. "cache/preview.png".
	OutputPath string

	Width  int
	Height int

	Timeout time.Duration
}

func (o Options) withDefaults() (Options, error) {
	if o.URL == "" {
		return o, fmt.Errorf("capture: URL is required")
	}
	if o.OutputPath == "" {
		return o, fmt.Errorf("capture: OutputPath is required")
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}
	return o, nil
}

// BoardPNG launches a headless Chromium via chromedp, opens the board page,
// waits until it reports data-ready="true" and writes a screenshot.
//
// The file is replaced atomically so /preview.png never serves a partial
// image.
func BoardPNG(parentCtx context.Context, opts Options) error {
	opts, err := opts.withDefaults()
	if err != nil {
		return err
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(`[data-ready="true"]`, chromedp.ByQuery),
		// Small extra delay to allow final paints.
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.FullScreenshot(&png, 100),
	}
	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	return writeAtomic(opts.OutputPath, png)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".preview-*.png")
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	return os.Rename(tmpName, path)
}

// Capturer refreshes the preview after each applied board. Only one capture
// runs at a time; boards applied meanwhile are skipped.
type Capturer struct {
	// base outlives any single refresh; captures stop when it is canceled.
	base context.Context
	opts Options
	run  func(context.Context, Options) error
	busy atomic.Bool
	wg   sync.WaitGroup
}

// NewCapturer returns a Capturer whose background captures run under base,
// normally the process root context.
func NewCapturer(base context.Context, opts Options) *Capturer {
	return &Capturer{base: base, opts: opts, run: BoardPNG}
}

// OnApplied matches the refresh hook signature. The capture runs in the
// background under the capturer's base context, so a cycle started by a
// request that has already returned still gets its preview.
func (c *Capturer) OnApplied(_ context.Context, b *model.Board) {
	if !c.busy.CompareAndSwap(false, true) {
		appLog.Debug("capture: previous capture still running; skipping", "cycle", b.CycleID)
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.busy.Store(false)
		start := time.Now()
		if err := c.run(c.base, c.opts); err != nil {
			appLog.Error("capture: preview failed", err, "cycle", b.CycleID)
			return
		}
		appLog.Info("capture: preview updated", "cycle", b.CycleID, "path", c.opts.OutputPath, "duration", time.Since(start))
	}()
}

// Wait blocks until a running capture has finished.
func (c *Capturer) Wait() {
	c.wg.Wait()
}
