package providers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/i474232898/morning-report/internal/config"
	"github.com/i474232898/morning-report/internal/market"
)

// ErrDownloadCanceled is returned when the browser aborts an export download.
var ErrDownloadCanceled = errors.New("download canceled")

// chromeSession drives a single browser tab. All steps wait on elements or CDP
// events; timing is bounded by the caller's context. The browser process lives no
// longer than the context the session was started with.
type chromeSession struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   MontelOptions
	sel    config.Selectors
	logger *zap.Logger
}

func newChromeSession(ctx context.Context, opts MontelOptions, sel config.Selectors, logger *zap.Logger) (*chromeSession, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("lang", "en-US"),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, cancel := chromedp.NewContext(allocCtx)

	s := &chromeSession{
		ctx: tabCtx,
		cancel: func() {
			cancel()
			allocCancel()
		},
		opts:   opts,
		sel:    sel,
		logger: logger,
	}

	// Starts the browser and routes downloads into the session's directory.
	if err := chromedp.Run(tabCtx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(opts.DownloadDir).
			WithEventsEnabled(true),
	); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *chromeSession) Close() { s.cancel() }

// bind derives a tab context that is cancelled together with ctx.
func (s *chromeSession) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(s.ctx)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (s *chromeSession) Login(ctx context.Context) error {
	runCtx, cancel := s.bind(ctx)
	defer cancel()

	s.logger.Info("portal login", zap.String("user", s.opts.Username))
	return chromedp.Run(runCtx,
		chromedp.Navigate(s.opts.BaseURL+s.sel.LoginPath),
		chromedp.WaitVisible(s.sel.Username, chromedp.ByQuery),
		chromedp.SendKeys(s.sel.Username, s.opts.Username, chromedp.ByQuery),
		chromedp.SendKeys(s.sel.Password, s.opts.Password, chromedp.ByQuery),
		chromedp.Click(s.sel.Submit, chromedp.ByQuery),
		chromedp.WaitVisible(s.sel.LoggedIn, chromedp.ByQuery),
	)
}

type downloadResult struct {
	guid string
	name string
	err  error
}

func (s *chromeSession) Export(ctx context.Context, inst market.Instrument, day time.Time) (string, error) {
	runCtx, cancel := s.bind(ctx)
	defer cancel()

	done := make(chan downloadResult, 1)
	var (
		mu    sync.Mutex
		names = make(map[string]string)
		once  sync.Once
	)
	finish := func(r downloadResult) {
		once.Do(func() { done <- r })
	}

	chromedp.ListenTarget(runCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *browser.EventDownloadWillBegin:
			mu.Lock()
			names[e.GUID] = e.SuggestedFilename
			mu.Unlock()
		case *browser.EventDownloadProgress:
			switch e.State {
			case browser.DownloadProgressStateCompleted:
				mu.Lock()
				name := names[e.GUID]
				mu.Unlock()
				finish(downloadResult{guid: e.GUID, name: name})
			case browser.DownloadProgressStateCanceled:
				finish(downloadResult{err: ErrDownloadCanceled})
			}
		}
	})

	actions := []chromedp.Action{
		chromedp.Navigate(s.opts.BaseURL + inst.PagePath),
		chromedp.WaitVisible(s.sel.Export, chromedp.ByQuery),
	}
	if s.sel.DateInput != "" {
		actions = append(actions,
			chromedp.Clear(s.sel.DateInput, chromedp.ByQuery),
			chromedp.SendKeys(s.sel.DateInput, day.Format(s.sel.DateLayout)+kb.Enter, chromedp.ByQuery),
			chromedp.WaitVisible(s.sel.Export, chromedp.ByQuery),
		)
	}
	actions = append(actions, chromedp.Click(s.sel.Export, chromedp.ByQuery, chromedp.NodeVisible))

	// Navigation to a file response is reported as aborted even when the download succeeds.
	if err := chromedp.Run(runCtx, actions...); err != nil && !strings.Contains(err.Error(), "net::ERR_ABORTED") {
		return "", err
	}

	var res downloadResult
	select {
	case <-runCtx.Done():
		return "", fmt.Errorf("waiting for export download: %w", runCtx.Err())
	case res = <-done:
	}
	if res.err != nil {
		return "", res.err
	}

	// Downloads are stored under their GUID; restore the extension for parsing.
	src := filepath.Join(s.opts.DownloadDir, res.guid)
	dst := filepath.Join(s.opts.DownloadDir, inst.Key+"_"+day.Format("20060102")+strings.ToLower(filepath.Ext(res.name)))
	if err := os.Rename(src, dst); err != nil {
		return "", fmt.Errorf("store export: %w", err)
	}

	s.logger.Debug("export downloaded", zap.String("instrument", inst.Key), zap.String("file", dst))
	return dst, nil
}

func (s *chromeSession) QuotePage(ctx context.Context, inst market.Instrument) (string, error) {
	runCtx, cancel := s.bind(ctx)
	defer cancel()

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(s.opts.BaseURL+inst.PagePath),
		chromedp.WaitReady("table", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}
