package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/ellavondegurechaff/retaildash/dashboard/config"
)

// ErrPageFailed is returned when the shell reports a failure instead of
// drawing its charts.
var ErrPageFailed = errors.New("page reported an error")

// The shell sets __chartsReady once every chart is drawn, or __chartsError
// when the view failed or a chart could not be plotted.
const (
	settledJS   = `window.__chartsReady === true || typeof window.__chartsError === "string"`
	pageErrorJS = `window.__chartsError || ""`
)

func pageError(msg string) error {
	if msg == "" {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrPageFailed, msg)
}

// SnapshotService renders dashboard views of a running server to PNG with a
// headless browser.
type SnapshotService struct {
	logger  *slog.Logger
	baseURL string
	width   int64
	height  int64
}

func NewSnapshotService(baseURL string) (*SnapshotService, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}
	return &SnapshotService{
		logger:  slog.With(slog.String("service", "snapshot")),
		baseURL: u.String(),
		width:   1600,
		height:  1200,
	}, nil
}

// ViewURL is the shell page for a view slug with optional query params.
func (s *SnapshotService) ViewURL(view string, query url.Values) string {
	u, _ := url.Parse(s.baseURL)
	u = u.JoinPath("views", view)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// Capture waits until every chart on the page has been drawn, then takes a
// full-page screenshot.
func (s *SnapshotService) Capture(ctx context.Context, view string, query url.Values) ([]byte, error) {
	start := time.Now()
	target := s.ViewURL(view, query)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(int(s.width), int(s.height)),
	)
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		opts = append(opts, chromedp.ExecPath(bin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, config.SnapshotTimeout)
	defer cancel()

	var (
		pageErr string
		image   []byte
	)
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Poll(settledJS, nil, chromedp.WithPollingTimeout(config.SnapshotTimeout)),
		chromedp.Evaluate(pageErrorJS, &pageErr),
	)
	if err == nil {
		err = pageError(pageErr)
	}
	if err == nil {
		err = chromedp.Run(browserCtx,
			chromedp.Sleep(300*time.Millisecond),
			chromedp.FullScreenshot(&image, 90),
		)
	}
	if err != nil {
		s.logger.Error("Snapshot failed",
			slog.String("type", "error"),
			slog.String("url", target),
			slog.Any("error", err),
			slog.Duration("elapsed", time.Since(start)))
		return nil, fmt.Errorf("failed to capture %s: %w", target, err)
	}

	s.logger.Info("Snapshot captured",
		slog.String("url", target),
		slog.Int("bytes", len(image)),
		slog.Duration("elapsed", time.Since(start)))
	return image, nil
}
