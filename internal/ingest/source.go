package ingest

import (
	"context"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/reeldata/marquee/internal/model"
	"github.com/reeldata/marquee/internal/resilience"
)

// Load resolves the input (local path, http(s):// URL, or ftp:// URL),
// fetches it locally if remote, and parses it by extension (.xlsx or CSV).
func Load(ctx context.Context, input string) ([]model.RevenueRecord, *model.QualitySummary, error) {
	local, cleanup, err := Fetch(ctx, input)
	if err != nil {
		return nil, nil, err
	}
	defer cleanup()

	if strings.EqualFold(filepath.Ext(local), ".xlsx") {
		return ParseXLSX(ctx, local)
	}

	f, err := os.Open(local)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "ingest: open %s", local)
	}
	defer f.Close()

	return ParseCSV(ctx, f)
}

// Fetch returns a local path for the input, downloading it first when the
// input is a remote URL. The returned cleanup removes any temporary file.
func Fetch(ctx context.Context, input string) (string, func(), error) {
	noop := func() {}

	switch {
	case strings.HasPrefix(input, "http://"), strings.HasPrefix(input, "https://"):
		return download(ctx, input, fetchHTTP)
	case strings.HasPrefix(input, "ftp://"):
		return download(ctx, input, fetchFTP)
	default:
		if _, err := os.Stat(input); err != nil {
			return "", noop, eris.Wrapf(err, "ingest: input file %s", input)
		}
		return input, noop, nil
	}
}

type fetchFunc func(ctx context.Context, rawURL string) (io.ReadCloser, error)

func download(ctx context.Context, rawURL string, fetch fetchFunc) (string, func(), error) {
	noop := func() {}

	rc, err := fetch(ctx, rawURL)
	if err != nil {
		return "", noop, err
	}
	defer rc.Close()

	tmp, err := os.CreateTemp("", "marquee-input-*"+remoteExt(rawURL))
	if err != nil {
		return "", noop, eris.Wrap(err, "ingest: create temp file")
	}
	cleanup := func() { os.Remove(tmp.Name()) } //nolint:errcheck

	n, err := io.Copy(tmp, rc)
	closeErr := tmp.Close()
	if err != nil {
		cleanup()
		return "", noop, eris.Wrapf(err, "ingest: download %s", rawURL)
	}
	if closeErr != nil {
		cleanup()
		return "", noop, eris.Wrap(closeErr, "ingest: close temp file")
	}

	zap.L().Info("ingest: downloaded input",
		zap.String("url", rawURL),
		zap.Int64("bytes", n),
	)

	return tmp.Name(), cleanup, nil
}

func remoteExt(rawURL string) string {
	ext := path.Ext(strings.SplitN(rawURL, "?", 2)[0])
	if ext == "" {
		return ".csv"
	}
	return ext
}

// httpLimiter throttles input downloads so repeated runs stay polite to the
// hosting server.
var httpLimiter = rate.NewLimiter(2, 2)

func fetchHTTP(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	client := &http.Client{Timeout: 5 * time.Minute}

	cfg := resilience.DefaultRetryConfig()
	cfg.OnRetry = resilience.RetryLogger("input", "download")

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (io.ReadCloser, error) {
		if err := httpLimiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "ingest: rate limit wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "ingest: create request")
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: fetch %s", rawURL)
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			err := eris.Errorf("ingest: unexpected status %d for %s", resp.StatusCode, rawURL)
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(err, resp.StatusCode)
			}
			return nil, err
		}

		return resp.Body, nil
	})
}
