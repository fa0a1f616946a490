package webclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

// installTranscripts adds a hook that writes each exchange to its own file
// under dir, numbered in request order. Nothing is written unless debug
// logging is enabled: transcripts exist to diagnose parser breakage against
// whatever the site actually sent.
func installTranscripts(client *resty.Client, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	w := &transcriptWriter{dir: dir}
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		w.dump(res.Request.Context(), formatExchange(res))
		return nil
	})
	return nil
}

type transcriptWriter struct {
	dir     string
	counter atomic.Uint64
}

func (w *transcriptWriter) dump(ctx context.Context, contents string) {
	if !slog.Default().Enabled(ctx, slog.LevelDebug) {
		return
	}
	path := filepath.Join(w.dir, fmt.Sprintf("%04d.txt", w.counter.Add(1)))
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		slog.WarnContext(ctx, "failed to write exchange transcript", "path", path, "err", err)
	}
}

func writeHeaders(out *strings.Builder, headers http.Header) {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range headers[k] {
			fmt.Fprintf(out, "%s: %s\n", k, v)
		}
	}
}

func requestBody(req *http.Request) string {
	if req == nil || req.GetBody == nil {
		return ""
	}
	reader, err := req.GetBody()
	if err != nil {
		return fmt.Sprintf("<failed to get request body: %s>", err)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Sprintf("<failed to read request body: %s>", err)
	}
	return string(body)
}

func formatExchange(res *resty.Response) string {
	out := &strings.Builder{}

	fmt.Fprintf(out, "---- request ----\n\n%s %s\n\n", res.Request.Method, res.Request.URL)
	if res.Request.RawRequest != nil {
		writeHeaders(out, res.Request.RawRequest.Header)
		fmt.Fprintf(out, "\n%s\n", requestBody(res.Request.RawRequest))
	}

	finalURL := res.Request.URL
	if loc, err := res.RawResponse.Location(); err == nil {
		finalURL = loc.String()
	}
	fmt.Fprintf(out, "\n---- response ----\n\n%d %s\n\n", res.StatusCode(), finalURL)
	writeHeaders(out, res.Header())
	fmt.Fprintf(out, "\n%s\n", res.String())

	return out.String()
}
