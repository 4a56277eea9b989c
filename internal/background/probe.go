package background

import (
	"context"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// HTTPProbe issues a HEAD request and wants an image content type back.
type HTTPProbe struct {
	baseURL string
	client  *http.Client
}

func NewHTTPProbe(baseURL string) *HTTPProbe {
	return &HTTPProbe{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 3 * time.Second},
	}
}

func (p *HTTPProbe) Exists(ctx context.Context, path string) bool {
	target := path
	if strings.HasPrefix(path, "/") {
		target = p.baseURL + path
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK && isImageType(resp.Header.Get("Content-Type"))
}

// DirProbe checks assets served from a local directory.
type DirProbe struct {
	root string
}

func NewDirProbe(root string) *DirProbe {
	return &DirProbe{root: root}
}

func (p *DirProbe) Exists(_ context.Context, path string) bool {
	full := filepath.Join(p.root, filepath.FromSlash(strings.TrimPrefix(path, "/")))
	info, err := os.Stat(full)
	if err != nil || info.IsDir() || info.Size() == 0 {
		return false
	}
	return isImageType(mime.TypeByExtension(filepath.Ext(full)))
}

func isImageType(ct string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(ct)), "image/")
}
