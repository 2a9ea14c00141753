package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// ObjectReader is the part of MinioClient the resolver needs.
type ObjectReader interface {
	GetFileReader(ctx context.Context, bucket, objectName string) (io.ReadCloser, int64, error)
}

// AudioResolver turns a task's audio reference into a readable stream.
// Supported forms: a bare local path or file:// URL, http(s):// URLs, and
// s3://bucket/key or minio://bucket/key when an object store is configured.
type AudioResolver struct {
	Objects    ObjectReader
	HTTPClient *http.Client
}

// NewAudioResolver returns a resolver. objects may be nil when no object
// store is configured.
func NewAudioResolver(objects ObjectReader) *AudioResolver {
	return &AudioResolver{
		Objects:    objects,
		HTTPClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

// Open resolves ref. The caller must close the returned reader.
func (r *AudioResolver) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, errors.New("empty audio reference")
	}

	u, err := url.Parse(ref)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// A bare path, including Windows drive letters such as C:\audio.wav.
		return openLocal(ref)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		return openLocal(u.Path)
	case "http", "https":
		return r.openHTTP(ctx, ref)
	case "s3", "minio":
		if r.Objects == nil {
			return nil, fmt.Errorf("audio reference %q needs an object store, none configured", ref)
		}
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return nil, fmt.Errorf("audio reference %q must look like %s://bucket/key", ref, u.Scheme)
		}
		rc, _, err := r.Objects.GetFileReader(ctx, u.Host, key)
		return rc, err
	default:
		return nil, fmt.Errorf("unsupported audio reference scheme %q", u.Scheme)
	}
}

// ReadAll resolves ref and reads it fully, up to limit bytes.
func (r *AudioResolver) ReadAll(ctx context.Context, ref string, limit int64) ([]byte, error) {
	rc, err := r.Open(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	b, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read audio %q: %w", ref, err)
	}
	if int64(len(b)) > limit {
		return nil, fmt.Errorf("audio %q exceeds %d bytes", ref, limit)
	}
	return b, nil
}

func openLocal(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	return f, nil
}

func (r *AudioResolver) openHTTP(ctx context.Context, ref string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("build audio request: %w", err)
	}
	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch audio %q: %w", ref, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch audio %q: unexpected status %s", ref, resp.Status)
	}
	return resp.Body, nil
}
