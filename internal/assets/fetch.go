package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ProgressFunc receives bytes read so far and the expected total (0 if unknown).
type ProgressFunc func(loaded, total int64)

// Fetcher retrieves raw asset bytes.
type Fetcher interface {
	Fetch(ctx context.Context, ref string, progress ProgressFunc) ([]byte, error)
}

// ErrNotFound is returned when an asset does not exist at its location.
var ErrNotFound = errors.New("asset not found")

const chunkSize = 32 * 1024

// readAll reads r in chunks, reporting progress and honoring ctx between chunks.
func readAll(ctx context.Context, r io.Reader, total int64, progress ProgressFunc) ([]byte, error) {
	var buf bytes.Buffer
	if total > 0 {
		buf.Grow(int(total))
	}
	chunk := make([]byte, chunkSize)
	var loaded int64
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := r.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			loaded += int64(n)
			if progress != nil {
				progress(loaded, total)
			}
		}
		if err == io.EOF {
			return buf.Bytes(), nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// FileFetcher reads assets from the local filesystem.
type FileFetcher struct {
	Root string
}

// Fetch implements Fetcher.
func (f FileFetcher) Fetch(ctx context.Context, ref string, progress ProgressFunc) ([]byte, error) {
	p := ref
	if f.Root != "" && !filepath.IsAbs(ref) {
		p = filepath.Join(f.Root, ref)
	}
	file, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return nil, err
	}
	defer file.Close()

	var total int64
	if st, err := file.Stat(); err == nil {
		total = st.Size()
	}
	return readAll(ctx, file, total, progress)
}

// HTTPFetcher performs GET requests for http(s) URLs.
type HTTPFetcher struct {
	Client *http.Client
}

// Fetch implements Fetcher.
func (f HTTPFetcher) Fetch(ctx context.Context, ref string, progress ProgressFunc) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("GET %s: %s", ref, resp.Status)
	}

	total := resp.ContentLength
	if total < 0 {
		total = 0
	}
	return readAll(ctx, resp.Body, total, progress)
}

// S3Config holds S3-compatible endpoint credentials.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// S3Fetcher reads s3://bucket/key URLs from an S3-compatible store such as MinIO.
type S3Fetcher struct {
	client *minio.Client
}

// NewS3Fetcher creates a fetcher for the given endpoint.
func NewS3Fetcher(cfg S3Config) (*S3Fetcher, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating s3 client for %s: %w", cfg.Endpoint, err)
	}
	return &S3Fetcher{client: client}, nil
}

// Fetch implements Fetcher.
func (f *S3Fetcher) Fetch(ctx context.Context, ref string, progress ProgressFunc) ([]byte, error) {
	bucket, key, err := splitS3(ref)
	if err != nil {
		return nil, err
	}
	obj, err := f.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, err
	}
	return readAll(ctx, obj, info.Size, progress)
}

func splitS3(ref string) (bucket, key string, err error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("not an s3 url: %s", ref)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("s3 url has no key: %s", ref)
	}
	return u.Host, key, nil
}

// Router resolves references against a base location and dispatches to the
// fetcher for the resulting scheme.
type Router struct {
	Base string
	File Fetcher
	HTTP Fetcher
	S3   Fetcher
}

// Fetch implements Fetcher.
func (r Router) Fetch(ctx context.Context, ref string, progress ProgressFunc) ([]byte, error) {
	target := Resolve(r.Base, ref)

	var f Fetcher
	switch scheme(target) {
	case "http", "https":
		f = r.HTTP
	case "s3":
		f = r.S3
	case "":
		f = r.File
	}
	if f == nil {
		return nil, fmt.Errorf("no fetcher for %s", target)
	}
	return f.Fetch(ctx, target, progress)
}

// Resolve joins ref onto base unless ref is already absolute.
func Resolve(base, ref string) string {
	if scheme(ref) != "" || base == "" || filepath.IsAbs(ref) {
		return ref
	}
	if scheme(base) != "" {
		return strings.TrimSuffix(base, "/") + "/" + path.Clean(strings.TrimPrefix(ref, "./"))
	}
	return filepath.Join(base, ref)
}

func scheme(ref string) string {
	i := strings.Index(ref, "://")
	if i <= 0 {
		return ""
	}
	return strings.ToLower(ref[:i])
}
