package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Fetcher downloads artifacts such as installer scripts and ISO images into a
// local directory, reusing a previous download when its checksum matches.
type Fetcher struct {
	Dir       string
	Client    *http.Client
	UserAgent string
	// Force re-downloads even when a cached copy exists.
	Force bool
}

// Fetch downloads rawURL and returns the local path. When checksum is set the
// file's SHA-256 must match it.
func (f Fetcher) Fetch(ctx context.Context, rawURL, checksum string) (string, error) {
	if f.Dir == "" {
		return "", fmt.Errorf("download directory not configured")
	}
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return "", fmt.Errorf("prepare downloads dir: %w", err)
	}
	dest, err := downloadPath(f.Dir, rawURL)
	if err != nil {
		return "", err
	}
	if err := f.ensureDownload(ctx, dest, rawURL, checksum); err != nil {
		return "", err
	}
	return dest, nil
}

func (f Fetcher) ensureDownload(ctx context.Context, dest, rawURL, checksum string) error {
	if !f.Force && checksum != "" {
		if sum, err := fileSHA256(dest); err == nil && sameChecksum(sum, checksum) {
			return nil
		}
	}
	return f.download(ctx, dest, rawURL, checksum)
}

// download streams rawURL into a temporary file next to dest, hashing as it
// goes, and renames it into place only when the checksum matches.
func (f Fetcher) download(ctx context.Context, dest, rawURL, checksum string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent())

	resp, err := f.client().Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("GET %s: %s", rawURL, resp.Status)
	}

	part, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.part")
	if err != nil {
		return fmt.Errorf("create partial download: %w", err)
	}
	defer func() { _ = os.Remove(part.Name()) }()

	hash := sha256.New()
	_, copyErr := io.Copy(io.MultiWriter(part, hash), resp.Body)
	if err := errors.Join(copyErr, part.Close()); err != nil {
		return fmt.Errorf("save %s: %w", rawURL, err)
	}
	if got := hex.EncodeToString(hash.Sum(nil)); checksum != "" && !sameChecksum(got, checksum) {
		return fmt.Errorf("checksum mismatch for %s: got %s", rawURL, got)
	}

	if err := os.Chmod(part.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod download: %w", err)
	}
	if err := os.Rename(part.Name(), dest); err != nil {
		return fmt.Errorf("finalize download: %w", err)
	}
	return nil
}

func (f Fetcher) userAgent() string {
	if f.UserAgent != "" {
		return f.UserAgent
	}
	return "devsetup"
}

func (f Fetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return http.DefaultClient
}

// downloadPath names the local copy after the last URL path segment, or the
// host when the path is empty.
func downloadPath(dir, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse download url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported download scheme %q", u.Scheme)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		name = u.Host
	}
	if name == "" {
		return "", fmt.Errorf("infer file name from url: %s", rawURL)
	}
	return filepath.Join(dir, name), nil
}

func fileSHA256(name string) (string, error) {
	file, err := os.Open(name)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

func sameChecksum(got, want string) bool {
	return strings.EqualFold(got, strings.TrimSpace(want))
}
