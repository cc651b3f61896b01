package checkout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DiskStore writes proof images under Dir and serves them from BaseURL.
type DiskStore struct {
	Dir     string
	BaseURL string
}

func (d *DiskStore) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(filename))
	name := strconv.FormatInt(time.Now().UnixNano(), 10) + ext
	f, err := os.Create(filepath.Join(d.Dir, name))
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s", strings.TrimRight(d.BaseURL, "/"), name), nil
}

// Remove deletes the file behind a URL returned by Save. Only the basename
// is trusted, so a URL can never reach outside Dir.
func (d *DiskStore) Remove(_ context.Context, url string) error {
	name := path.Base(url)
	if name == "" || name == "." || name == "/" {
		return nil
	}
	err := os.Remove(filepath.Join(d.Dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
