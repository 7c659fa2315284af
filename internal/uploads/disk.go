package uploads

import (
	"context"
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

type DiskStorage struct {
	dir       string
	urlPrefix string
}

func NewDiskStorage(dir, urlPrefix string) (*DiskStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskStorage{dir: dir, urlPrefix: "/" + strings.Trim(urlPrefix, "/")}, nil
}

func (d *DiskStorage) Mode() string {
	return "disk"
}

func (d *DiskStorage) Dir() string {
	return d.dir
}

func (d *DiskStorage) Save(ctx context.Context, f File) (string, error) {
	ext, ok := extensions[f.ContentType]
	if !ok {
		ext = strings.ToLower(filepath.Ext(f.Name))
	}
	name := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(d.dir, name), f.Data, 0o644); err != nil {
		return "", err
	}
	return path.Join(d.urlPrefix, name), nil
}

// Delete removes a file saved by this storage. References outside its URL
// prefix are ignored.
func (d *DiskStorage) Delete(ctx context.Context, ref string) error {
	prefix := d.urlPrefix + "/"
	if !strings.HasPrefix(ref, prefix) {
		return nil
	}
	name := strings.TrimPrefix(ref, prefix)
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil
	}
	if err := os.Remove(filepath.Join(d.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
