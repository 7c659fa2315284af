package uploads

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

type remoteUploader interface {
	Upload(ctx context.Context, f File) (string, error)
	Destroy(ctx context.Context, publicID string) error
}

type CloudStorage struct {
	remote remoteUploader
}

func (c *CloudStorage) Mode() string {
	return "cloud"
}

// Save forwards the in-memory buffer; failures are reported, never retried.
func (c *CloudStorage) Save(ctx context.Context, f File) (string, error) {
	url, err := c.remote.Upload(ctx, f)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUploadFailed, err.Error())
	}
	return url, nil
}

// Delete destroys the remote asset behind a secure URL returned by Save.
func (c *CloudStorage) Delete(ctx context.Context, ref string) error {
	publicID := PublicIDFromURL(ref)
	if publicID == "" {
		return nil
	}
	return c.remote.Destroy(ctx, publicID)
}

// PublicIDFromURL extracts "folder/name" from
// https://res.cloudinary.com/<cloud>/image/upload/v123/folder/name.png.
func PublicIDFromURL(ref string) string {
	_, rest, ok := strings.Cut(ref, "/upload/")
	if !ok || rest == "" {
		return ""
	}
	if version, tail, found := strings.Cut(rest, "/"); found && len(version) > 1 && version[0] == 'v' && isDigits(version[1:]) {
		rest = tail
	}
	if dot := strings.LastIndex(rest, "."); dot > strings.LastIndex(rest, "/") {
		rest = rest[:dot]
	}
	return rest
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

type cloudinaryUploader struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewCloudStorage(rawURL, cloudName, apiKey, apiSecret, folder string) (*CloudStorage, error) {
	var (
		cld *cloudinary.Cloudinary
		err error
	)
	if rawURL != "" {
		cld, err = cloudinary.NewFromURL(rawURL)
	} else {
		cld, err = cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	}
	if err != nil {
		return nil, err
	}
	return &CloudStorage{remote: &cloudinaryUploader{cld: cld, folder: folder}}, nil
}

func (u *cloudinaryUploader) Upload(ctx context.Context, f File) (string, error) {
	res, err := u.cld.Upload.Upload(ctx, bytes.NewReader(f.Data), uploader.UploadParams{
		Folder:       u.folder,
		ResourceType: "image",
	})
	if err != nil {
		return "", err
	}
	if res.Error.Message != "" {
		return "", errors.New(res.Error.Message)
	}
	if strings.TrimSpace(res.SecureURL) == "" {
		return "", errors.New("cloudinary response missing secure_url")
	}
	return res.SecureURL, nil
}

func (u *cloudinaryUploader) Destroy(ctx context.Context, publicID string) error {
	res, err := u.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: "image",
	})
	if err != nil {
		return err
	}
	if res.Error.Message != "" {
		return errors.New(res.Error.Message)
	}
	return nil
}
