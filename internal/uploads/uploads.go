package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const DefaultMaxFileBytes = 10 << 20

// Inline data URLs live inside one MongoDB document (16 MB max). Raw bytes
// grow by a third once base64 encoded, so InlineBudgetBytes of raw data
// stays under MaxStoredRefBytes of encoded references.
const (
	InlineBudgetBytes = 11 << 20
	MaxStoredRefBytes = 15 << 20
)

var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrPayloadTooLarge     = errors.New("payload too large")
	ErrTooManyFiles        = errors.New("too many files")
	ErrUploadFailed        = errors.New("upload failed")
	ErrInvalidForm         = errors.New("invalid multipart form")
)

var ImageTypes = []string{"image/jpeg", "image/png", "image/webp", "image/gif"}

type File struct {
	Name        string
	ContentType string
	Size        int64
	Data        []byte
}

// Storage turns an accepted file into the string stored on a document:
// a public path, a remote URL or a data URL.
type Storage interface {
	Save(ctx context.Context, f File) (string, error)
	// Delete removes a stored file; unknown references are ignored.
	Delete(ctx context.Context, ref string) error
	Mode() string
}

type Limits struct {
	MaxFileBytes int64
	MaxFiles     int
	// MaxTotalBytes caps the raw size of all files read for one field.
	MaxTotalBytes int64
	AllowedTypes  []string
}

// ForStorage applies the inline budget when s embeds files in documents.
func (l Limits) ForStorage(s Storage) Limits {
	if s != nil && s.Mode() == "inline" && (l.MaxTotalBytes <= 0 || l.MaxTotalBytes > InlineBudgetBytes) {
		l.MaxTotalBytes = InlineBudgetBytes
	}
	return l
}

func (l Limits) allowed(contentType string) bool {
	types := l.AllowedTypes
	if len(types) == 0 {
		types = ImageTypes
	}
	for _, t := range types {
		if t == contentType {
			return true
		}
	}
	return false
}

// ParseForm reads a multipart body capped at maxBody bytes.
func ParseForm(w http.ResponseWriter, r *http.Request, maxBody int64) (*multipart.Form, error) {
	if r.ContentLength > maxBody {
		return nil, ErrPayloadTooLarge
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return nil, ErrPayloadTooLarge
		}
		return nil, ErrInvalidForm
	}
	return r.MultipartForm, nil
}

// ReadFiles loads and checks every file submitted under field.
func ReadFiles(form *multipart.Form, field string, limits Limits) ([]File, error) {
	if form == nil {
		return nil, nil
	}
	headers := form.File[field]
	if len(headers) == 0 {
		headers = form.File[field+"[]"]
	}
	if limits.MaxFiles > 0 && len(headers) > limits.MaxFiles {
		return nil, ErrTooManyFiles
	}
	maxBytes := limits.MaxFileBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileBytes
	}
	if limits.MaxTotalBytes > 0 {
		var declared int64
		for _, fh := range headers {
			declared += fh.Size
		}
		if declared > limits.MaxTotalBytes {
			return nil, fmt.Errorf("%w: files exceed %d bytes in total", ErrPayloadTooLarge, limits.MaxTotalBytes)
		}
	}

	files := make([]File, 0, len(headers))
	var total int64
	for _, fh := range headers {
		f, err := readFile(fh, maxBytes, limits)
		if err != nil {
			return nil, err
		}
		total += f.Size
		if limits.MaxTotalBytes > 0 && total > limits.MaxTotalBytes {
			return nil, fmt.Errorf("%w: files exceed %d bytes in total", ErrPayloadTooLarge, limits.MaxTotalBytes)
		}
		files = append(files, f)
	}
	return files, nil
}

// CheckTotal rejects files whose combined size is over limit.
func CheckTotal(files []File, limit int64) error {
	if limit <= 0 {
		return nil
	}
	var total int64
	for _, f := range files {
		total += f.Size
	}
	if total > limit {
		return fmt.Errorf("%w: files exceed %d bytes in total", ErrPayloadTooLarge, limit)
	}
	return nil
}

// RefsSize is the number of bytes the references take in a document.
func RefsSize(refs []string) int64 {
	var n int64
	for _, ref := range refs {
		n += int64(len(ref))
	}
	return n
}

func readFile(fh *multipart.FileHeader, maxBytes int64, limits Limits) (File, error) {
	if fh.Size > maxBytes {
		return File{}, fmt.Errorf("%w: %s exceeds %d bytes", ErrPayloadTooLarge, fh.Filename, maxBytes)
	}
	declared := strings.ToLower(strings.TrimSpace(strings.SplitN(fh.Header.Get("Content-Type"), ";", 2)[0]))
	if declared != "" && declared != "application/octet-stream" && !limits.allowed(declared) {
		return File{}, fmt.Errorf("%w: %s", ErrUnsupportedFileType, declared)
	}

	src, err := fh.Open()
	if err != nil {
		return File{}, err
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxBytes+1))
	if err != nil {
		return File{}, err
	}
	if int64(len(data)) > maxBytes {
		return File{}, fmt.Errorf("%w: %s exceeds %d bytes", ErrPayloadTooLarge, fh.Filename, maxBytes)
	}

	detected := mimetype.Detect(data).String()
	detected = strings.SplitN(detected, ";", 2)[0]
	if !limits.allowed(detected) {
		return File{}, fmt.Errorf("%w: %s", ErrUnsupportedFileType, detected)
	}

	return File{
		Name:        fh.Filename,
		ContentType: detected,
		Size:        int64(len(data)),
		Data:        data,
	}, nil
}

// SaveAll stores files in order and returns their references. When one save
// fails the files already stored are removed.
func SaveAll(ctx context.Context, s Storage, files []File) ([]string, error) {
	refs := make([]string, 0, len(files))
	for _, f := range files {
		ref, err := s.Save(ctx, f)
		if err != nil {
			if cleanupErr := DeleteAll(ctx, s, refs); cleanupErr != nil {
				return nil, errors.Join(err, cleanupErr)
			}
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// DeleteAll removes every reference and reports all failures.
func DeleteAll(ctx context.Context, s Storage, refs []string) error {
	var errs []error
	for _, ref := range refs {
		if err := s.Delete(ctx, ref); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", ref, err))
		}
	}
	return errors.Join(errs...)
}

// IsClientError reports upload errors that should be answered with 400.
func IsClientError(err error) bool {
	return errors.Is(err, ErrUnsupportedFileType) ||
		errors.Is(err, ErrPayloadTooLarge) ||
		errors.Is(err, ErrTooManyFiles) ||
		errors.Is(err, ErrUploadFailed) ||
		errors.Is(err, ErrInvalidForm)
}
