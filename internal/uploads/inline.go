package uploads

import (
	"context"
	"encoding/base64"
)

// InlineStorage embeds files as data URLs so documents stay self-contained.
type InlineStorage struct{}

func NewInlineStorage() InlineStorage {
	return InlineStorage{}
}

func (InlineStorage) Mode() string {
	return "inline"
}

func (InlineStorage) Save(ctx context.Context, f File) (string, error) {
	return DataURL(f), nil
}

// Delete is a no-op; the data lives in the document that references it.
func (InlineStorage) Delete(ctx context.Context, ref string) error {
	return nil
}

func DataURL(f File) string {
	return "data:" + f.ContentType + ";base64," + base64.StdEncoding.EncodeToString(f.Data)
}
