package uploads

import (
	"fmt"

	"smarthub-backend/internal/config"
)

// NewStorage picks the strategy configured for general uploads.
func NewStorage(cfg *config.Config) (Storage, error) {
	switch cfg.UploadMode {
	case config.UploadModeCloud:
		return NewCloudStorage(cfg.CloudinaryURL, cfg.CloudinaryName, cfg.CloudinaryKey, cfg.CloudinarySecret, cfg.CloudinaryFolder)
	case config.UploadModeInline:
		return NewInlineStorage(), nil
	case config.UploadModeDisk:
		return NewDiskStorage(cfg.UploadDir, "/uploads")
	default:
		return nil, fmt.Errorf("unknown upload mode %q", cfg.UploadMode)
	}
}
