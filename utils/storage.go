package utils

import (
	"context"
	"mime/multipart"
)

// ImageStore persists uploaded catalog images and returns their public URL.
type ImageStore interface {
	Upload(ctx context.Context, fileHeader *multipart.FileHeader, key string) (string, error)
}
