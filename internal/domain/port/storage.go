package port

import (
	"context"
	"io"
)

type ArchiveStorage interface {
	UploadArchive(ctx context.Context, objectKey string, reader io.Reader, size int64) error
}
