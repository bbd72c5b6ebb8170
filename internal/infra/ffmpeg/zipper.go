package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"
)

// ZipCreator bundles sampled frames into a single archive.
type ZipCreator struct{}

func NewZipCreator() *ZipCreator {
	return &ZipCreator{}
}

func (z *ZipCreator) CreateZip(ctx context.Context, filePaths []string, outputPath string) error {
	zipFile, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create zip file: %w", err)
	}

	if err := z.WriteZip(ctx, zipFile, filePaths); err != nil {
		zipFile.Close()
		os.Remove(outputPath)
		return err
	}
	return zipFile.Close()
}

// WriteZip streams the archive to w, one file at a time. Entries are named by
// base name, so two paths with the same base name are rejected.
func (z *ZipCreator) WriteZip(ctx context.Context, w io.Writer, filePaths []string) error {
	zipWriter := zip.NewWriter(w)
	seen := make(map[string]struct{}, len(filePaths))

	for _, fp := range filePaths {
		select {
		case <-ctx.Done():
			zipWriter.Close()
			return ctx.Err()
		default:
		}

		name := filepath.Base(fp)
		if _, dup := seen[name]; dup {
			zipWriter.Close()
			return fmt.Errorf("duplicate zip entry %s", name)
		}
		seen[name] = struct{}{}

		if err := addFileToZip(zipWriter, fp, name); err != nil {
			zipWriter.Close()
			return fmt.Errorf("add %s to zip: %w", fp, err)
		}
	}

	return zipWriter.Close()
}

func addFileToZip(zw *zip.Writer, filename, name string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}

	header.Name = name
	// JPEG payloads are already compressed.
	header.Method = zip.Store

	writer, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}

	_, err = io.Copy(writer, file)
	return err
}
