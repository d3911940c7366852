package app

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// UploadedFile carries one multipart file from the HTTP layer.
type UploadedFile struct {
	Filename string
	Size     int64
	Reader   io.Reader
}

// validateUpload enforces the extension allowlist and the size limit.
func (a *App) validateUpload(f UploadedFile) error {
	if f.Size <= 0 {
		return ErrEmptyFile
	}
	if f.Size > a.maxUploadBytes {
		return fmt.Errorf("%w (%d bytes, limit %d)", ErrFileTooLarge, f.Size, a.maxUploadBytes)
	}
	ext := strings.ToLower(filepath.Ext(f.Filename))
	if _, ok := a.allowedExt[ext]; !ok {
		return fmt.Errorf("%w: %q", ErrFileTypeNotAllowed, ext)
	}
	return nil
}

// newCoverKey builds a collision-free storage key for a cover image. The
// client filename never reaches disk, only its extension survives.
func newCoverKey(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return "covers/" + uuid.NewString() + ext
}

func contentTypeForFilename(filename string) string {
	ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename)))
	if ct == "" {
		ct = "application/octet-stream"
	}
	return ct
}

// StoredFile describes a file accepted by UploadFile.
type StoredFile struct {
	URL          string `json:"url"`
	FileName     string `json:"fileName"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
}

// UploadFile stores a standalone image under a generated name and returns
// its public URL.
func (a *App) UploadFile(f UploadedFile) (StoredFile, error) {
	if err := a.validateUpload(f); err != nil {
		return StoredFile{}, err
	}
	ext := strings.ToLower(filepath.Ext(f.Filename))
	name := uuid.NewString() + ext
	if err := a.objects.Put(context.Background(), name, f.Reader, f.Size, contentTypeForFilename(f.Filename)); err != nil {
		return StoredFile{}, fmt.Errorf("store file: %w", err)
	}
	return StoredFile{
		URL:          uploadURLPrefix + name,
		FileName:     name,
		OriginalName: filepath.Base(f.Filename),
		Size:         f.Size,
	}, nil
}

// DeleteFile removes a previously uploaded standalone file. The name must be
// a bare filename; anything that looks like a path is rejected.
func (a *App) DeleteFile(name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") {
		return false, fmt.Errorf("%w: invalid file name", ErrValidation)
	}
	exists, err := a.objects.Exists(context.Background(), name)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}
	if err := a.objects.Delete(context.Background(), name); err != nil {
		return false, fmt.Errorf("delete file: %w", err)
	}
	return true, nil
}
