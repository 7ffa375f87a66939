// Package storage keeps uploaded images on local disk under time-sortable names.
package storage

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const (
	// PublicPrefix is the URL path files are served under.
	PublicPrefix = "/uploads/"

	MaxFileSize     = 5 << 20
	MaxFilesPerForm = 10
)

var (
	ErrTooLarge        = errors.New("file_too_large")
	ErrTooManyFiles    = errors.New("too_many_files")
	ErrUnsupportedType = errors.New("unsupported_file_type")
	ErrInvalidName     = errors.New("invalid_file_name")
)

type LocalStore struct {
	dir string
	log *zap.Logger

	mu      sync.Mutex
	entropy io.Reader
}

func NewLocalStore(dir string, log *zap.Logger) (*LocalStore, error) {
	if strings.TrimSpace(dir) == "" {
		dir = "uploads"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{
		dir:     dir,
		log:     log,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}, nil
}

func (s *LocalStore) Dir() string { return s.dir }

// Save validates and writes one multipart file, returning its public URL.
func (s *LocalStore) Save(ctx context.Context, header *multipart.FileHeader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if header.Size > MaxFileSize {
		return "", ErrTooLarge
	}

	src, err := header.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	sniff := make([]byte, 512)
	n, err := io.ReadFull(src, sniff)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	if !strings.HasPrefix(http.DetectContentType(sniff[:n]), "image/") {
		return "", ErrUnsupportedType
	}

	name := s.newName(filepath.Ext(header.Filename))
	dst, err := os.OpenFile(filepath.Join(s.dir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}

	written, err := io.Copy(dst, io.LimitReader(io.MultiReader(strings.NewReader(string(sniff[:n])), src), MaxFileSize+1))
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && written > MaxFileSize {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(filepath.Join(s.dir, name))
		return "", err
	}
	return PublicPrefix + name, nil
}

// SaveAll stores every file or none of them.
func (s *LocalStore) SaveAll(ctx context.Context, headers []*multipart.FileHeader) ([]string, error) {
	if len(headers) > MaxFilesPerForm {
		return nil, ErrTooManyFiles
	}
	urls := make([]string, 0, len(headers))
	for _, header := range headers {
		url, err := s.Save(ctx, header)
		if err != nil {
			for _, saved := range urls {
				_ = s.Remove(ctx, saved)
			}
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}

// Remove deletes a stored file by public URL or bare name. Missing files are ignored.
func (s *LocalStore) Remove(ctx context.Context, url string) error {
	name := path.Base(strings.TrimPrefix(strings.TrimSpace(url), PublicPrefix))
	if name == "" || name == "." || name == "/" || name == ".." {
		return ErrInvalidName
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalStore) newName(ext string) string {
	ext = strings.ToLower(ext)
	if len(ext) > 8 || strings.ContainsAny(ext, `/\`) {
		ext = ""
	}
	s.mu.Lock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy)
	s.mu.Unlock()
	return strings.ToLower(id.String()) + ext
}
