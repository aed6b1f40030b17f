// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/textproto"
	"sync"
	"time"

	"quill/internal/models"
)

// ImageRepoStub is an in-memory image repository implementation for tests.
type ImageRepoStub struct {
	mu     sync.Mutex
	items  map[string]*models.Image
	nextID uint
}

// NewImageRepoStub creates an in-memory image repository stub for tests.
func NewImageRepoStub() *ImageRepoStub {
	return &ImageRepoStub{items: make(map[string]*models.Image), nextID: 1}
}

// Create stores image metadata in-memory.
func (s *ImageRepoStub) Create(_ context.Context, img *models.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if img.ID == 0 {
		img.ID = s.nextID
		s.nextID++
	}
	s.items[img.Hash] = img
	return nil
}

// GetByHash fetches an image by content hash.
func (s *ImageRepoStub) GetByHash(_ context.Context, hash string) (*models.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[hash]
	if !ok {
		return nil, models.NewNotFoundError("Image", hash)
	}
	return item, nil
}

// UpdateLastAccessed updates LastAccessedAt for the matching image.
func (s *ImageRepoStub) UpdateLastAccessed(_ context.Context, imageID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.ID == imageID {
			now := time.Now().UTC()
			item.LastAccessedAt = &now
			return nil
		}
	}
	return models.NewNotFoundError("Image", imageID)
}

// Len returns the number of stored images.
func (s *ImageRepoStub) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

type fataler interface {
	Helper()
	Fatalf(string, ...any)
}

// TinyPNG returns an in-memory PNG byte slice with the requested dimensions.
func TinyPNG(t fataler, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: uint8(x % 256), A: 255})
	}
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// FileHeader wraps content in a multipart upload under field, the way a
// browser form post would deliver it.
func FileHeader(t fataler, field, filename, contentType string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	form, err := multipart.NewReader(body, w.Boundary()).ReadForm(int64(len(content)) + 1024)
	if err != nil {
		t.Fatalf("read multipart: %v", err)
	}
	files := form.File[field]
	if len(files) != 1 {
		t.Fatalf("expected one file under %q, got %d", field, len(files))
	}
	return files[0]
}
