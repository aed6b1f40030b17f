package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "image/gif" // Register GIF decoder
	_ "image/png" // Register PNG decoder

	"quill/internal/config"
	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/observability"
	"quill/internal/repository"

	"github.com/chai2010/webp"
	"go.opentelemetry.io/otel/attribute"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultMediaDir             = "/tmp/quill/media"
	DefaultImageMaxUploadSizeMB = 10
	MasterMaxSize               = 2048
	AvatarMaxSize               = 512
	JPEGQuality                 = 82
	WebPQuality                 = 70
)

// Stored file names inside an image's hash directory.
const (
	MasterJPEG = "master.jpg"
	MasterWebP = "master.webp"
)

// UploadImageInput is one uploaded picture. Square center-crops it first,
// which is how avatars are stored.
type UploadImageInput struct {
	UserID      uint
	Filename    string
	ContentType string
	Content     []byte
	Square      bool
}

// ImageService validates, normalizes and stores uploaded pictures under a
// content-addressed directory in the media dir.
type ImageService struct {
	repo               repository.ImageRepository
	mediaDir           string
	maxUploadSizeBytes int64
}

func NewImageService(repo repository.ImageRepository, cfg *config.Config) *ImageService {
	mediaDir := DefaultMediaDir
	maxUploadSizeMB := DefaultImageMaxUploadSizeMB

	if cfg != nil {
		if cfg.MediaDir != "" {
			mediaDir = cfg.MediaDir
		}
		if cfg.ImageMaxUploadSizeMB > 0 {
			maxUploadSizeMB = cfg.ImageMaxUploadSizeMB
		}
	}

	return &ImageService{
		repo:               repo,
		mediaDir:           mediaDir,
		maxUploadSizeBytes: int64(maxUploadSizeMB) * 1024 * 1024,
	}
}

// MediaDir returns the directory images are written to.
func (s *ImageService) MediaDir() string {
	return s.mediaDir
}

// UploadFile reads a multipart upload and stores it like Upload.
func (s *ImageService) UploadFile(ctx context.Context, userID uint, fh *multipart.FileHeader, square bool) (*models.Image, error) {
	if fh == nil {
		return nil, models.NewValidationError("No file uploaded")
	}
	if fh.Size > s.maxUploadSizeBytes {
		return nil, models.NewValidationError(s.tooLargeMessage())
	}
	f, err := fh.Open()
	if err != nil {
		return nil, models.NewValidationError("Could not read uploaded file")
	}
	defer func() { _ = f.Close() }()

	// One byte past the limit is enough to tell an oversized stream.
	content, err := io.ReadAll(io.LimitReader(f, s.maxUploadSizeBytes+1))
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return s.Upload(ctx, UploadImageInput{
		UserID:      userID,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Content:     content,
		Square:      square,
	})
}

func (s *ImageService) Upload(ctx context.Context, in UploadImageInput) (img *models.Image, err error) {
	ctx, span := observability.StartSpan(ctx, "service", "UploadImage",
		attribute.Int64("image.user_id", int64(in.UserID)),
		attribute.Int("image.bytes", len(in.Content)),
	)
	defer func() { observability.EndSpan(span, err) }()

	if in.UserID == 0 {
		return nil, models.NewValidationError("Invalid user")
	}
	if len(in.Content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if int64(len(in.Content)) > s.maxUploadSizeBytes {
		return nil, models.NewValidationError(s.tooLargeMessage())
	}

	detectedType := http.DetectContentType(in.Content)
	if !isAllowedImageMIME(detectedType) {
		return nil, models.NewValidationError("Invalid image type")
	}

	decoded, format, err := image.Decode(bytes.NewReader(in.Content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}
	if !isSupportedDecodedFormat(format) {
		return nil, models.NewValidationError("Unsupported image format")
	}

	sourceMimeType := decodedFormatToMime(format)
	if provided := normalizeContentType(in.ContentType); strings.HasPrefix(provided, "image/") && !isMatchingContentType(provided, sourceMimeType) {
		return nil, models.NewValidationError("Image content type mismatch")
	}

	master := decoded
	maxSize := MasterMaxSize
	if in.Square {
		master = cropToSquare(decoded)
		maxSize = AvatarMaxSize
	}
	master = resizeToFit(master, maxSize, maxSize)

	encodedJPEG, err := encodeJPEG(master, JPEGQuality)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	encodedWebP, err := encodeWebP(master, WebPQuality)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	hash := buildDeterministicImageHash(in.UserID, encodedJPEG)
	if s.repo != nil {
		existing, getErr := s.repo.GetByHash(ctx, hash)
		if getErr == nil {
			return existing, nil
		}
		if !isNotFound(getErr) {
			return nil, models.NewInternalError(getErr)
		}
	}

	jpegRel := filepath.ToSlash(filepath.Join(hash, MasterJPEG))
	webpRel := filepath.ToSlash(filepath.Join(hash, MasterWebP))
	jpegAbs := filepath.Join(s.mediaDir, jpegRel)
	webpAbs := filepath.Join(s.mediaDir, webpRel)
	writtenPaths := []string{jpegAbs, webpAbs}

	if err := writeBytesToFile(jpegAbs, encodedJPEG); err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := writeBytesToFile(webpAbs, encodedWebP); err != nil {
		cleanupImageFiles(writtenPaths)
		return nil, models.NewInternalError(err)
	}

	bounds := master.Bounds()
	record := &models.Image{
		Hash:             hash,
		UserID:           in.UserID,
		OriginalFilename: filepath.Base(in.Filename),
		MimeType:         "image/jpeg",
		SizeBytes:        int64(len(encodedJPEG)),
		Width:            bounds.Dx(),
		Height:           bounds.Dy(),
		JPEGPath:         jpegRel,
		WebPPath:         webpRel,
		UploadedAt:       time.Now().UTC(),
	}
	if s.repo != nil {
		if err := s.repo.Create(ctx, record); err != nil {
			cleanupImageFiles(writtenPaths)
			return nil, models.NewInternalError(err)
		}
	}
	observability.ImageUploadBytes.Observe(float64(len(in.Content)))

	return record, nil
}

func (s *ImageService) tooLargeMessage() string {
	return fmt.Sprintf("File too large (max %dMB)", s.maxUploadSizeBytes/(1024*1024))
}

// BuildImageURL returns the public URL of a stored file ("master.jpg" or
// "master.webp") of the image with hash.
func (s *ImageService) BuildImageURL(hash, file string) string {
	if file == "" {
		file = MasterJPEG
	}
	return fmt.Sprintf("/media/i/%s/%s", hash, file)
}

// isValidImageHash checks that the hash is strictly lowercase hex (SHA-256 style).
// This prevents path traversal attacks via crafted hash parameters.
func isValidImageHash(hash string) bool {
	if len(hash) == 0 || len(hash) > 128 {
		return false
	}
	for _, c := range hash {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// ResolveForServing maps a public image URL to the file on disk. Only the
// two master files can be requested.
func (s *ImageService) ResolveForServing(ctx context.Context, hash, file string) (*models.Image, string, error) {
	if !isValidImageHash(hash) {
		return nil, "", models.NewValidationError("Invalid image hash")
	}
	if file != MasterJPEG && file != MasterWebP {
		return nil, "", models.NewNotFoundError("Image", hash+"/"+file)
	}
	if s.repo == nil {
		return nil, "", models.NewInternalError(errors.New("image repository not configured"))
	}
	img, err := s.repo.GetByHash(ctx, hash)
	if err != nil {
		if isNotFound(err) {
			return nil, "", models.NewNotFoundError("Image", hash)
		}
		return nil, "", models.NewInternalError(err)
	}
	fullPath := filepath.Join(s.mediaDir, hash, file)
	if _, err := os.Stat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil, "", models.NewNotFoundError("Image", hash)
		}
		return nil, "", models.NewInternalError(err)
	}
	return img, fullPath, nil
}

// UpdateLastAccessed is best effort; serving never fails on it.
func (s *ImageService) UpdateLastAccessed(ctx context.Context, imageID uint) {
	if s.repo == nil || imageID == 0 {
		return
	}
	if err := s.repo.UpdateLastAccessed(ctx, imageID); err != nil {
		middleware.Logger.DebugContext(ctx, "image last-accessed update failed", "image_id", imageID, "error", err)
	}
}

func cropToSquare(src image.Image) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == h || w <= 0 || h <= 0 {
		return src
	}
	side := w
	if h < side {
		side = h
	}
	x := b.Min.X + (w-side)/2
	y := b.Min.Y + (h-side)/2
	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(dst, dst.Bounds(), src, image.Point{X: x, Y: y}, draw.Src)
	return dst
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scaleW := float64(maxWidth) / float64(w)
	scaleH := float64(maxHeight) / float64(h)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}
	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func isMatchingContentType(provided, detected string) bool {
	p := normalizeContentType(provided)
	d := normalizeContentType(detected)
	if p == d {
		return true
	}
	return (p == "image/jpg" && d == "image/jpeg") || (p == "image/jpeg" && d == "image/jpg")
}

func isSupportedDecodedFormat(format string) bool {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg", "png", "gif", "webp":
		return true
	default:
		return false
	}
}

func decodedFormatToMime(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return ""
	}
}

func buildDeterministicImageHash(userID uint, content []byte) string {
	h := sha256.New()
	_, _ = fmt.Fprintf(h, "%d:", userID)
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

func writeBytesToFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func cleanupImageFiles(paths []string) {
	for _, p := range paths {
		_ = os.Remove(p)
	}
}
