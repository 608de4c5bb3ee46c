package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"io"
	"io/fs"
	"log/slog"
	"math/rand/v2"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"explorer/internal/assets"
	"explorer/internal/models"
	"explorer/internal/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const imageKitAuthTTL = 30 * time.Minute

var allowedImageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// ImageStore persists uploaded images and returns their public URL.
type ImageStore interface {
	Name() string
	Save(ctx context.Context, baseURL, name, contentType string, data []byte) (string, error)
	// Remove returns an error wrapping fs.ErrNotExist when name is not stored.
	Remove(ctx context.Context, name string) error
}

// LocalImageStore writes images below dir and serves them from /uploads/experiences/.
type LocalImageStore struct {
	dir        string
	publicBase string
}

// NewLocalImageStore stores files in dir. An empty publicBase makes URLs relative to the request host.
func NewLocalImageStore(dir, publicBase string) *LocalImageStore {
	return &LocalImageStore{dir: dir, publicBase: strings.TrimRight(publicBase, "/")}
}

func (s *LocalImageStore) Name() string { return "local" }

func (s *LocalImageStore) Save(_ context.Context, baseURL, name, _ string, data []byte) (string, error) {
	if err := writeBytesToFile(filepath.Join(s.dir, name), data); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	base := s.publicBase
	if base == "" {
		base = strings.TrimRight(baseURL, "/")
	}
	return base + assets.LocalMarker + name, nil
}

func (s *LocalImageStore) Remove(_ context.Context, name string) error {
	return os.Remove(filepath.Join(s.dir, name))
}

// S3ImageStore puts images into a bucket under keyPrefix.
type S3ImageStore struct {
	api        assets.ObjectAPI
	bucket     string
	keyPrefix  string
	publicBase string
}

func NewS3ImageStore(api assets.ObjectAPI, bucket, keyPrefix, publicBase string) *S3ImageStore {
	return &S3ImageStore{
		api:        api,
		bucket:     bucket,
		keyPrefix:  keyPrefix,
		publicBase: strings.TrimRight(publicBase, "/"),
	}
}

func (s *S3ImageStore) Name() string { return "s3" }

func (s *S3ImageStore) Save(ctx context.Context, _ string, name, contentType string, data []byte) (string, error) {
	key := s.keyPrefix + name
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
		CacheControl:  aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return s.publicBase + "/" + key, nil
}

func (s *S3ImageStore) Remove(ctx context.Context, name string) error {
	key := s.keyPrefix + name
	if _, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return fmt.Errorf("object %s: %w", key, fs.ErrNotExist)
		}
		return err
	}
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

// UploadLimits bounds a single upload request.
type UploadLimits struct {
	MaxFiles     int
	MaxFileBytes int64
}

// ImageKitSettings are the account values needed to sign client-side uploads.
type ImageKitSettings struct {
	PublicKey   string
	PrivateKey  string
	URLEndpoint string
	Folder      string
}

type UploadService struct {
	store    ImageStore
	limits   UploadLimits
	imageKit ImageKitSettings
	logger   *slog.Logger
	now      func() time.Time
}

type UploadInput struct {
	UserID  string
	BaseURL string
	Files   []*multipart.FileHeader
}

// UploadResult lists the public URLs of stored images in request order.
type UploadResult struct {
	URLs  []string `json:"urls"`
	Count int      `json:"count"`
}

// ImageKitAuthParams let a browser upload straight to ImageKit.
type ImageKitAuthParams struct {
	Token       string `json:"token"`
	Expire      int64  `json:"expire"`
	Signature   string `json:"signature"`
	PublicKey   string `json:"publicKey,omitempty"`
	URLEndpoint string `json:"urlEndpoint,omitempty"`
	Folder      string `json:"folder,omitempty"`
}

func NewUploadService(store ImageStore, limits UploadLimits, imageKit ImageKitSettings, logger *slog.Logger) *UploadService {
	if limits.MaxFiles <= 0 {
		limits.MaxFiles = 10
	}
	if limits.MaxFileBytes <= 0 {
		limits.MaxFileBytes = 5 << 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadService{
		store:    store,
		limits:   limits,
		imageKit: imageKit,
		logger:   logger,
		now:      time.Now,
	}
}

type preparedImage struct {
	name        string
	contentType string
	data        []byte
}

// Upload validates every file before storing any of them.
func (s *UploadService) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	if len(in.Files) == 0 {
		return nil, models.NewValidationError("No files uploaded")
	}
	if len(in.Files) > s.limits.MaxFiles {
		return nil, models.NewValidationError(fmt.Sprintf("Too many files. Maximum is %d files", s.limits.MaxFiles))
	}

	prepared := make([]preparedImage, 0, len(in.Files))
	for _, fh := range in.Files {
		img, err := s.prepare(in.UserID, fh)
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, img)
	}

	urls := make([]string, 0, len(prepared))
	stored := make([]string, 0, len(prepared))
	for _, img := range prepared {
		url, err := s.store.Save(ctx, in.BaseURL, img.name, img.contentType, img.data)
		if err != nil {
			s.rollback(ctx, stored)
			return nil, models.NewInternalError(err)
		}
		stored = append(stored, img.name)
		urls = append(urls, url)
		observability.UploadedFiles.WithLabelValues(s.store.Name()).Inc()
	}

	s.logger.InfoContext(ctx, "images uploaded",
		slog.String("backend", s.store.Name()),
		slog.Int("count", len(urls)),
	)
	return &UploadResult{URLs: urls, Count: len(urls)}, nil
}

func (s *UploadService) prepare(userID string, fh *multipart.FileHeader) (preparedImage, error) {
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	expectedType, ok := allowedImageTypes[ext]
	if !ok {
		return preparedImage{}, models.NewValidationError("Only image files are allowed!")
	}
	if fh.Size > s.limits.MaxFileBytes {
		return preparedImage{}, models.NewValidationError(fmt.Sprintf("File too large. Maximum size is %dMB", s.limits.MaxFileBytes>>20))
	}

	f, err := fh.Open()
	if err != nil {
		return preparedImage{}, models.NewInternalError(err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.limits.MaxFileBytes+1))
	if err != nil {
		return preparedImage{}, models.NewInternalError(err)
	}
	if int64(len(data)) > s.limits.MaxFileBytes {
		return preparedImage{}, models.NewValidationError(fmt.Sprintf("File too large. Maximum size is %dMB", s.limits.MaxFileBytes>>20))
	}

	contentType := http.DetectContentType(data)
	if _, ok := imageContentTypes[contentType]; !ok {
		return preparedImage{}, models.NewValidationError("Only image files are allowed!")
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return preparedImage{}, models.NewValidationError("Only image files are allowed!")
	}
	if contentType != expectedType {
		s.logger.Debug("upload extension does not match content",
			slog.String("extension", ext),
			slog.String("content_type", contentType),
		)
	}

	return preparedImage{
		name:        s.newFilename(userID, ext),
		contentType: contentType,
		data:        data,
	}, nil
}

var imageContentTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
	"image/webp": {},
}

func uploadedBy(name, userID string) bool {
	userID = strings.TrimSpace(userID)
	return userID != "" && strings.HasPrefix(name, userID+"-")
}

// newFilename returns <userID>-<unixMillis>-<random><ext>.
func (s *UploadService) newFilename(userID, ext string) string {
	owner := userID
	if owner == "" {
		owner = "anonymous"
	}
	return fmt.Sprintf("%s-%d-%d%s", owner, s.now().UnixMilli(), rand.Int64N(1_000_000_000), ext)
}

func (s *UploadService) rollback(ctx context.Context, names []string) {
	for _, name := range names {
		if err := s.store.Remove(ctx, name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.WarnContext(ctx, "failed to roll back stored image",
				slog.String("name", name),
				slog.String("error", err.Error()),
			)
		}
	}
}

// DeleteByFilename removes an image the user uploaded. Stored names carry the uploader's id
// as their prefix, so any other name is refused.
func (s *UploadService) DeleteByFilename(ctx context.Context, userID, filename string) error {
	name := strings.TrimSpace(filename)
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return models.NewNotFoundError("File")
	}
	if !uploadedBy(name, userID) {
		return models.NewForbiddenError("You can only delete your own uploads")
	}

	if err := s.store.Remove(ctx, name); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.NewNotFoundError("File")
		}
		return models.NewInternalError(err)
	}
	s.logger.InfoContext(ctx, "uploaded image deleted", slog.String("name", name))
	return nil
}

// ImageKitAuth signs a one-time token for a client-side ImageKit upload.
func (s *UploadService) ImageKitAuth() (*ImageKitAuthParams, error) {
	if s.imageKit.PrivateKey == "" {
		return nil, models.NewInternalError(errors.New("imagekit private key is not configured"))
	}

	token := uuid.NewString()
	expire := s.now().Add(imageKitAuthTTL).Unix()

	mac := hmac.New(sha1.New, []byte(s.imageKit.PrivateKey))
	mac.Write([]byte(token + strconv.FormatInt(expire, 10)))

	return &ImageKitAuthParams{
		Token:       token,
		Expire:      expire,
		Signature:   hex.EncodeToString(mac.Sum(nil)),
		PublicKey:   s.imageKit.PublicKey,
		URLEndpoint: s.imageKit.URLEndpoint,
		Folder:      s.imageKit.Folder,
	}, nil
}

func writeBytesToFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
