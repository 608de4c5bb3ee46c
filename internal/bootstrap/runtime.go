// Package bootstrap assembles the runtime dependencies shared by the server and the command line tools.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"explorer/internal/assets"
	"explorer/internal/cache"
	"explorer/internal/config"
	"explorer/internal/database"
	"explorer/internal/service"

	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SkipSchema leaves the schema untouched, for tools that manage migrations themselves.
	SkipSchema bool
}

// Runtime holds the connections opened by InitRuntime.
type Runtime struct {
	DB    *gorm.DB
	Cache *cache.Cache
}

// InitRuntime connects to the database and Redis and prepares the schema.
// Redis is optional: an unreachable server yields a disabled cache.
func InitRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*Runtime, error) {
	db, err := database.ConnectWithOptions(ctx, cfg, logger, database.ConnectOptions{
		ApplySchema: !opts.SkipSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	return &Runtime{
		DB:    db,
		Cache: cache.Connect(ctx, cfg.RedisURL, logger),
	}, nil
}

// Close releases the database pool and the Redis client.
func (r *Runtime) Close() error {
	var firstErr error
	if sqlDB, err := r.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			firstErr = err
		}
	}
	if err := r.Cache.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Storage is the image plumbing derived from configuration.
type Storage struct {
	Assets     *assets.Manager
	ImageStore service.ImageStore
}

// NewStorage builds the asset manager and the upload store. ImageKit is enabled when both its
// URL endpoint and private key are set; S3 when a bucket is configured. Local disk is always
// registered so files uploaded before a backend switch can still be cleaned up.
func NewStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Storage, error) {
	localDir := filepath.Join(cfg.UploadDir, "experiences")
	backends := []assets.Backend{assets.NewLocalBackend(localDir)}

	if cfg.ImageKitURLEndpoint != "" && cfg.ImageKitPrivateKey != "" {
		client := assets.NewImageKitClient(cfg.ImageKitAPIBaseURL, cfg.ImageKitPrivateKey,
			&http.Client{Timeout: 15 * time.Second})
		imageKit, err := assets.NewImageKitBackend(cfg.ImageKitURLEndpoint, cfg.ImageKitFolder, client, logger)
		if err != nil {
			return nil, fmt.Errorf("imagekit backend: %w", err)
		}
		backends = append([]assets.Backend{imageKit}, backends...)
	}

	var store service.ImageStore = service.NewLocalImageStore(localDir, cfg.PublicBaseURL)

	if cfg.S3Bucket != "" {
		client, err := assets.NewS3Client(ctx, assets.S3Options{
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 client: %w", err)
		}
		backends = append(backends, assets.NewS3Backend(client, cfg.S3Bucket, cfg.S3PublicBaseURL))
		if cfg.UploadBackend == "s3" {
			store = service.NewS3ImageStore(client, cfg.S3Bucket, cfg.S3KeyPrefix, cfg.S3PublicBaseURL)
		}
	}

	manager := assets.NewManager(logger, backends...)
	logger.Info("image storage ready",
		slog.Any("asset_backends", manager.Backends()),
		slog.String("upload_backend", store.Name()),
	)
	return &Storage{Assets: manager, ImageStore: store}, nil
}
