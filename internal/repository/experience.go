package repository

import (
	"context"
	"encoding/json"
	"errors"

	"explorer/internal/models"
	"explorer/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ExperienceRepository defines persistence operations for experiences.
type ExperienceRepository interface {
	Create(ctx context.Context, experience *models.Experience) error
	GetByID(ctx context.Context, id string) (*models.Experience, error)
	List(ctx context.Context, filter models.ExperienceFilter) ([]models.Experience, error)
	Update(ctx context.Context, experience *models.Experience) error
	// Delete is idempotent: removing a missing record succeeds.
	Delete(ctx context.Context, id string) error
	// CountImageReferences counts experiences other than excludeID whose images contain url.
	CountImageReferences(ctx context.Context, url, excludeID string) (int64, error)
	// RewriteImages walks every experience in batches and persists the images rewrite changes.
	RewriteImages(ctx context.Context, batchSize int, rewrite func(string) (string, bool)) (RewriteStats, error)
}

// RewriteStats summarizes a RewriteImages run.
type RewriteStats struct {
	Scanned int
	Updated int
}

type experienceRepository struct {
	db *gorm.DB
}

// NewExperienceRepository returns a new ExperienceRepository implementation.
func NewExperienceRepository(db *gorm.DB) ExperienceRepository {
	return &experienceRepository{db: db}
}

func (r *experienceRepository) Create(ctx context.Context, experience *models.Experience) error {
	defer observability.TrackQuery("create", "experiences")()

	if err := r.db.WithContext(ctx).Create(experience).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *experienceRepository) GetByID(ctx context.Context, id string) (*models.Experience, error) {
	defer observability.TrackQuery("get", "experiences")()

	var experience models.Experience
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&experience).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Experience")
		}
		return nil, models.NewInternalError(err)
	}
	return &experience, nil
}

func (r *experienceRepository) List(ctx context.Context, filter models.ExperienceFilter) ([]models.Experience, error) {
	ctx, span := observability.TraceRepositoryMethod(ctx, "List", "experiences")
	defer span.End()
	defer observability.TrackQuery("list", "experiences")()

	query := r.db.WithContext(ctx).Model(&models.Experience{})
	if filter.ProvinceID != "" {
		query = query.Where("province_id = ?", filter.ProvinceID)
	}
	if filter.DistrictID != "" {
		query = query.Where("district_id = ?", filter.DistrictID)
	}
	if filter.CityName != "" {
		query = query.Where("city_name = ?", filter.CityName)
	}

	experiences := []models.Experience{}
	if err := query.Order("created_at DESC").Order("id DESC").Find(&experiences).Error; err != nil {
		span.RecordError(err)
		return nil, models.NewInternalError(err)
	}
	span.SetAttributes(attribute.Int("db.rows", len(experiences)))
	return experiences, nil
}

func (r *experienceRepository) Update(ctx context.Context, experience *models.Experience) error {
	defer observability.TrackQuery("update", "experiences")()

	result := r.db.WithContext(ctx).Model(experience).
		Select("title", "description", "province_id", "province_name", "district_id",
			"district_name", "city_name", "images", "updated_at").
		Updates(experience)
	if result.Error != nil {
		return models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Experience")
	}
	return nil
}

func (r *experienceRepository) Delete(ctx context.Context, id string) error {
	defer observability.TrackQuery("delete", "experiences")()

	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Experience{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *experienceRepository) CountImageReferences(ctx context.Context, url, excludeID string) (int64, error) {
	defer observability.TrackQuery("count_image_refs", "experiences")()

	query := r.db.WithContext(ctx).Model(&models.Experience{}).Where("id <> ?", excludeID)
	switch r.db.Dialector.Name() {
	case "postgres":
		needle, err := json.Marshal([]string{url})
		if err != nil {
			return 0, models.NewInternalError(err)
		}
		query = query.Where("images @> CAST(? AS jsonb)", string(needle))
	default:
		query = query.Where("EXISTS (SELECT 1 FROM json_each(experiences.images) WHERE json_each.value = ?)", url)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

func (r *experienceRepository) RewriteImages(ctx context.Context, batchSize int, rewrite func(string) (string, bool)) (RewriteStats, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	var stats RewriteStats
	var batch []models.Experience
	result := r.db.WithContext(ctx).Order("id").FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
		for i := range batch {
			stats.Scanned++

			changed := false
			images := make(datatypes.JSONSlice[string], len(batch[i].Images))
			for j, image := range batch[i].Images {
				next, ok := rewrite(image)
				images[j] = next
				changed = changed || ok
			}
			if !changed {
				continue
			}

			if err := r.db.WithContext(ctx).Model(&batch[i]).UpdateColumn("images", images).Error; err != nil {
				return err
			}
			stats.Updated++
		}
		return nil
	})
	if result.Error != nil {
		return stats, models.NewInternalError(result.Error)
	}
	return stats, nil
}
