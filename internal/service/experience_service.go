package service

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"explorer/internal/assets"
	"explorer/internal/geo"
	"explorer/internal/models"
	"explorer/internal/repository"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 20000
	maxLocationLength    = 100
	maxImageURLLength    = 2048
	maxImages            = 10
)

// AssetDeleter removes stored image assets. Implementations must not fail the caller.
type AssetDeleter interface {
	Delete(ctx context.Context, ref string) assets.Outcome
}

// ExperienceService enforces authorship rules on experiences and cleans up their images.
type ExperienceService struct {
	repo      repository.ExperienceRepository
	locations *geo.Hierarchy
	assets    AssetDeleter
	logger    *slog.Logger
}

// ExperienceInput is the client payload for a new experience. Author fields are not part of it.
type ExperienceInput struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	ProvinceID   string   `json:"provinceId"`
	ProvinceName string   `json:"provinceName"`
	DistrictID   string   `json:"districtId"`
	DistrictName string   `json:"districtName"`
	CityName     string   `json:"cityName"`
	Images       []string `json:"images"`
}

// ExperiencePatch carries the fields an owner may change. Nil fields are left untouched.
type ExperiencePatch struct {
	Title        *string   `json:"title"`
	Description  *string   `json:"description"`
	ProvinceID   *string   `json:"provinceId"`
	ProvinceName *string   `json:"provinceName"`
	DistrictID   *string   `json:"districtId"`
	DistrictName *string   `json:"districtName"`
	CityName     *string   `json:"cityName"`
	Images       *[]string `json:"images"`
}

func NewExperienceService(repo repository.ExperienceRepository, locations *geo.Hierarchy, deleter AssetDeleter, logger *slog.Logger) *ExperienceService {
	if locations == nil {
		locations = geo.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExperienceService{
		repo:      repo,
		locations: locations,
		assets:    deleter,
		logger:    logger,
	}
}

func (s *ExperienceService) Create(ctx context.Context, user *models.User, in ExperienceInput) (*models.Experience, error) {
	experience := &models.Experience{
		Title:         in.Title,
		Description:   in.Description,
		ProvinceID:    in.ProvinceID,
		ProvinceName:  in.ProvinceName,
		DistrictID:    in.DistrictID,
		DistrictName:  in.DistrictName,
		CityName:      in.CityName,
		Images:        datatypes.JSONSlice[string](in.Images),
		CreatedBy:     user.ID,
		CreatedByName: user.Name,
	}
	if err := s.normalize(experience); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, experience); err != nil {
		return nil, models.NewInternalError(err)
	}
	s.logger.InfoContext(ctx, "experience created", slog.String("experience_id", experience.ID))
	return experience, nil
}

func (s *ExperienceService) List(ctx context.Context, filter models.ExperienceFilter) ([]models.Experience, error) {
	filter.ProvinceID = strings.TrimSpace(filter.ProvinceID)
	filter.DistrictID = strings.TrimSpace(filter.DistrictID)
	filter.CityName = strings.TrimSpace(filter.CityName)

	experiences, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return experiences, nil
}

func (s *ExperienceService) Get(ctx context.Context, id string) (*models.Experience, error) {
	return s.fetch(ctx, id)
}

func (s *ExperienceService) Update(ctx context.Context, user *models.User, id string, patch ExperiencePatch) (*models.Experience, error) {
	experience, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sameIdentity(experience.CreatedBy, user.ID) {
		return nil, models.NewForbiddenError("You can only edit your own experiences")
	}

	// A new location without names takes its names from the hierarchy again.
	if patch.ProvinceID != nil && patch.ProvinceName == nil && *patch.ProvinceID != experience.ProvinceID {
		experience.ProvinceName = ""
	}
	if patch.DistrictID != nil && patch.DistrictName == nil && *patch.DistrictID != experience.DistrictID {
		experience.DistrictName = ""
	}

	applyString(&experience.Title, patch.Title)
	applyString(&experience.Description, patch.Description)
	applyString(&experience.ProvinceID, patch.ProvinceID)
	applyString(&experience.ProvinceName, patch.ProvinceName)
	applyString(&experience.DistrictID, patch.DistrictID)
	applyString(&experience.DistrictName, patch.DistrictName)
	applyString(&experience.CityName, patch.CityName)
	if patch.Images != nil {
		experience.Images = datatypes.JSONSlice[string](*patch.Images)
	}

	if err := s.normalize(experience); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, experience); err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return nil, err
		}
		return nil, models.NewInternalError(err)
	}
	return experience, nil
}

// Delete removes the experience after a best-effort cleanup of its images. Images still used by
// another experience are kept.
func (s *ExperienceService) Delete(ctx context.Context, user *models.User, id string) error {
	experience, err := s.fetch(ctx, id)
	if err != nil {
		return err
	}
	if !sameIdentity(experience.CreatedBy, user.ID) {
		return models.NewForbiddenError("You can only delete your own experiences")
	}

	seen := make(map[string]struct{}, len(experience.Images))
	for _, ref := range experience.Images {
		if _, dup := seen[ref]; dup || ref == "" {
			continue
		}
		seen[ref] = struct{}{}
		s.releaseImage(ctx, experience.ID, ref)
	}

	if err := s.repo.Delete(ctx, experience.ID); err != nil {
		return models.NewInternalError(err)
	}
	s.logger.InfoContext(ctx, "experience deleted",
		slog.String("experience_id", experience.ID),
		slog.Int("images", len(seen)),
	)
	return nil
}

func (s *ExperienceService) releaseImage(ctx context.Context, experienceID, ref string) {
	refs, err := s.repo.CountImageReferences(ctx, ref, experienceID)
	if err != nil {
		s.logger.WarnContext(ctx, "could not count image references, keeping asset",
			slog.String("ref", ref),
			slog.String("error", err.Error()),
		)
		return
	}
	if refs > 0 {
		s.logger.InfoContext(ctx, "image still referenced, keeping asset",
			slog.String("ref", ref),
			slog.Int64("references", refs),
		)
		return
	}
	if s.assets != nil {
		s.assets.Delete(ctx, ref)
	}
}

func (s *ExperienceService) fetch(ctx context.Context, id string) (*models.Experience, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, models.NewNotFoundError("Experience")
	}
	experience, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return nil, err
		}
		return nil, models.NewInternalError(err)
	}
	return experience, nil
}

// normalize trims and validates an experience in place, filling location names from the hierarchy.
func (s *ExperienceService) normalize(e *models.Experience) error {
	e.Title = strings.TrimSpace(e.Title)
	e.Description = strings.TrimSpace(e.Description)
	e.ProvinceID = strings.TrimSpace(e.ProvinceID)
	e.ProvinceName = strings.TrimSpace(e.ProvinceName)
	e.DistrictID = strings.TrimSpace(e.DistrictID)
	e.DistrictName = strings.TrimSpace(e.DistrictName)
	e.CityName = strings.TrimSpace(e.CityName)

	switch {
	case e.Title == "":
		return models.NewValidationError("Title is required")
	case e.Description == "":
		return models.NewValidationError("Description is required")
	case e.ProvinceID == "":
		return models.NewValidationError("Province is required")
	case e.DistrictID == "":
		return models.NewValidationError("District is required")
	case e.CityName == "":
		return models.NewValidationError("City is required")
	}

	if utf8.RuneCountInString(e.Title) > maxTitleLength {
		return models.NewValidationError("Title must be at most 200 characters")
	}
	if utf8.RuneCountInString(e.Description) > maxDescriptionLength {
		return models.NewValidationError("Description must be at most 20000 characters")
	}
	if utf8.RuneCountInString(e.CityName) > maxLocationLength {
		return models.NewValidationError("City must be at most 100 characters")
	}

	province, provinceKnown := s.locations.Province(e.ProvinceID)
	district, districtKnown := s.locations.District(e.DistrictID)
	if provinceKnown && districtKnown && district.ProvinceID != province.ID {
		return models.NewValidationError("District does not belong to the selected province")
	}
	if e.ProvinceName == "" && provinceKnown {
		e.ProvinceName = province.Name
	}
	if e.DistrictName == "" && districtKnown {
		e.DistrictName = district.Name
	}
	if e.ProvinceName == "" {
		return models.NewValidationError("Province name is required")
	}
	if e.DistrictName == "" {
		return models.NewValidationError("District name is required")
	}

	images := make(datatypes.JSONSlice[string], 0, len(e.Images))
	for _, ref := range e.Images {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		if len(ref) > maxImageURLLength {
			return models.NewValidationError("Image URL is too long")
		}
		images = append(images, ref)
	}
	if len(images) > maxImages {
		return models.NewValidationError("A maximum of 10 images is allowed")
	}
	e.Images = images
	return nil
}

// sameIdentity compares user ids by value: UUIDs by their parsed form, anything else case-insensitively.
func sameIdentity(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	ua, errA := uuid.Parse(a)
	ub, errB := uuid.Parse(b)
	if errA == nil && errB == nil {
		return ua == ub
	}
	return strings.EqualFold(a, b)
}

func applyString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
