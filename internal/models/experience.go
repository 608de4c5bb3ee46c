package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Experience is a traveller's post about a place in Sri Lanka.
type Experience struct {
	ID            string                      `gorm:"type:varchar(36);primaryKey" json:"id"`
	Title         string                      `gorm:"size:200;not null" json:"title"`
	Description   string                      `gorm:"type:text;not null" json:"description"`
	ProvinceID    string                      `gorm:"size:20;not null;index" json:"provinceId"`
	ProvinceName  string                      `gorm:"size:100;not null" json:"provinceName"`
	DistrictID    string                      `gorm:"size:20;not null;index" json:"districtId"`
	DistrictName  string                      `gorm:"size:100;not null" json:"districtName"`
	CityName      string                      `gorm:"size:100;not null;index" json:"cityName"`
	Images        datatypes.JSONSlice[string] `json:"images"`
	CreatedBy     string                      `gorm:"type:varchar(36);not null;index" json:"createdBy"`
	CreatedByName string                      `gorm:"size:100;not null" json:"createdByName"`
	CreatedAt     time.Time                   `gorm:"index" json:"createdAt"`
	UpdatedAt     time.Time                   `json:"updatedAt"`
}

// BeforeCreate assigns a UUID and makes sure images serialize as an array.
func (e *Experience) BeforeCreate(_ *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Images == nil {
		e.Images = datatypes.JSONSlice[string]{}
	}
	return nil
}

// ExperienceFilter is an equality filter for listing experiences. Empty fields are ignored.
type ExperienceFilter struct {
	ProvinceID string
	DistrictID string
	CityName   string
}
