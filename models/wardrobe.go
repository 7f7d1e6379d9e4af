package models

import (
	"slices"
	"time"

	"github.com/go-playground/validator"
	"github.com/lib/pq"
)

var WardrobeCategories = []string{"top", "bottom", "shoes", "accessories", "outerwear", "dress"}

var WardrobeColors = []string{
	"black", "white", "gray", "brown", "beige", "red", "orange", "yellow",
	"green", "blue", "purple", "pink", "multicolor", "other",
}

var Occasions = []string{"casual", "formal", "business", "party", "sport", "evening", "weekend", "travel"}

var Seasons = []string{"spring", "summer", "fall", "winter", "all"}

func ValidateWardrobeCategory(fl validator.FieldLevel) bool {
	return slices.Contains(WardrobeCategories, fl.Field().String())
}

func ValidateOccasion(fl validator.FieldLevel) bool {
	return slices.Contains(Occasions, fl.Field().String())
}

func ValidateSeason(fl validator.FieldLevel) bool {
	return slices.Contains(Seasons, fl.Field().String())
}

// garment label to wardrobe category; "other" lands in accessories
var clothingTypeCategory = map[string]string{
	"shirt":   "top",
	"tshirt":  "top",
	"sweater": "top",
	"hoodie":  "top",
	"blouse":  "top",
	"jacket":  "outerwear",
	"coat":    "outerwear",
	"pants":   "bottom",
	"skirt":   "bottom",
	"shorts":  "bottom",
	"dress":   "dress",
	"shoes":   "shoes",
}

func CategoryForClothingType(clothingType string) string {
	if category, ok := clothingTypeCategory[clothingType]; ok {
		return category
	}
	return "accessories"
}

type WardrobeItem struct {
	JsonModel
	ProcessedImageID *uint           `json:"processed_image_id"`
	ProcessedImage   *ProcessedImage `json:"-"`

	Name             string         `json:"name"`
	Category         string         `json:"category"` // top, bottom, shoes, accessories, outerwear, dress
	Color            string         `json:"color"`
	Brand            *string        `json:"brand"`
	Size             *string        `json:"size"`
	Material         *string        `json:"material"`
	Occasion         string         `gorm:"default:casual" json:"occasion"`
	Season           string         `gorm:"default:all" json:"season"`
	StyleDescription *string        `gorm:"type:text" json:"style_description"`
	ColorPalette     pq.StringArray `gorm:"type:text[]" json:"color_palette"`
	StyleTags        pq.StringArray `gorm:"type:text[]" json:"style_tags"`
	IsFavorite       bool           `json:"is_favorite"`
	LastWorn         *time.Time     `json:"last_worn"`
	WearCount        int            `json:"wear_count"`
}

// MarkWorn bumps the wear counter and stamps the wear time.
func (w *WardrobeItem) MarkWorn(at time.Time) {
	w.WearCount++
	w.LastWorn = &at
}
