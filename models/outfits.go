package models

import (
	"time"

	"github.com/lib/pq"
)

type OutfitRecommendation struct {
	JsonModel
	Name             string         `json:"name"`
	Occasion         string         `json:"occasion"`
	Season           string         `gorm:"default:all" json:"season"`
	StyleDescription *string        `gorm:"type:text" json:"style_description"`
	ColorScheme      *string        `json:"color_scheme"`
	StyleTags        pq.StringArray `gorm:"type:text[]" json:"style_tags"`
	ConfidenceScore  float64        `json:"confidence_score"` // 0..1
	IsFavorite       bool           `json:"is_favorite"`
	Rating           *int           `json:"rating"` // 1..5, user-set
	LastWorn         *time.Time     `json:"last_worn"`
	WearCount        int            `json:"wear_count"`

	Items []OutfitItem `json:"items"`

	LLMModel           *string `json:"llm_model"`
	LLMTotalTokenCount *int32  `json:"llm_total_token_count"`
}

func (o *OutfitRecommendation) MarkWorn(at time.Time) {
	o.WearCount++
	o.LastWorn = &at
}

// OutfitItem links a wardrobe item into an outfit under a category role.
type OutfitItem struct {
	JsonModel
	OutfitRecommendationID uint                 `json:"outfit_recommendation_id"`
	OutfitRecommendation   OutfitRecommendation `json:"-"`
	WardrobeItemID         uint                 `json:"wardrobe_item_id"`
	WardrobeItem           WardrobeItem         `json:"wardrobe_item"`

	Category   string  `json:"category"`
	MatchScore float64 `json:"match_score"` // 0..1
	StyleNotes *string `gorm:"type:text" json:"style_notes"`
}
