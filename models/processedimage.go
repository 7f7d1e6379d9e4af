package models

import (
	"fmt"
	"slices"
	"time"

	"github.com/go-playground/validator"
)

// ProcessingStatus is the lifecycle state of a ProcessedImage row.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

func (s *ProcessingStatus) Scan(value interface{}) error {
	*s = ProcessingStatus(value.(string))
	return nil
}

func (s ProcessingStatus) Value() string {
	return string(s)
}

func (s ProcessingStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// allowed transitions; reprocess takes a terminal row back to pending
var statusTransitions = map[ProcessingStatus][]ProcessingStatus{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusCompleted:  {StatusPending},
	StatusFailed:     {StatusPending},
}

func (s ProcessingStatus) CanTransition(to ProcessingStatus) bool {
	return slices.Contains(statusTransitions[s], to)
}

var ClothingTypes = []string{
	"jacket", "shirt", "tshirt", "pants", "dress", "sweater",
	"hoodie", "coat", "blouse", "skirt", "shorts", "shoes", "other",
}

func IsValidClothingType(clothingType string) bool {
	return slices.Contains(ClothingTypes, clothingType)
}

func ValidateClothingType(fl validator.FieldLevel) bool {
	return IsValidClothingType(fl.Field().String())
}

type ProcessedImage struct {
	JsonModel
	ClothingType      string           `json:"clothing_type"` // e.g., shirt, pants, dress
	OriginalImageURL  string           `json:"original_image_url"`
	ProcessedImageURL *string          `json:"processed_image_url"`
	Status            ProcessingStatus `gorm:"default:pending" json:"status"`
	ProcessingPrompt  *string          `gorm:"type:text" json:"processing_prompt"`
	AnalysisResult    *string          `gorm:"type:text" json:"analysis_result"`
	ErrorMessage      *string          `json:"error_message"`
	ProcessedAt       *time.Time       `json:"processed_at"`
	RemoteResponseID  *string          `json:"remote_response_id"`

	LLMModel              *string `json:"llm_model"`
	LLMInputTokenCount    *int32  `json:"llm_input_token_count"`
	LLMOutputTokenCount   *int32  `json:"llm_output_token_count"`
	LLMThoughtsTokenCount *int32  `json:"llm_thoughts_token_count"`
	LLMTotalTokenCount    *int32  `json:"llm_total_token_count"`
	ProcessRetryTimes     int     `json:"process_retry_times"`
}

// TransitionTo moves the row to the given status, rejecting anything the
// lifecycle does not allow. Terminal bookkeeping fields are kept in sync so
// that processed_at/error_message are only ever set on their matching status.
func (p *ProcessedImage) TransitionTo(to ProcessingStatus) error {
	if !p.Status.CanTransition(to) {
		return fmt.Errorf("invalid status transition %s -> %s for image %v", p.Status, to, p.ID)
	}
	p.Status = to
	switch to {
	case StatusPending:
		p.ErrorMessage = nil
		p.ProcessedAt = nil
		p.ProcessedImageURL = nil
	case StatusCompleted:
		now := time.Now().UTC()
		p.ProcessedAt = &now
		p.ErrorMessage = nil
	}
	return nil
}
