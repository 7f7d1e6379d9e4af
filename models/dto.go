package models

// ProcessingStatusOut is the shape returned by the status polling endpoint.
type ProcessingStatusOut struct {
	Status            string  `json:"status"`
	IsComplete        bool    `json:"is_complete"`
	ErrorMessage      *string `json:"error_message"`
	ProcessedImageURL *string `json:"processed_image_url"`
}

type ProcessedImageStatsOut struct {
	Total       int64            `json:"total"`
	Completed   int64            `json:"completed"`
	Failed      int64            `json:"failed"`
	Pending     int64            `json:"pending"`
	Processing  int64            `json:"processing"`
	SuccessRate float64          `json:"success_rate"`
	QueueDepth  int64            `json:"queue_depth"`
	ByType      map[string]int64 `json:"by_type"`
}

type OutfitStatsOut struct {
	Total         int64            `json:"total"`
	Favorites     int64            `json:"favorites"`
	Rated         int64            `json:"rated"`
	AverageRating float64          `json:"average_rating"`
	ByOccasion    map[string]int64 `json:"by_occasion"`
}
