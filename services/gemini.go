package services

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"
)

// LLMModelName selects the Gemini model for a remote call.
type LLMModelName int32

const (
	Pro25 LLMModelName = iota
	Flash25
	FlashLite25
	Flash20
	Flash25Image
)

func (t LLMModelName) String() string {
	switch t {
	case Pro25:
		return "gemini-2.5-pro"
	case Flash25:
		return "gemini-2.5-flash"
	case FlashLite25:
		return "gemini-2.5-flash-lite-preview-06-17"
	case Flash25Image:
		return "gemini-2.5-flash-image-preview"
	case Flash20:
		return "gemini-2.0-flash"
	default:
		return "gemini-2.0-flash"
	}
}

func floatPointer(f float32) *float32 {
	return &f
}

func Int32Pointer(i int32) *int32 {
	return &i
}

type LLMResponse struct {
	Response           string   `json:"response"`
	Images             [][]byte `json:"images,omitempty"`
	InputTokenCount    int32    `json:"input_token_count"`
	Thoughts           string   `json:"thoughts"`
	ThoughtsTokenCount int32    `json:"thoughts_token_count"`
	OutputTokenCount   int32    `json:"output_token_count"`
	TotalTokenCount    int32    `json:"total_token_count"`
	ResponseID         string   `json:"response_id"`
}

// GarmentAnalysis is the structured shape the analysis model returns.
type GarmentAnalysis struct {
	Type     string `json:"type"`
	Color    string `json:"color"`
	Style    string `json:"style"`
	Material string `json:"material"`
	Pattern  string `json:"pattern"`
	Occasion string `json:"occasion"`
	Season   string `json:"season"`
}

type OutfitIdea struct {
	Name             string  `json:"name"`
	Occasion         string  `json:"occasion"`
	Season           string  `json:"season"`
	StyleDescription string  `json:"style_description"`
	ColorScheme      string  `json:"color_scheme"`
	ConfidenceScore  float64 `json:"confidence_score"`
	Items            []struct {
		WardrobeItemID uint    `json:"wardrobe_item_id"`
		Category       string  `json:"category"`
		MatchScore     float64 `json:"match_score"`
		StyleNotes     string  `json:"style_notes"`
	} `json:"items"`
}

type OutfitIdeasResponse struct {
	Outfits []OutfitIdea `json:"outfits"`
}

type LLMStyleProcessor interface {
	AnalyzeGarment(imagePath string, clothingType string, modelName LLMModelName) (*LLMResponse, error)
	GenerateProductPhoto(imagePath string, clothingType string, modelName LLMModelName) (*LLMResponse, error)
	GenerateOutfits(inventoryJSON string, occasion string, season string, modelName LLMModelName) (*LLMResponse, error)
}

type GoogleLLMStyleProcessor struct{}

type ResponseWithThoughts struct {
	Thoughts string `json:"thoughts"`
	Text     string `json:"text"`
}

func newGenaiClient(ctx context.Context) (*genai.Client, error) {
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  os.Getenv("GOOGLE_API_KEY"),
		Backend: genai.BackendGeminiAPI,
	})
}

func tryUploadGoogleStorage(ctx context.Context, client *genai.Client, filePath string, newName *string) (*genai.File, error) {
	var genFile *genai.File
	var err error
	maxUploadTimes := 3
	for i := range maxUploadTimes {
		config := &genai.UploadFileConfig{}
		if newName != nil {
			config = &genai.UploadFileConfig{
				Name: *newName,
			}
		}

		genFile, err = client.Files.UploadFromPath(ctx, filePath, config)
		if err == nil {
			fmt.Println("File uploaded successfully:", filePath, "Attempt:", i+1)
			return genFile, nil
		}
		fmt.Printf("Error uploading file %s, attempt %d: %v\n", filePath, i+1, err)
	}
	return nil, fmt.Errorf("failed to upload file to google storage after %d attempts: %s", maxUploadTimes, filePath)
}

func GetAllInlineImages(result *genai.GenerateContentResponse) ([][]byte, error) {
	if result == nil {
		return nil, fmt.Errorf("nil response")
	}

	var allImageData [][]byte

	for _, cand := range result.Candidates {
		for _, rating := range cand.SafetyRatings {
			if rating.Blocked {
				return nil, fmt.Errorf("content blocked by safety setting: %s", rating.Category)
			}
		}
		if cand.Content == nil || len(cand.Content.Parts) == 0 {
			continue
		}

		for _, part := range cand.Content.Parts {
			inlineData := part.InlineData
			if inlineData != nil {
				if strings.HasPrefix(inlineData.MIMEType, "image/") && len(inlineData.Data) > 0 {
					allImageData = append(allImageData, inlineData.Data)
				}
			}
		}
	}

	if len(allImageData) == 0 {
		return nil, nil
	}

	return allImageData, nil
}

func GetFirstCandidateTextWithThoughts(result *genai.GenerateContentResponse) (*ResponseWithThoughts, error) {
	var thinkingContent string
	for _, c := range result.Candidates {
		fmt.Println("Finish reason: ", c.FinishReason, " Finish message: ", c.FinishMessage)

		if len(c.SafetyRatings) > 0 {
			fmt.Println("[Safety] Safety ratings present:", len(c.SafetyRatings))
			for _, rating := range c.SafetyRatings {
				fmt.Println("[Safety] rating:", rating.Category, "Score:", rating.Probability, "Severity score:", rating.SeverityScore, " Blocked:", rating.Blocked)
				if rating.Blocked {
					return nil, fmt.Errorf("content violation: couldn't analyze the image, because it contains %s", rating.Category)
				}
			}
		}
		for _, part := range c.Content.Parts {
			if part.Thought && part.Text != "" {
				thinkingContent = part.Text
				continue
			}
		}
	}
	return &ResponseWithThoughts{
		Thoughts: thinkingContent,
		Text:     result.Text(),
	}, nil
}

func buildLLMResponse(result *genai.GenerateContentResponse, images [][]byte, text *ResponseWithThoughts) *LLMResponse {
	response := &LLMResponse{
		Response:   text.Text,
		Images:     images,
		Thoughts:   text.Thoughts,
		ResponseID: result.ResponseID,
	}
	if result.UsageMetadata != nil {
		response.InputTokenCount = result.UsageMetadata.PromptTokenCount
		response.ThoughtsTokenCount = result.UsageMetadata.ThoughtsTokenCount
		response.OutputTokenCount = result.UsageMetadata.CandidatesTokenCount
		response.TotalTokenCount = result.UsageMetadata.TotalTokenCount
		fmt.Println("Input token count:", response.InputTokenCount)
		fmt.Println("Output token count:", response.OutputTokenCount)
		fmt.Println("Thoughts token count:", response.ThoughtsTokenCount)
		fmt.Println("Total token count:", response.TotalTokenCount)
	} else {
		fmt.Println("UsageMetadata is nil!")
	}
	return response
}

// AnalyzeGarment sends the clothing image with a type hint and expects the
// fixed-shape attribute JSON back.
func (GoogleLLMStyleProcessor) AnalyzeGarment(imagePath string, clothingType string, modelName LLMModelName) (*LLMResponse, error) {
	ctx := context.Background()
	client, err := newGenaiClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("error creating genai client: %v", err)
	}

	genFile, err := tryUploadGoogleStorage(ctx, client, imagePath, nil)
	if err != nil {
		fmt.Println("Error uploading garment image:", imagePath, err)
		return nil, fmt.Errorf("error uploading file %s: %v", imagePath, err)
	}

	parts := []*genai.Part{
		{
			FileData: &genai.FileData{
				FileURI:  genFile.URI,
				MIMEType: genFile.MIMEType,
			},
		},
		{
			Text: fmt.Sprintf("Analyze this clothing item. The user labeled it as %q. Describe the garment attributes precisely based on what is visible in the image.", clothingType),
		},
	}

	result, err := client.Models.GenerateContent(ctx, modelName.String(), []*genai.Content{{Parts: parts}}, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		CandidateCount:   1,
		MaxOutputTokens:  8000,
		Temperature:      floatPointer(0.4),
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{
				{Text: `You are a fashion expert analyzing clothing photos. Return JSON with the fields: type (one of: jacket, shirt, tshirt, pants, dress, sweater, hoodie, coat, blouse, skirt, shorts, shoes, other), color (one of: black, white, gray, brown, beige, red, orange, yellow, green, blue, purple, pink, multicolor, other), style (short free text), material (short free text), pattern (short free text), occasion (one of: casual, formal, business, party, sport, evening, weekend, travel), season (one of: spring, summer, fall, winter, all). Base everything strictly on the image.`},
			},
		},
		ResponseSchema: &genai.Schema{
			Type: "object",
			Properties: map[string]*genai.Schema{
				"type":     {Type: "string"},
				"color":    {Type: "string"},
				"style":    {Type: "string"},
				"material": {Type: "string"},
				"pattern":  {Type: "string"},
				"occasion": {Type: "string"},
				"season":   {Type: "string"},
			},
			Required: []string{"type", "color", "style", "material", "pattern", "occasion", "season"},
		},
	})

	if err != nil {
		fmt.Println("Error in GenerateContent:", err)
		return nil, fmt.Errorf("%v", err)
	}

	if result.PromptFeedback != nil {
		fmt.Println(result.PromptFeedback.BlockReason)
		fmt.Println(result.PromptFeedback.BlockReasonMessage)
		fmt.Println(result.PromptFeedback.SafetyRatings)
		return nil, fmt.Errorf("content violation: %s %s", imagePath, result.PromptFeedback.BlockReasonMessage)
	}

	llmResponseText, err := GetFirstCandidateTextWithThoughts(result)
	if err != nil {
		fmt.Println("Error getting first candidate text: ", err)
		fmt.Println(result.Candidates)
		return nil, fmt.Errorf("error getting first candidate text: %v", err)
	}

	return buildLLMResponse(result, nil, llmResponseText), nil
}

// ProductPhotoPrompt is what the generator receives alongside the original
// image. Only the labeled garment is kept, everything else is cleaned away.
func ProductPhotoPrompt(clothingType string) string {
	return fmt.Sprintf("Only process the %s in this image. Extract it and present it on a pure white background, evenly lit, centered, as a professional e-commerce product photo. Remove any person, hanger, background clutter, watermarks and shadows. Keep the garment colors, texture and proportions exactly as in the original.", clothingType)
}

// GenerateProductPhoto asks the image model to turn the original upload into
// a cleaned-up product photo; the result arrives as inline image bytes.
func (GoogleLLMStyleProcessor) GenerateProductPhoto(imagePath string, clothingType string, modelName LLMModelName) (*LLMResponse, error) {
	ctx := context.Background()
	client, err := newGenaiClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("error creating genai client: %v", err)
	}

	genFile, err := tryUploadGoogleStorage(ctx, client, imagePath, nil)
	if err != nil {
		fmt.Println("Error uploading garment image:", imagePath, err)
		return nil, fmt.Errorf("error uploading file %s: %v", imagePath, err)
	}

	parts := []*genai.Part{
		{
			FileData: &genai.FileData{
				FileURI:  genFile.URI,
				MIMEType: genFile.MIMEType,
			},
		},
		{
			Text: ProductPhotoPrompt(clothingType),
		},
	}

	result, err := client.Models.GenerateContent(ctx, modelName.String(), []*genai.Content{{Parts: parts}}, &genai.GenerateContentConfig{
		CandidateCount:  1,
		MaxOutputTokens: 50000,
		Temperature:     floatPointer(1),
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{
				{Text: `Output a single edited image of the garment on a flat, consistent, pure white background. Do not apply grayish gradients, keep all edges white. If no clothing item is detected return "NO_GARMENT" as text instead.`},
			},
		},
	})

	if err != nil {
		fmt.Println("Error in GenerateContent:", err)
		return nil, fmt.Errorf("%v", err)
	}

	if result.PromptFeedback != nil {
		fmt.Println(result.PromptFeedback.BlockReason)
		fmt.Println(result.PromptFeedback.BlockReasonMessage)
		fmt.Println(result.PromptFeedback.SafetyRatings)
		return nil, fmt.Errorf("content violation: %s %s", imagePath, result.PromptFeedback.BlockReasonMessage)
	}

	fmt.Println("Number of candidates received:", len(result.Candidates))
	llmResponseImagesBytes, err := GetAllInlineImages(result)
	if err != nil {
		fmt.Println("Error getting candidate images: ", err)
		return nil, fmt.Errorf("error getting candidate images: %v", err)
	}
	fmt.Println("Number of images extracted:", len(llmResponseImagesBytes))

	llmResponseText, err := GetFirstCandidateTextWithThoughts(result)
	if err != nil {
		fmt.Println("Error getting first candidate text: ", err)
		fmt.Println(result.Candidates)
		return nil, fmt.Errorf("error getting first candidate text: %v", err)
	}

	return buildLLMResponse(result, llmResponseImagesBytes, llmResponseText), nil
}

// GenerateOutfits composes outfit suggestions out of the serialized wardrobe
// inventory for a given occasion and season.
func (GoogleLLMStyleProcessor) GenerateOutfits(inventoryJSON string, occasion string, season string, modelName LLMModelName) (*LLMResponse, error) {
	ctx := context.Background()
	client, err := newGenaiClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("error creating genai client: %v", err)
	}

	parts := []*genai.Part{
		{
			Text: fmt.Sprintf("Wardrobe inventory as JSON:\n%s\n\nSuggest up to 5 complete outfits for occasion %q and season %q using only items from this inventory.", inventoryJSON, occasion, season),
		},
	}

	result, err := client.Models.GenerateContent(ctx, modelName.String(), []*genai.Content{{Parts: parts}}, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		CandidateCount:   1,
		MaxOutputTokens:  20000,
		Temperature:      floatPointer(0.8),
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{
				{Text: `You are a personal stylist. Return JSON: {"outfits": [{"name": string, "occasion": string, "season": string, "style_description": string, "color_scheme": string, "confidence_score": number between 0 and 1, "items": [{"wardrobe_item_id": number, "category": string, "match_score": number between 0 and 1, "style_notes": string}]}]}. Reference items strictly by the ids present in the inventory. An outfit needs at least a top+bottom pair or a dress.`},
			},
		},
	})

	if err != nil {
		fmt.Println("Error in GenerateContent:", err)
		return nil, fmt.Errorf("%v", err)
	}

	if result.PromptFeedback != nil {
		fmt.Println(result.PromptFeedback.BlockReason)
		fmt.Println(result.PromptFeedback.BlockReasonMessage)
		return nil, fmt.Errorf("content violation: %s", result.PromptFeedback.BlockReasonMessage)
	}

	llmResponseText, err := GetFirstCandidateTextWithThoughts(result)
	if err != nil {
		fmt.Println("Error getting first candidate text: ", err)
		fmt.Println(result.Candidates)
		return nil, fmt.Errorf("error getting first candidate text: %v", err)
	}

	return buildLLMResponse(result, nil, llmResponseText), nil
}
