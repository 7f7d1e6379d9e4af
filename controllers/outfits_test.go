package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"wardrobeapi/dbhelper"
	"wardrobeapi/models"
	"wardrobeapi/test"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOutfitOk(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{})

	reqBody := CreateOutfitIn{
		Name:            "Weekend Layers",
		Occasion:        "casual",
		Season:          "fall",
		ConfidenceScore: 0.8,
	}
	req := test.NewJSONRequest("POST", "/api/outfit-recommendations", reqBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var response models.OutfitRecommendation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "Weekend Layers", response.Name)
	assert.Equal(t, 0.8, response.ConfidenceScore)
}

func TestRateOutfitBounds(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{})

	outfit := test.FakeOutfit(db, "Weekend Layers", "casual", "all", 0.8)

	for _, rating := range []int{0, 6, -1} {
		req := test.NewJSONRequest("POST", fmt.Sprintf("/api/outfit-recommendations/%v/rate", outfit.ID), RateOutfitIn{Rating: rating})
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "rating %d should be rejected", rating)
	}

	req := test.NewJSONRequest("POST", fmt.Sprintf("/api/outfit-recommendations/%v/rate", outfit.ID), RateOutfitIn{Rating: 4})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var saved models.OutfitRecommendation
	db.First(&saved, outfit.ID)
	require.NotNil(t, saved.Rating)
	assert.Equal(t, 4, *saved.Rating)
}

func TestMarkWornBumpsMemberItems(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{})

	top := test.FakeWardrobeItem(db, "Blue Tee", "top", "casual", "all")
	bottom := test.FakeWardrobeItem(db, "Chinos", "bottom", "casual", "all")
	outfit := test.FakeOutfit(db, "Weekend Layers", "casual", "all", 0.8, top, bottom)

	req := test.NewJSONRequest("POST", fmt.Sprintf("/api/outfit-recommendations/%v/mark_worn", outfit.ID), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var savedOutfit models.OutfitRecommendation
	db.First(&savedOutfit, outfit.ID)
	assert.Equal(t, 1, savedOutfit.WearCount)
	assert.NotNil(t, savedOutfit.LastWorn)

	var savedTop, savedBottom models.WardrobeItem
	db.First(&savedTop, top.ID)
	db.First(&savedBottom, bottom.ID)
	assert.Equal(t, 1, savedTop.WearCount)
	assert.Equal(t, 1, savedBottom.WearCount)
}

func TestRecommendOrderingAndLimit(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{})

	for i := 0; i < 12; i++ {
		test.FakeOutfit(db, fmt.Sprintf("Outfit %d", i), "casual", "all", float64(i)*0.05)
	}
	best := test.FakeOutfit(db, "Best Match", "casual", "all", 0.99)
	test.FakeOutfit(db, "Formal Dinner", "formal", "winter", 0.95)

	req := test.NewJSONRequest("GET", "/api/outfit-recommendations/recommend?occasion=casual", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var outfits []models.OutfitRecommendation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outfits))
	require.Len(t, outfits, 10)
	assert.Equal(t, best.ID, outfits[0].ID)
	for i := 1; i < len(outfits); i++ {
		assert.LessOrEqual(t, outfits[i].ConfidenceScore, outfits[i-1].ConfidenceScore)
	}
}

func TestRecommendSeasonKeepsAllSeason(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{})

	test.FakeOutfit(db, "Summer Whites", "casual", "summer", 0.7)
	test.FakeOutfit(db, "All Rounder", "casual", "all", 0.6)
	test.FakeOutfit(db, "Winter Wool", "casual", "winter", 0.9)

	req := test.NewJSONRequest("GET", "/api/outfit-recommendations/recommend?season=summer", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var outfits []models.OutfitRecommendation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outfits))
	require.Len(t, outfits, 2)
	assert.Equal(t, "Summer Whites", outfits[0].Name)
	assert.Equal(t, "All Rounder", outfits[1].Name)
}

func TestOutfitStats(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{})

	rated := test.FakeOutfit(db, "Weekend Layers", "casual", "all", 0.8)
	rating := 4
	rated.Rating = &rating
	rated.IsFavorite = true
	db.Save(rated)
	test.FakeOutfit(db, "Formal Dinner", "formal", "winter", 0.95)

	req := test.NewJSONRequest("GET", "/api/outfit-recommendations/stats", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats models.OutfitStatsOut
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.Favorites)
	assert.Equal(t, int64(1), stats.Rated)
	assert.InDelta(t, 4.0, stats.AverageRating, 0.01)
	assert.Equal(t, int64(1), stats.ByOccasion["casual"])
	assert.Equal(t, int64(1), stats.ByOccasion["formal"])
}

func TestGenerateOutfitsWithoutQueue(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{})

	req := test.NewJSONRequest("POST", "/api/outfit-recommendations/generate", GenerateOutfitsIn{Occasion: "casual"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDeleteOutfitRemovesItems(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{})

	top := test.FakeWardrobeItem(db, "Blue Tee", "top", "casual", "all")
	outfit := test.FakeOutfit(db, "Weekend Layers", "casual", "all", 0.8, top)

	req := test.NewJSONRequest("DELETE", fmt.Sprintf("/api/outfit-recommendations/%v", outfit.ID), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	var outfitCount, itemCount int64
	db.Model(&models.OutfitRecommendation{}).Count(&outfitCount)
	db.Model(&models.OutfitItem{}).Count(&itemCount)
	assert.Equal(t, int64(0), outfitCount)
	assert.Equal(t, int64(0), itemCount)
}

func TestCreateOutfitItemOk(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{})

	top := test.FakeWardrobeItem(db, "Blue Tee", "top", "casual", "all")
	outfit := test.FakeOutfit(db, "Weekend Layers", "casual", "all", 0.8)

	reqBody := CreateOutfitItemIn{
		OutfitRecommendationID: UintPointer(outfit.ID),
		WardrobeItemID:         UintPointer(top.ID),
		Category:               "top",
		MatchScore:             0.9,
	}
	req := test.NewJSONRequest("POST", "/api/outfit-items", reqBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var response models.OutfitItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, outfit.ID, response.OutfitRecommendationID)
	assert.Equal(t, top.ID, response.WardrobeItemID)
}

func TestListOutfitItemsByOutfit(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{})

	top := test.FakeWardrobeItem(db, "Blue Tee", "top", "casual", "all")
	bottom := test.FakeWardrobeItem(db, "Chinos", "bottom", "casual", "all")
	outfit := test.FakeOutfit(db, "Weekend Layers", "casual", "all", 0.8, top, bottom)
	test.FakeOutfit(db, "Other Look", "casual", "all", 0.5, top)

	req := test.NewJSONRequest("GET", fmt.Sprintf("/api/outfit-items?outfit=%v", outfit.ID), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var items []models.OutfitItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	assert.Len(t, items, 2)
}
