package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"bahon/internal/domain"
	"bahon/internal/service"
)

const defaultJourneyLimit = 50

// RiderHandler handles HTTP requests for rider accounts and journeys.
type RiderHandler struct {
	identityService *service.IdentityService
	journeyService  *service.JourneyService
	boardingService *service.BoardingService
}

// NewRiderHandler creates a new RiderHandler.
func NewRiderHandler(identityService *service.IdentityService, journeyService *service.JourneyService, boardingService *service.BoardingService) *RiderHandler {
	return &RiderHandler{
		identityService: identityService,
		journeyService:  journeyService,
		boardingService: boardingService,
	}
}

// AccountResponse is the HTTP response for a rider account.
// Money values are decimal strings.
type AccountResponse struct {
	RiderID                string `json:"rider_id"`
	CardID                 string `json:"card_id"`
	Name                   string `json:"name"`
	Balance                string `json:"balance"`
	Bonus                  string `json:"bonus"`
	TotalSpendCurrentMonth string `json:"total_spend_current_month"`
	CountBonus             int    `json:"count_bonus"`
	LastResetMonth         string `json:"last_reset_month,omitempty"`
	OnJourney              bool   `json:"on_journey"`
	BoardingState          string `json:"boarding_state"`

	Boarding *BoardingResponse `json:"boarding,omitempty"`
}

// BoardingResponse describes the entry of an open journey.
type BoardingResponse struct {
	VehicleID       string  `json:"vehicle_id"`
	EntrySequenceNo uint64  `json:"entry_sequence_no"`
	EntryLat        float64 `json:"entry_lat"`
	EntryLon        float64 `json:"entry_lon"`
	EntryTime       string  `json:"entry_time"`
}

// JourneyResponse is the HTTP response for a completed journey.
type JourneyResponse struct {
	ID                  string         `json:"id"`
	RiderID             string         `json:"rider_id"`
	VehicleID           string         `json:"vehicle_id"`
	EntryTime           string         `json:"entry_time"`
	ExitTime            string         `json:"exit_time"`
	EntryPointName      string         `json:"entry_point_name"`
	ExitPointName       string         `json:"exit_point_name"`
	EntrySequenceNo     uint64         `json:"entry_sequence_no"`
	ExitSequenceNo      uint64         `json:"exit_sequence_no"`
	DistanceTravelledKm float64        `json:"distance_travelled_km"`
	Fare                string         `json:"fare"`
	FarePerKm           string         `json:"fare_per_km"`
	TotalTimeMinutes    float64        `json:"total_time_minutes"`
	Path                []domain.Point `json:"path"`
}

// GetAccount handles GET /v1/riders/:id/account
func (h *RiderHandler) GetAccount(c *gin.Context) {
	account, err := h.identityService.GetAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	record, err := h.boardingService.ActiveBoarding(c.Request.Context(), account.RiderID)
	if err != nil {
		respondError(c, err)
		return
	}

	response := toAccountResponse(account)
	if record != nil {
		response.Boarding = &BoardingResponse{
			VehicleID:       record.VehicleID,
			EntrySequenceNo: record.EntrySequenceNo,
			EntryLat:        record.EntryLat,
			EntryLon:        record.EntryLon,
			EntryTime:       record.EntryTime.Format(time.RFC3339),
		}
	}

	respondJSON(c, http.StatusOK, response)
}

// ListJourneys handles GET /v1/riders/:id/journeys?limit=
func (h *RiderHandler) ListJourneys(c *gin.Context) {
	limit := defaultJourneyLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	journeys, err := h.journeyService.ListJourneys(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]JourneyResponse, 0, len(journeys))
	for _, j := range journeys {
		response = append(response, toJourneyResponse(j))
	}

	respondJSON(c, http.StatusOK, response)
}

func toAccountResponse(a *domain.Account) AccountResponse {
	return AccountResponse{
		RiderID:                a.RiderID,
		CardID:                 a.CardID,
		Name:                   a.Name,
		Balance:                a.Balance.String(),
		Bonus:                  a.Bonus.String(),
		TotalSpendCurrentMonth: a.TotalSpendCurrentMonth.String(),
		CountBonus:             a.CountBonus,
		LastResetMonth:         a.LastResetMonth,
		OnJourney:              a.OnJourney,
		BoardingState:          string(a.BoardingState()),
	}
}

func toJourneyResponse(j *domain.JourneyRecord) JourneyResponse {
	path := j.Path
	if path == nil {
		path = []domain.Point{}
	}

	return JourneyResponse{
		ID:                  j.ID,
		RiderID:             j.RiderID,
		VehicleID:           j.VehicleID,
		EntryTime:           j.EntryTime.Format(time.RFC3339),
		ExitTime:            j.ExitTime.Format(time.RFC3339),
		EntryPointName:      j.EntryPointName,
		ExitPointName:       j.ExitPointName,
		EntrySequenceNo:     j.EntrySequenceNo,
		ExitSequenceNo:      j.ExitSequenceNo,
		DistanceTravelledKm: j.DistanceTravelledKm,
		Fare:                j.Fare.String(),
		FarePerKm:           j.FarePerKm.String(),
		TotalTimeMinutes:    j.TotalTimeMinutes,
		Path:                path,
	}
}
