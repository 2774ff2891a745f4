package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"bahon/internal/domain"
	"bahon/internal/service"
)

// VehicleHandler handles HTTP requests for the vehicle's ledger and card reader.
type VehicleHandler struct {
	ledgerService *service.LedgerService
	scanProcessor *service.ScanProcessor
}

// NewVehicleHandler creates a new VehicleHandler.
func NewVehicleHandler(ledgerService *service.LedgerService, scanProcessor *service.ScanProcessor) *VehicleHandler {
	return &VehicleHandler{
		ledgerService: ledgerService,
		scanProcessor: scanProcessor,
	}
}

// AppendLocationRequest is the HTTP request body for a GPS sample.
type AppendLocationRequest struct {
	Lat        *float64   `json:"lat"`
	Lon        *float64   `json:"lon"`
	ObservedAt *time.Time `json:"observed_at,omitempty"`
}

// LocationResponse is the HTTP response for a ledger sample.
type LocationResponse struct {
	VehicleID              string  `json:"vehicle_id"`
	SequenceNo             uint64  `json:"sequence_no"`
	Lat                    float64 `json:"lat"`
	Lon                    float64 `json:"lon"`
	CapturedAt             string  `json:"captured_at"`
	DistanceFromPreviousKm float64 `json:"distance_from_previous_km"`
	CumulativeDistanceKm   float64 `json:"cumulative_distance_km"`
}

// ScanRequest is the HTTP request body for a card scan.
type ScanRequest struct {
	CardID     string     `json:"card_id"`
	ObservedAt *time.Time `json:"observed_at,omitempty"`
}

// ScanResponse is the HTTP response for a processed card scan.
type ScanResponse struct {
	Direction                 string           `json:"direction"`
	RiderID                   string           `json:"rider_id"`
	EntrySequenceNo           uint64           `json:"entry_sequence_no"`
	EntryCumulativeDistanceKm float64          `json:"entry_cumulative_distance_km"`
	Journey                   *JourneyResponse `json:"journey,omitempty"`
	Account                   *AccountResponse `json:"account,omitempty"`
	MonthlyReset              bool             `json:"monthly_reset,omitempty"`
	BonusGranted              bool             `json:"bonus_granted,omitempty"`
}

// AppendLocation handles POST /v1/vehicles/:id/locations
func (h *VehicleHandler) AppendLocation(c *gin.Context) {
	var req AppendLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Lat == nil || req.Lon == nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	appendReq := service.AppendSampleRequest{
		VehicleID: c.Param("id"),
		Lat:       *req.Lat,
		Lon:       *req.Lon,
	}
	if req.ObservedAt != nil {
		appendReq.ObservedAt = *req.ObservedAt
	}

	sample, err := h.ledgerService.AppendSample(c.Request.Context(), appendReq)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toLocationResponse(sample))
}

// GetLatestLocation handles GET /v1/vehicles/:id/locations/latest
func (h *VehicleHandler) GetLatestLocation(c *gin.Context) {
	sample, err := h.ledgerService.LatestSample(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toLocationResponse(sample))
}

// GetLocation handles GET /v1/vehicles/:id/locations/:seq
func (h *VehicleHandler) GetLocation(c *gin.Context) {
	seq, err := strconv.ParseUint(c.Param("seq"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid sequence number"})
		return
	}

	sample, err := h.ledgerService.SampleAt(c.Request.Context(), c.Param("id"), seq)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toLocationResponse(sample))
}

// ListLocations handles GET /v1/vehicles/:id/locations?from=&to=
func (h *VehicleHandler) ListLocations(c *gin.Context) {
	from, errFrom := strconv.ParseUint(c.Query("from"), 10, 64)
	to, errTo := strconv.ParseUint(c.Query("to"), 10, 64)
	if errFrom != nil || errTo != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "from and to must be sequence numbers"})
		return
	}
	samples, err := h.ledgerService.ListSamples(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]LocationResponse, 0, len(samples))
	for _, sample := range samples {
		response = append(response, toLocationResponse(sample))
	}

	respondJSON(c, http.StatusOK, response)
}

// Scan handles POST /v1/vehicles/:id/scans
func (h *VehicleHandler) Scan(c *gin.Context) {
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	event := domain.ScanEvent{
		VehicleID: c.Param("id"),
		CardID:    req.CardID,
	}
	if req.ObservedAt != nil {
		event.ObservedAt = *req.ObservedAt
	}

	outcome, err := h.scanProcessor.ProcessScan(c.Request.Context(), event)
	if err != nil {
		respondError(c, err)
		return
	}

	response := ScanResponse{
		Direction:                 string(outcome.Direction),
		RiderID:                   outcome.RiderID,
		EntrySequenceNo:           outcome.EntrySequenceNo,
		EntryCumulativeDistanceKm: outcome.EntryCumulativeDistanceKm,
	}
	if outcome.Journey != nil {
		journey := toJourneyResponse(outcome.Journey)
		response.Journey = &journey
	}
	if outcome.Account != nil {
		account := toAccountResponse(outcome.Account)
		response.Account = &account
	}
	if outcome.Application != nil {
		response.MonthlyReset = outcome.Application.MonthlyReset
		response.BonusGranted = outcome.Application.BonusGranted
	}

	respondJSON(c, http.StatusOK, response)
}

func toLocationResponse(sample *domain.LocationSample) LocationResponse {
	return LocationResponse{
		VehicleID:              sample.VehicleID,
		SequenceNo:             sample.SequenceNo,
		Lat:                    sample.Lat,
		Lon:                    sample.Lon,
		CapturedAt:             sample.CapturedAt.Format(time.RFC3339Nano),
		DistanceFromPreviousKm: sample.DistanceFromPreviousKm,
		CumulativeDistanceKm:   sample.CumulativeDistanceKm,
	}
}
