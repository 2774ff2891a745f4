package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bahon/internal/service"
)

// FareHandler handles HTTP requests for the fare table.
type FareHandler struct {
	fares service.FareProvider
}

// NewFareHandler creates a new FareHandler.
func NewFareHandler(fares service.FareProvider) *FareHandler {
	return &FareHandler{fares: fares}
}

// FareResponse is the HTTP response for the fare in effect.
type FareResponse struct {
	FarePerKm string `json:"fare_per_km"`
}

// GetFare handles GET /v1/fare
func (h *FareHandler) GetFare(c *gin.Context) {
	respondJSON(c, http.StatusOK, FareResponse{
		FarePerKm: h.fares.CurrentFarePerKm(c.Request.Context()).String(),
	})
}
