package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gustavo-camilo/dealer-copilot/internal/domain"
	"github.com/gustavo-camilo/dealer-copilot/internal/vindecode"
)

// VINHandler exposes on-demand VIN decoding for manual lookups.
type VINHandler struct {
	logger  *slog.Logger
	decoder *vindecode.Client
}

func NewVINHandler(logger *slog.Logger, decoder *vindecode.Client) *VINHandler {
	return &VINHandler{logger: logger, decoder: decoder}
}

// DecodeVIN handles POST /api/vin/decode.
func (h *VINHandler) DecodeVIN(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		VIN string `json:"vin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	decoded, err := h.decoder.Decode(ctx, req.VIN)
	if err != nil {
		h.jsonError(w, "invalid VIN - must be 17 characters from the VIN alphabet", http.StatusBadRequest)
		return
	}
	if decoded == nil {
		h.jsonError(w, "decode service unavailable", http.StatusBadGateway)
		return
	}

	h.logger.Info("vin_decoded", slog.String("vin", req.VIN))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(domain.APIResponse{Success: true, Data: map[string]interface{}{
		"vin":   req.VIN,
		"year":  decoded.Year,
		"make":  decoded.Make,
		"model": decoded.Model,
		"trim":  decoded.Trim,
	}})
}

func (h *VINHandler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(domain.APIResponse{Success: false, Error: message})
}
