package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/obstetric-locator/internal/domain/entities"
	"github.com/zatekoja/obstetric-locator/pkg/textutil"
)

// EstablishmentReader looks up single records of the canonical table.
type EstablishmentReader interface {
	GetEstablishment(ctx context.Context, cnesID string) (*entities.Facility, error)
	GetEvidence(ctx context.Context, cnesID string) ([]entities.Evidence, error)
}

// EstablishmentHandler serves the detail endpoints.
type EstablishmentHandler struct {
	reader EstablishmentReader
}

// NewEstablishmentHandler creates a new establishment handler.
func NewEstablishmentHandler(reader EstablishmentReader) *EstablishmentHandler {
	return &EstablishmentHandler{reader: reader}
}

// EvidenceResponse is the body of the evidence endpoint.
type EvidenceResponse struct {
	CNESID   string              `json:"cnes_id"`
	Evidence []entities.Evidence `json:"evidence"`
}

// GetEstablishment handles GET /establishments/{cnes_id}
func (h *EstablishmentHandler) GetEstablishment(w http.ResponseWriter, r *http.Request) {
	facility, err := h.reader.GetEstablishment(r.Context(), r.PathValue("cnes_id"))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, facility)
}

// GetEvidence handles GET /establishments/{cnes_id}/evidence
func (h *EstablishmentHandler) GetEvidence(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("cnes_id")
	evidence, err := h.reader.GetEvidence(r.Context(), id)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, EvidenceResponse{CNESID: textutil.PadCNES(id), Evidence: evidence})
}
