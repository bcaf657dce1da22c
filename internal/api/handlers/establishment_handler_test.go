package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/obstetric-locator/internal/api/handlers"
	"github.com/zatekoja/obstetric-locator/internal/domain/entities"
	apperrors "github.com/zatekoja/obstetric-locator/pkg/errors"
)

type MockEstablishmentReader struct {
	mock.Mock
}

func (m *MockEstablishmentReader) GetEstablishment(ctx context.Context, cnesID string) (*entities.Facility, error) {
	args := m.Called(ctx, cnesID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Facility), args.Error(1)
}

func (m *MockEstablishmentReader) GetEvidence(ctx context.Context, cnesID string) ([]entities.Evidence, error) {
	args := m.Called(ctx, cnesID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.Evidence), args.Error(1)
}

func establishmentRequest(path, id string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.SetPathValue("cnes_id", id)
	return req
}

func TestEstablishmentHandler_GetEstablishment(t *testing.T) {
	reader := new(MockEstablishmentReader)
	handler := handlers.NewEstablishmentHandler(reader)

	reader.On("GetEstablishment", mock.Anything, "12345").Return(&entities.Facility{
		CNESID:           "0012345",
		Nome:             "Hospital Municipal",
		Esfera:           entities.EsferaPublico,
		LabelMaternidade: entities.LabelHospital,
		Convenios:        []string{},
	}, nil)

	rec := httptest.NewRecorder()
	handler.GetEstablishment(rec, establishmentRequest("/api/v1/establishments/12345", "12345"))

	require.Equal(t, http.StatusOK, rec.Code)
	var body entities.Facility
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "0012345", body.CNESID)
	assert.Equal(t, entities.LabelHospital, body.LabelMaternidade)
}

func TestEstablishmentHandler_GetEstablishment_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", apperrors.NewNotFoundError("establishment 9999999 not found"), http.StatusNotFound, "NOT_FOUND"},
		{"bad id", apperrors.NewValidationError("cnes_id must have up to 7 digits"), http.StatusBadRequest, "BAD_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := new(MockEstablishmentReader)
			handler := handlers.NewEstablishmentHandler(reader)
			reader.On("GetEstablishment", mock.Anything, "abc").Return(nil, tt.err)

			rec := httptest.NewRecorder()
			handler.GetEstablishment(rec, establishmentRequest("/api/v1/establishments/abc", "abc"))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Error.Code)
		})
	}
}

func TestEstablishmentHandler_GetEvidence(t *testing.T) {
	reader := new(MockEstablishmentReader)
	handler := handlers.NewEstablishmentHandler(reader)

	reader.On("GetEvidence", mock.Anything, "2077485").Return([]entities.Evidence{
		{Type: entities.EvidenceBeds, Code: "43", Source: "rlEstabComplementar"},
	}, nil)

	rec := httptest.NewRecorder()
	handler.GetEvidence(rec, establishmentRequest("/api/v1/establishments/2077485/evidence", "2077485"))

	require.Equal(t, http.StatusOK, rec.Code)
	var body handlers.EvidenceResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "2077485", body.CNESID)
	require.Len(t, body.Evidence, 1)
	assert.Equal(t, "43", body.Evidence[0].Code)
	reader.AssertNotCalled(t, "GetEstablishment", mock.Anything, mock.Anything)
}

func TestEstablishmentHandler_GetEvidence_EmptyListIsAnArray(t *testing.T) {
	reader := new(MockEstablishmentReader)
	handler := handlers.NewEstablishmentHandler(reader)
	reader.On("GetEvidence", mock.Anything, "1").Return([]entities.Evidence{}, nil)

	rec := httptest.NewRecorder()
	handler.GetEvidence(rec, establishmentRequest("/api/v1/establishments/1/evidence", "1"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"cnes_id":"0000001","evidence":[]}`, rec.Body.String())
}
