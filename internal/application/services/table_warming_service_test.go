package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/obstetric-locator/internal/application/services"
	apperrors "github.com/zatekoja/obstetric-locator/pkg/errors"
)

func TestTableWarmingService_WarmCache(t *testing.T) {
	search := newStaticRepo(confirmed("0000001", "Hospital Maternidade Alfa", -23.62, -46.64))
	details := newStaticRepo(confirmed("0000001", "Hospital Maternidade Alfa", -23.62, -46.64))
	var forced []bool
	booter := services.OverrideBooterFunc(func(ctx context.Context, snapshot string, force bool) error {
		forced = append(forced, force)
		return nil
	})

	svc := services.NewTableWarmingService(booter, zerolog.Nop(), search, details)
	require.NoError(t, svc.WarmCache(context.Background()))
	assert.Equal(t, 1, search.loads)
	assert.Equal(t, 1, details.loads)
	assert.Equal(t, []bool{false}, forced)
}

func TestTableWarmingService_JoinsErrors(t *testing.T) {
	broken := newStaticRepo()
	broken.err = apperrors.NewDatasetUnavailableError("canonical table not found", nil)
	healthy := newStaticRepo()
	booter := services.OverrideBooterFunc(func(ctx context.Context, snapshot string, force bool) error {
		return errors.New("no snapshot")
	})

	svc := services.NewTableWarmingService(booter, zerolog.Nop(), broken, healthy)
	err := svc.WarmCache(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeDatasetUnavailable))
	assert.Contains(t, err.Error(), "no snapshot")
	assert.Equal(t, 1, healthy.loads, "a failing table does not stop the others")
}

func TestTableWarmingService_StartPeriodicWarming(t *testing.T) {
	repo := newStaticRepo()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services.NewTableWarmingService(nil, zerolog.Nop(), repo).StartPeriodicWarming(ctx, 0)
	assert.Equal(t, 1, repo.loads)
}
