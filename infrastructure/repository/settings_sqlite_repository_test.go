package repository

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ca-srg/tosage/domain/entity"
)

func TestSettingsSQLiteRepository_Get_AbsentReturnsNil(t *testing.T) {
	db := openTestDB(t)
	repo := NewSettingsSQLiteRepository(db)

	settings, err := repo.Get()
	require.NoError(t, err)
	require.Nil(t, settings, "caller must supply entity.DefaultSettings() when no row exists yet")
}

func TestSettingsSQLiteRepository_SaveAndGet(t *testing.T) {
	db := openTestDB(t)
	repo := NewSettingsSQLiteRepository(db)

	settings := entity.DefaultSettings()
	settings.MaxRetries = 5
	require.NoError(t, repo.Save(settings))

	got, err := repo.Get()
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, 5, got.MaxRetries)
	require.Equal(t, settings.TargetRotationRequestCount, got.TargetRotationRequestCount)
}

func TestSettingsSQLiteRepository_Save_OverwritesSingleRow(t *testing.T) {
	db := openTestDB(t)
	repo := NewSettingsSQLiteRepository(db)

	first := entity.DefaultSettings()
	require.NoError(t, repo.Save(first))

	second := entity.DefaultSettings()
	second.MaxRetries = 9
	second.FailoverDelaySeconds = 30
	require.NoError(t, repo.Save(second))

	got, err := repo.Get()
	require.NoError(t, err)
	require.Equal(t, 9, got.MaxRetries)
	require.Equal(t, 30, got.FailoverDelaySeconds)
}

func TestSettingsSQLiteRepository_Save_RejectsInvalidSettings(t *testing.T) {
	db := openTestDB(t)
	repo := NewSettingsSQLiteRepository(db)

	invalid := entity.DefaultSettings()
	invalid.MaxRetries = 100

	err := repo.Save(invalid)
	require.Error(t, err)
}
