// internal/repository/device_repository_test.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fleetpulse/internal/database"
	"fleetpulse/internal/model"
)

func newMockDB(t *testing.T) (*database.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return &database.DB{DB: sqlDB}, mock
}

func deviceColumns() []string {
	return []string{
		"id", "name", "model", "firmware_version", "city", "status",
		"created_at", "last_seen_at", "metadata",
	}
}

func TestDeviceGetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeviceRepository(db, zap.NewNop())

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("FROM devices WHERE id = $1")).
		WithArgs("veh-001").
		WillReturnRows(sqlmock.NewRows(deviceColumns()).
			AddRow("veh-001", "Van 1", "TX-9", nil, nil, "online", now, now, []byte(`{}`)))

	device, err := repo.GetByID(context.Background(), "veh-001")

	require.NoError(t, err)
	assert.Equal(t, "veh-001", device.ID)
	assert.Equal(t, model.DeviceStatusOnline, device.Status)
	require.NotNil(t, device.LastSeenAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeviceGetByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeviceRepository(db, zap.NewNop())

	mock.ExpectQuery(regexp.QuoteMeta("FROM devices WHERE id = $1")).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	device, err := repo.GetByID(context.Background(), "ghost")

	assert.Nil(t, device)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeviceDeleteNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeviceRepository(db, zap.NewNop())

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM devices WHERE id = $1")).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "ghost")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeviceUpdateLastSeenMarksOnline(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeviceRepository(db, zap.NewNop())

	seenAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE devices SET last_seen_at = $2, status = 'online' WHERE id = $1")).
		WithArgs("veh-001", seenAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateLastSeen(context.Background(), "veh-001", seenAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeviceListStaleExcludesOffline(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeviceRepository(db, zap.NewNop())

	cutoff := time.Now().UTC().Add(-15 * time.Minute)
	lastSeen := cutoff.Add(-time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE last_seen_at < $1 AND status != 'offline'")).
		WithArgs(cutoff).
		WillReturnRows(sqlmock.NewRows(deviceColumns()).
			AddRow("veh-001", "Van 1", "TX-9", nil, nil, "online", lastSeen, lastSeen, []byte(`{}`)))

	devices, err := repo.ListStale(context.Background(), cutoff)

	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "veh-001", devices[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeviceMarkOfflineBefore(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeviceRepository(db, zap.NewNop())

	cutoff := time.Now().UTC().Add(-15 * time.Minute)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE devices SET status = 'offline' WHERE last_seen_at < $1 AND status != 'offline'")).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 4))

	updated, err := repo.MarkOfflineBefore(context.Background(), cutoff)

	require.NoError(t, err)
	assert.Equal(t, int64(4), updated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeviceListWithFilters(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeviceRepository(db, zap.NewNop())

	city := "istanbul"
	status := model.DeviceStatusOnline
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE city = $1 AND status = $2 ORDER BY created_at DESC OFFSET $3 LIMIT $4")).
		WithArgs(city, status, 10, 50).
		WillReturnRows(sqlmock.NewRows(deviceColumns()).
			AddRow("veh-001", "Van 1", "TX-9", nil, city, "online", now, now, []byte(`{}`)))

	devices, err := repo.List(context.Background(), &DeviceFilter{
		City:   &city,
		Status: &status,
		Skip:   10,
		Limit:  50,
	})

	require.NoError(t, err)
	require.Len(t, devices, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}
