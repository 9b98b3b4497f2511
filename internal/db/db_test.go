package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assetdesk-backend/config"
	"assetdesk-backend/internal/model"
)

func TestInit_SQLite(t *testing.T) {
	gdb, err := Init(&config.DatabaseConfig{Driver: "sqlite", DSN: "file::memory:"})
	require.NoError(t, err)

	for _, m := range []any{
		&model.User{}, &model.Asset{}, &model.AssetHistory{}, &model.MaintenanceRecord{},
		&model.RecurringSchedule{}, &model.Ticket{}, &model.TicketHistory{}, &model.PushSubscription{},
	} {
		assert.True(t, gdb.Migrator().HasTable(m), "%T", m)
	}
	assert.True(t, gdb.Migrator().HasTable("asset_history"))
	assert.True(t, gdb.Migrator().HasTable("ticket_history"))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(&config.DatabaseConfig{Driver: "oracle", DSN: "x"})
	assert.Error(t, err)
}
