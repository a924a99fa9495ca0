package repositories

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=coastwatch dbname=coastwatch sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)
	return db
}

func TestLatestServiceQuery(t *testing.T) {
	var rows []latestService
	stmt := latestServiceQuery(dryRunDB(t)).Find(&rows).Statement

	sql := stmt.SQL.String()
	assert.Contains(t, sql, `MAX(serviced_at) AS last_service`)
	assert.Contains(t, sql, `FROM "device_service_records"`)
	assert.Contains(t, sql, `GROUP BY "device_id"`)
}
