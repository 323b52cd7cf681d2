package database

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

func TestConnectPostgresRequiresDSN(t *testing.T) {
	_, err := ConnectPostgres("", PoolOptions{})
	require.Error(t, err)
}

func TestConnectRedis(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	defer mini.Close()

	client, err := ConnectRedis(context.Background(), "redis://"+mini.Addr(), "gema-test")
	require.NoError(t, err)
	require.NoError(t, client.Close())

	_, err = ConnectRedis(context.Background(), "", "")
	require.Error(t, err)

	_, err = ConnectRedis(context.Background(), "://bad", "")
	require.Error(t, err)
}

func TestConnectNATSDisabledWithoutURL(t *testing.T) {
	conn, err := ConnectNATS("", "test")
	require.NoError(t, err)
	require.Nil(t, conn)
}

func TestMigrateCreatesScoringTables(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:migrate_test?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, Migrate(db))
	require.True(t, db.Migrator().HasTable(&models.LeaderboardEntry{}))
	require.True(t, db.Migrator().HasTable(&models.Certification{}))
	require.True(t, db.Migrator().HasIndex(&models.ActivityLog{}, "idx_activity_entity"))
}

func TestApplyPoolSetsLimits(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:pool_test?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, applyPool(db, PoolOptions{MaxOpenConns: 7, MaxIdleConns: 2, ConnMaxLifetime: time.Minute}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.Equal(t, 7, sqlDB.Stats().MaxOpenConnections)
}
