package logger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type widget struct {
	ID   uint
	Name string
}

func TestGormLogger_SkipsRecordNotFound(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	Set(zap.New(core))
	defer Set(nil)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: NewGormLogger()})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&widget{}))

	var w widget
	err = db.First(&w, 42).Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Zero(t, logs.Len())

	err = db.Table("missing_table").Take(&w).Error
	require.Error(t, err)
	entries := logs.FilterMessage("query failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Contains(t, entries[0].ContextMap()["sql"], "missing_table")
}

func TestGormLogger_Levels(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	Set(zap.New(core))
	defer Set(nil)

	fc := func() (string, int64) { return "SELECT 1", 1 }
	g := NewGormLogger()

	g.Trace(context.Background(), time.Now(), fc, nil)
	assert.Zero(t, logs.Len())

	g.Trace(context.Background(), time.Now().Add(-time.Second), fc, nil)
	assert.Equal(t, 1, logs.FilterMessage("slow query").Len())

	g.LogMode(gormlogger.Info).Trace(context.Background(), time.Now(), fc, nil)
	assert.Equal(t, 1, logs.FilterMessage("query").Len())

	g.LogMode(gormlogger.Silent).Trace(context.Background(), time.Now(), fc, assert.AnError)
	assert.Equal(t, 2, logs.Len())
}
