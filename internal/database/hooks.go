package database

import (
	"time"

	"example.com/backstage/invoicing/internal/metrics"

	"gorm.io/gorm"
)

const startTimeKey = "metrics:start_time"

// RegisterMetricsHooks times every create, query, update, delete and raw
// statement and reports it to the collector
func RegisterMetricsHooks(db *gorm.DB, collector *metrics.Metrics) {
	if collector == nil {
		return
	}

	cb := db.Callback()

	_ = cb.Create().Before("gorm:create").Register("metrics:before_create", markStart)
	_ = cb.Create().After("gorm:create").Register("metrics:after_create", record(collector, "insert"))

	_ = cb.Query().Before("gorm:query").Register("metrics:before_query", markStart)
	_ = cb.Query().After("gorm:query").Register("metrics:after_query", record(collector, "select"))

	_ = cb.Update().Before("gorm:update").Register("metrics:before_update", markStart)
	_ = cb.Update().After("gorm:update").Register("metrics:after_update", record(collector, "update"))

	_ = cb.Delete().Before("gorm:delete").Register("metrics:before_delete", markStart)
	_ = cb.Delete().After("gorm:delete").Register("metrics:after_delete", record(collector, "delete"))

	_ = cb.Raw().Before("gorm:raw").Register("metrics:before_raw", markStart)
	_ = cb.Raw().After("gorm:raw").Register("metrics:after_raw", record(collector, "raw"))
}

func markStart(db *gorm.DB) {
	db.InstanceSet(startTimeKey, time.Now())
}

func record(collector *metrics.Metrics, operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		var duration time.Duration
		if start, ok := db.InstanceGet(startTimeKey); ok {
			duration = time.Since(start.(time.Time))
		}
		err := db.Error
		if err == gorm.ErrRecordNotFound {
			err = nil
		}
		collector.RecordDatabaseQuery(operation, err, duration)
	}
}
