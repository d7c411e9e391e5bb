package monitoring

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Queryer is satisfied by both *sql.DB and *sql.Tx.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// DBMetricsCollector samples connection pool stats on an interval.
type DBMetricsCollector struct {
	db       *sql.DB
	lastWait time.Duration
}

func NewDBMetricsCollector(db *sql.DB) *DBMetricsCollector {
	return &DBMetricsCollector{db: db}
}

func (c *DBMetricsCollector) StartCollecting(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.collect()
			}
		}
	}()
}

func (c *DBMetricsCollector) collect() {
	stats := c.db.Stats()

	DBConnectionsActive.Set(float64(stats.InUse))
	DBConnectionsIdle.Set(float64(stats.Idle))
	DBConnectionsWaiting.Set(float64(stats.WaitCount))

	// WaitDuration is cumulative over the pool lifetime.
	if delta := stats.WaitDuration - c.lastWait; delta > 0 {
		DBConnectionWaitSeconds.Add(delta.Seconds())
	}
	c.lastWait = stats.WaitDuration
}

func InstrumentQuery(ctx context.Context, q Queryer, queryType, table, query string, args ...interface{}) (*sql.Rows, error) {
	end := TimeDBQuery(queryType, table)
	defer end()

	rows, err := q.QueryContext(ctx, query, args...)
	countDBError(queryType, table, err)
	return rows, err
}

func InstrumentExec(ctx context.Context, q Queryer, queryType, table, query string, args ...interface{}) (sql.Result, error) {
	end := TimeDBQuery(queryType, table)
	defer end()

	res, err := q.ExecContext(ctx, query, args...)
	countDBError(queryType, table, err)
	return res, err
}

// InstrumentQueryRow only times the round trip; errors surface on Scan.
func InstrumentQueryRow(ctx context.Context, q Queryer, queryType, table, query string, args ...interface{}) *sql.Row {
	end := TimeDBQuery(queryType, table)
	defer end()

	return q.QueryRowContext(ctx, query, args...)
}

func countDBError(queryType, table string, err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	DBQueryErrorsTotal.WithLabelValues(queryType, table).Inc()
}
