package clickhouse

import "fmt"

// HistorySchema returns the DDL for the theme history table. Rows expire
// through the table TTL after retentionDays.
func HistorySchema(database, table string, retentionDays int) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    theme String,
    avg_change_rate Float64,
    top_stock_name String,
    top_stock_rate Float64,
    ts DateTime64(3, 'Asia/Seoul')
) ENGINE = MergeTree
PARTITION BY toYYYYMMDD(ts)
ORDER BY (theme, ts)
TTL toDateTime(ts) + INTERVAL %d DAY`, database, table, retentionDays),
	}
}
