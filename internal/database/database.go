package database

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"time"

	"gatewaymon/internal/constants"
	"gatewaymon/internal/migrations"
	"gatewaymon/internal/models"
	"gatewaymon/internal/security"

	_ "github.com/mattn/go-sqlite3"
)

type Database struct {
	db        *sql.DB
	encryptor *encryptor
}

func New(dbPath string, cfg *models.DatabaseConfig) (*Database, error) {
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid database path")
	}

	if err := security.ValidateFilePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, constants.DefaultFilePermissions) // #nosec G304 - Path validated by security.ValidateFilePath above
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg != nil {
		maxOpen := cfg.MaxOpenConnections
		if maxOpen <= 0 {
			maxOpen = constants.DefaultDBMaxOpenConnections
		}
		db.SetMaxOpenConns(maxOpen)

		maxIdle := cfg.MaxIdleConnections
		if maxIdle <= 0 {
			maxIdle = constants.DefaultDBMaxIdleConnections
		}
		db.SetMaxIdleConns(maxIdle)

		if cfg.ConnMaxLifetimeSec > 0 {
			db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeSec) * time.Second)
		} else {
			db.SetConnMaxLifetime(time.Duration(constants.DefaultDBConnMaxLifetimeSec) * time.Second)
		}

		if cfg.ConnMaxIdleTimeSec > 0 {
			db.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeSec) * time.Second)
		} else {
			db.SetConnMaxIdleTime(time.Duration(constants.DefaultDBConnMaxIdleTimeSec) * time.Second)
		}
	} else {
		db.SetMaxOpenConns(constants.DefaultDBMaxOpenConnections)
		db.SetMaxIdleConns(constants.DefaultDBMaxIdleConnections)
		db.SetConnMaxLifetime(time.Duration(constants.DefaultDBConnMaxLifetimeSec) * time.Second)
		db.SetConnMaxIdleTime(time.Duration(constants.DefaultDBConnMaxIdleTimeSec) * time.Second)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to enable WAL mode: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to set synchronous mode: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	if err := migrations.RunMigrations(db); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to run migrations: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	encryptor, err := NewEncryptor()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize encryptor: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	return &Database{db: db, encryptor: encryptor}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// HealthCheck performs a database health check by pinging the database connection.
func (d *Database) HealthCheck(ctx context.Context) error {
	if d.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	var result int
	if err := d.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query failed: %w", err)
	}

	if result != 1 {
		return fmt.Errorf("unexpected database query result: %d", result)
	}

	return nil
}

// InsertSignalHistory bulk-inserts samples in a single transaction and
// returns the number of rows written.
func (d *Database) InsertSignalHistory(ctx context.Context, records []models.SignalSample) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	var count int
	err := retryableDBOperationNoReturn(ctx, func() error {
		tx, err := d.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO signal_history (
			timestamp, timestamp_unix, nr_sinr, nr_rsrp, nr_rsrq, nr_rssi, nr_bands, nr_gnb_id, nr_cid,
			lte_sinr, lte_rsrp, lte_rsrq, lte_rssi, lte_bands, lte_enb_id, lte_cid,
			registration_status, device_uptime
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		count = 0
		for _, r := range records {
			if _, err := stmt.ExecContext(ctx,
				r.Timestamp, r.TimestampUnix,
				r.NRSinr, r.NRRsrp, r.NRRsrq, r.NRRssi, r.NRBands, r.NRGnbID, r.NRCid,
				r.LTESinr, r.LTERsrp, r.LTERsrq, r.LTERssi, r.LTEBands, r.LTEEnbID, r.LTECid,
				r.RegistrationStatus, r.DeviceUptime,
			); err != nil {
				return fmt.Errorf("failed to insert signal sample: %w", err)
			}
			count++
		}

		return tx.Commit()
	}, "InsertSignalHistory")

	return count, err
}

const signalHistoryColumns = `id, timestamp, timestamp_unix, nr_sinr, nr_rsrp, nr_rsrq, nr_rssi, nr_bands, nr_gnb_id, nr_cid,
	lte_sinr, lte_rsrp, lte_rsrq, lte_rssi, lte_bands, lte_enb_id, lte_cid, registration_status, device_uptime`

func scanSignalSample(row interface{ Scan(...interface{}) error }) (models.SignalSample, error) {
	var s models.SignalSample
	err := row.Scan(
		&s.ID, &s.Timestamp, &s.TimestampUnix,
		&s.NRSinr, &s.NRRsrp, &s.NRRsrq, &s.NRRssi, &s.NRBands, &s.NRGnbID, &s.NRCid,
		&s.LTESinr, &s.LTERsrp, &s.LTERsrq, &s.LTERssi, &s.LTEBands, &s.LTEEnbID, &s.LTECid,
		&s.RegistrationStatus, &s.DeviceUptime,
	)
	return s, err
}

// LatestSignal returns the most recently collected sample, or nil if none exist.
func (d *Database) LatestSignal(ctx context.Context) (*models.SignalSample, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+signalHistoryColumns+` FROM signal_history ORDER BY timestamp_unix DESC LIMIT 1`)
	s, err := scanSignalSample(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest signal: %w", err)
	}
	return &s, nil
}

// resolveBucketSeconds implements the resolution policy: "full" or a range
// of 5 minutes or less returns raw rows (bucketSeconds == 0); "auto" derives
// a bucket size from the range; a numeric string is used verbatim.
func resolveBucketSeconds(durationMinutes int, resolution string) int {
	if resolution == "full" || durationMinutes <= 5 {
		return 0
	}
	if resolution == "auto" || resolution == "" {
		switch {
		case durationMinutes <= 60:
			return 5
		case durationMinutes <= 360:
			return 30
		case durationMinutes <= 1440:
			return 60
		default:
			return 300
		}
	}
	var n int
	if _, err := fmt.Sscanf(resolution, "%d", &n); err == nil && n > 0 {
		return n
	}
	return 0
}

// QuerySignalHistory returns samples for the trailing durationMinutes,
// downsampled per the resolution policy.
func (d *Database) QuerySignalHistory(ctx context.Context, query models.SignalHistoryQuery) ([]models.SignalSample, error) {
	cutoff := float64(time.Now().Unix() - int64(query.DurationMinutes)*60)

	rows, err := d.db.QueryContext(ctx,
		`SELECT `+signalHistoryColumns+` FROM signal_history WHERE timestamp_unix >= ? ORDER BY timestamp_unix ASC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query signal history: %w", err)
	}
	defer rows.Close()

	var raw []models.SignalSample
	for rows.Next() {
		s, err := scanSignalSample(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal sample: %w", err)
		}
		raw = append(raw, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	bucketSeconds := resolveBucketSeconds(query.DurationMinutes, query.Resolution)
	if bucketSeconds <= 0 {
		return raw, nil
	}

	return downsampleSignalSamples(raw, bucketSeconds), nil
}

func downsampleSignalSamples(raw []models.SignalSample, bucketSeconds int) []models.SignalSample {
	type bucket struct {
		samples []models.SignalSample
	}
	order := make([]int64, 0)
	buckets := make(map[int64]*bucket)

	for _, s := range raw {
		key := int64(math.Floor(s.TimestampUnix / float64(bucketSeconds)))
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
			order = append(order, key)
		}
		b.samples = append(b.samples, s)
	}

	result := make([]models.SignalSample, 0, len(order))
	for _, key := range order {
		result = append(result, aggregateBucket(buckets[key].samples, key, bucketSeconds))
	}
	return result
}

func aggregateBucket(samples []models.SignalSample, bucketKey int64, bucketSeconds int) models.SignalSample {
	var out models.SignalSample
	out.TimestampUnix = float64(bucketKey * int64(bucketSeconds))

	minID := samples[0].ID
	minTimestamp := samples[0].Timestamp
	for _, s := range samples {
		if s.ID < minID {
			minID = s.ID
		}
		if s.Timestamp < minTimestamp {
			minTimestamp = s.Timestamp
		}
	}
	out.ID = minID
	out.Timestamp = minTimestamp

	out.NRSinr = meanFloatPtr(samples, func(s models.SignalSample) *float64 { return s.NRSinr })
	out.NRRsrp = meanFloatPtr(samples, func(s models.SignalSample) *float64 { return s.NRRsrp })
	out.NRRsrq = meanFloatPtr(samples, func(s models.SignalSample) *float64 { return s.NRRsrq })
	out.NRRssi = meanFloatPtr(samples, func(s models.SignalSample) *float64 { return s.NRRssi })
	out.LTESinr = meanFloatPtr(samples, func(s models.SignalSample) *float64 { return s.LTESinr })
	out.LTERsrp = meanFloatPtr(samples, func(s models.SignalSample) *float64 { return s.LTERsrp })
	out.LTERsrq = meanFloatPtr(samples, func(s models.SignalSample) *float64 { return s.LTERsrq })
	out.LTERssi = meanFloatPtr(samples, func(s models.SignalSample) *float64 { return s.LTERssi })

	out.NRBands = maxStringPtr(samples, func(s models.SignalSample) *string { return s.NRBands })
	out.LTEBands = maxStringPtr(samples, func(s models.SignalSample) *string { return s.LTEBands })
	out.NRGnbID = maxStringPtr(samples, func(s models.SignalSample) *string { return s.NRGnbID })
	out.LTEEnbID = maxStringPtr(samples, func(s models.SignalSample) *string { return s.LTEEnbID })
	out.NRCid = maxStringPtr(samples, func(s models.SignalSample) *string { return s.NRCid })
	out.LTECid = maxStringPtr(samples, func(s models.SignalSample) *string { return s.LTECid })

	maxStatus := ""
	for _, s := range samples {
		if s.RegistrationStatus > maxStatus {
			maxStatus = s.RegistrationStatus
		}
	}
	out.RegistrationStatus = maxStatus

	return out
}

func meanFloatPtr(samples []models.SignalSample, get func(models.SignalSample) *float64) *float64 {
	sum := 0.0
	n := 0
	for _, s := range samples {
		if v := get(s); v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	mean := sum / float64(n)
	return &mean
}

func maxStringPtr(samples []models.SignalSample, get func(models.SignalSample) *string) *string {
	var best *string
	for _, s := range samples {
		if v := get(s); v != nil {
			if best == nil || *v > *best {
				best = v
			}
		}
	}
	return best
}

// TowerHistory scans samples ascending and emits a change record whenever a
// tower identifier differs from the previously observed value on that radio.
func (d *Database) TowerHistory(ctx context.Context, durationMinutes int) ([]models.TowerChange, error) {
	cutoff := float64(time.Now().Unix() - int64(durationMinutes)*60)

	rows, err := d.db.QueryContext(ctx,
		`SELECT timestamp, timestamp_unix, nr_gnb_id, lte_enb_id FROM signal_history WHERE timestamp_unix >= ? ORDER BY timestamp_unix ASC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query tower history: %w", err)
	}
	defer rows.Close()

	var changes []models.TowerChange
	var prevNR, prevLTE *string

	for rows.Next() {
		var timestamp string
		var timestampUnix float64
		var nrGnbID, lteEnbID *string
		if err := rows.Scan(&timestamp, &timestampUnix, &nrGnbID, &lteEnbID); err != nil {
			return nil, fmt.Errorf("failed to scan tower row: %w", err)
		}

		if nrGnbID != nil && (prevNR == nil || *prevNR != *nrGnbID) {
			if prevNR != nil {
				changes = append(changes, models.TowerChange{
					Timestamp: timestamp, TimestampUnix: timestampUnix,
					RadioType: "5g", PreviousID: *prevNR, NewID: *nrGnbID,
				})
			}
			prevNR = nrGnbID
		}

		if lteEnbID != nil && (prevLTE == nil || *prevLTE != *lteEnbID) {
			if prevLTE != nil {
				changes = append(changes, models.TowerChange{
					Timestamp: timestamp, TimestampUnix: timestampUnix,
					RadioType: "4g", PreviousID: *prevLTE, NewID: *lteEnbID,
				})
			}
			prevLTE = lteEnbID
		}
	}

	return changes, rows.Err()
}

// InsertSpeedtest records one speed test invocation, encrypting the signal
// snapshot column if encryption is enabled.
func (d *Database) InsertSpeedtest(ctx context.Context, r *models.SpeedtestResult) (int64, error) {
	var id int64
	err := retryableDBOperationNoReturn(ctx, func() error {
		snapshot, err := d.encryptor.EncryptIfEnabled(derefString(r.SignalSnapshot))
		if err != nil {
			return fmt.Errorf("failed to encrypt signal snapshot: %w", err)
		}

		result, err := d.db.ExecContext(ctx, `INSERT INTO speedtest_results (
			timestamp, timestamp_unix, download_mbps, upload_mbps, ping_ms, jitter_ms, packet_loss_percent,
			server_name, server_location, server_host, server_id, client_ip, isp, tool, result_url,
			signal_snapshot, status, error_message, triggered_by, network_context, pre_test_latency_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.Timestamp, r.TimestampUnix, r.DownloadMbps, r.UploadMbps, r.PingMs, r.JitterMs, r.PacketLossPercent,
			r.ServerName, r.ServerLocation, r.ServerHost, r.ServerID, r.ClientIP, r.ISP, r.Tool, r.ResultURL,
			nullableString(snapshot), r.Status, r.ErrorMessage, r.TriggeredBy, r.NetworkContext, r.PreTestLatencyMs,
		)
		if err != nil {
			return fmt.Errorf("failed to insert speedtest result: %w", err)
		}
		id, err = result.LastInsertId()
		return err
	}, "InsertSpeedtest")

	return id, err
}

const speedtestColumns = `id, timestamp, timestamp_unix, download_mbps, upload_mbps, ping_ms, jitter_ms, packet_loss_percent,
	server_name, server_location, server_host, server_id, client_ip, isp, tool, result_url,
	signal_snapshot, status, error_message, triggered_by, network_context, pre_test_latency_ms`

func (d *Database) scanSpeedtest(row interface{ Scan(...interface{}) error }) (models.SpeedtestResult, error) {
	var r models.SpeedtestResult
	var snapshot *string
	err := row.Scan(
		&r.ID, &r.Timestamp, &r.TimestampUnix, &r.DownloadMbps, &r.UploadMbps, &r.PingMs, &r.JitterMs, &r.PacketLossPercent,
		&r.ServerName, &r.ServerLocation, &r.ServerHost, &r.ServerID, &r.ClientIP, &r.ISP, &r.Tool, &r.ResultURL,
		&snapshot, &r.Status, &r.ErrorMessage, &r.TriggeredBy, &r.NetworkContext, &r.PreTestLatencyMs,
	)
	if err != nil {
		return r, err
	}
	if snapshot != nil {
		decrypted, decErr := d.encryptor.DecryptIfEnabled(*snapshot)
		if decErr != nil {
			return r, fmt.Errorf("failed to decrypt signal snapshot: %w", decErr)
		}
		r.SignalSnapshot = &decrypted
	}
	return r, nil
}

// LatestSpeedtest returns the most recent speed test result, or nil if none exist.
func (d *Database) LatestSpeedtest(ctx context.Context) (*models.SpeedtestResult, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+speedtestColumns+` FROM speedtest_results ORDER BY timestamp_unix DESC LIMIT 1`)
	r, err := d.scanSpeedtest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest speedtest: %w", err)
	}
	return &r, nil
}

// QuerySpeedtests returns the most recent speed test results, newest first.
func (d *Database) QuerySpeedtests(ctx context.Context, limit int) ([]models.SpeedtestResult, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT `+speedtestColumns+` FROM speedtest_results ORDER BY timestamp_unix DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query speedtests: %w", err)
	}
	defer rows.Close()

	var results []models.SpeedtestResult
	for rows.Next() {
		r, err := d.scanSpeedtest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan speedtest result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// InsertDisruption persists a new, typically unresolved, disruption event
// and returns its id.
func (d *Database) InsertDisruption(ctx context.Context, e *models.DisruptionEvent) (int64, error) {
	var id int64
	err := retryableDBOperationNoReturn(ctx, func() error {
		before, err := d.encryptor.EncryptIfEnabled(derefString(e.BeforeState))
		if err != nil {
			return fmt.Errorf("failed to encrypt before_state: %w", err)
		}
		after, err := d.encryptor.EncryptIfEnabled(derefString(e.AfterState))
		if err != nil {
			return fmt.Errorf("failed to encrypt after_state: %w", err)
		}

		result, err := d.db.ExecContext(ctx, `INSERT INTO disruption_events (
			timestamp, timestamp_unix, event_type, severity, description, before_state, after_state,
			duration_seconds, resolved, resolved_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.Timestamp, e.TimestampUnix, e.EventType, e.Severity, e.Description,
			nullableString(before), nullableString(after), e.DurationSeconds, e.Resolved, e.ResolvedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert disruption event: %w", err)
		}
		id, err = result.LastInsertId()
		return err
	}, "InsertDisruption")

	return id, err
}

// ResolveDisruption marks a disruption resolved with its duration, resolution
// time, and after-state snapshot, leaving every other field untouched.
func (d *Database) ResolveDisruption(ctx context.Context, id int64, durationSeconds int64, resolvedAt string, afterState string) error {
	return retryableDBOperationNoReturn(ctx, func() error {
		encrypted, err := d.encryptor.EncryptIfEnabled(afterState)
		if err != nil {
			return fmt.Errorf("failed to encrypt after_state: %w", err)
		}

		_, err = d.db.ExecContext(ctx, `UPDATE disruption_events SET resolved = 1, duration_seconds = ?, resolved_at = ?, after_state = ? WHERE id = ?`,
			durationSeconds, resolvedAt, nullableString(encrypted), id)
		if err != nil {
			return fmt.Errorf("failed to resolve disruption: %w", err)
		}
		return nil
	}, "ResolveDisruption")
}

const disruptionColumns = `id, timestamp, timestamp_unix, event_type, severity, description, before_state, after_state,
	duration_seconds, resolved, resolved_at`

func (d *Database) scanDisruption(row interface{ Scan(...interface{}) error }) (models.DisruptionEvent, error) {
	var e models.DisruptionEvent
	var before, after *string
	err := row.Scan(
		&e.ID, &e.Timestamp, &e.TimestampUnix, &e.EventType, &e.Severity, &e.Description,
		&before, &after, &e.DurationSeconds, &e.Resolved, &e.ResolvedAt,
	)
	if err != nil {
		return e, err
	}
	if before != nil {
		decrypted, decErr := d.encryptor.DecryptIfEnabled(*before)
		if decErr != nil {
			return e, fmt.Errorf("failed to decrypt before_state: %w", decErr)
		}
		e.BeforeState = &decrypted
	}
	if after != nil {
		decrypted, decErr := d.encryptor.DecryptIfEnabled(*after)
		if decErr != nil {
			return e, fmt.Errorf("failed to decrypt after_state: %w", decErr)
		}
		e.AfterState = &decrypted
	}
	return e, nil
}

// QueryDisruptions returns disruption events within the trailing window, newest first.
func (d *Database) QueryDisruptions(ctx context.Context, hours int) ([]models.DisruptionEvent, error) {
	cutoff := float64(time.Now().Unix() - int64(hours)*3600)

	rows, err := d.db.QueryContext(ctx,
		`SELECT `+disruptionColumns+` FROM disruption_events WHERE timestamp_unix >= ? ORDER BY timestamp_unix DESC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query disruptions: %w", err)
	}
	defer rows.Close()

	var events []models.DisruptionEvent
	for rows.Next() {
		e, err := d.scanDisruption(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan disruption: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// DisruptionStats summarizes counts by type, by severity, and average
// resolved duration over the trailing window.
func (d *Database) DisruptionStats(ctx context.Context, hours int) (*models.DisruptionStats, error) {
	events, err := d.QueryDisruptions(ctx, hours)
	if err != nil {
		return nil, err
	}

	stats := &models.DisruptionStats{
		PeriodHours:      hours,
		Total:            len(events),
		CountsByType:     make(map[string]int),
		CountsBySeverity: make(map[string]int),
	}

	var durationSum int64
	var durationCount int64
	for _, e := range events {
		stats.CountsByType[e.EventType]++
		stats.CountsBySeverity[e.Severity]++
		if e.Resolved && e.DurationSeconds != nil {
			durationSum += *e.DurationSeconds
			durationCount++
		}
	}
	if durationCount > 0 {
		stats.AvgDurationSeconds = float64(durationSum) / float64(durationCount)
	}

	return stats, nil
}

// InsertNetworkQuality records one ping-based probe result against a fixed target.
func (d *Database) InsertNetworkQuality(ctx context.Context, r *models.NetworkQualityResult) (int64, error) {
	var id int64
	err := retryableDBOperationNoReturn(ctx, func() error {
		result, err := d.db.ExecContext(ctx, `INSERT INTO network_quality_results (
			timestamp, timestamp_unix, target_host, target_name, ping_ms, jitter_ms, packet_loss_percent, status, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.Timestamp, r.TimestampUnix, r.TargetHost, r.TargetName, r.PingMs, r.JitterMs, r.PacketLossPercent, r.Status, r.ErrorMessage,
		)
		if err != nil {
			return fmt.Errorf("failed to insert network quality result: %w", err)
		}
		id, err = result.LastInsertId()
		return err
	}, "InsertNetworkQuality")

	return id, err
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
