package store

import (
	"context"
	"database/sql"
	"time"

	"fwsync/internal/domain"
)

// EntityStore persists the synchronized device data. Replace* methods
// implement the delete-then-insert contract: a successful sync of a kind
// replaces the whole set of rows of that kind for the device, inside one
// transaction. A failed call leaves the previous rows intact.
type EntityStore struct {
	db *DB
}

func NewEntityStore(db *DB) *EntityStore {
	return &EntityStore{db: db}
}

// ReplacePolicies swaps in the freshly collected rule set and returns the
// inserted count.
func (s *EntityStore) ReplacePolicies(ctx context.Context, deviceID int64, vendor domain.Vendor, rows []domain.Policy) (int, error) {
	return s.replace(ctx, deviceID, `DELETE FROM policies WHERE device_id = ?`, func(tx *sql.Tx, now int64) error {
		for _, p := range rows {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO policies (device_id, seq, rule_name, enable, action, source, destination,
					service, user, application, description, vsys, security_profile, category,
					vendor, last_sync_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				deviceID, p.Seq, p.RuleName, p.Enable, p.Action, p.Source, p.Destination,
				p.Service, p.User, p.Application, p.Description, p.Vsys, p.SecurityProfile,
				p.Category, vendor, now)
			if err != nil {
				return err
			}
		}
		return nil
	}, len(rows))
}

func (s *EntityStore) ReplaceNetworkObjects(ctx context.Context, deviceID int64, vendor domain.Vendor, rows []domain.NetworkObject) (int, error) {
	return s.replace(ctx, deviceID, `DELETE FROM network_objects WHERE device_id = ?`, func(tx *sql.Tx, now int64) error {
		for _, o := range rows {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO network_objects (device_id, name, type, value, vendor, last_sync_at)
				VALUES (?, ?, ?, ?, ?, ?)`, deviceID, o.Name, o.Type, o.Value, vendor, now)
			if err != nil {
				return err
			}
		}
		return nil
	}, len(rows))
}

func (s *EntityStore) ReplaceNetworkGroups(ctx context.Context, deviceID int64, vendor domain.Vendor, rows []domain.NetworkGroup) (int, error) {
	return s.replace(ctx, deviceID, `DELETE FROM network_groups WHERE device_id = ?`, func(tx *sql.Tx, now int64) error {
		for _, g := range rows {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO network_groups (device_id, name, members, vendor, last_sync_at)
				VALUES (?, ?, ?, ?, ?)`, deviceID, g.Name, g.Members, vendor, now)
			if err != nil {
				return err
			}
		}
		return nil
	}, len(rows))
}

func (s *EntityStore) ReplaceServiceObjects(ctx context.Context, deviceID int64, vendor domain.Vendor, rows []domain.ServiceObject) (int, error) {
	return s.replace(ctx, deviceID, `DELETE FROM service_objects WHERE device_id = ?`, func(tx *sql.Tx, now int64) error {
		for _, o := range rows {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO service_objects (device_id, name, protocol, port, vendor, last_sync_at)
				VALUES (?, ?, ?, ?, ?, ?)`, deviceID, o.Name, o.Protocol, o.Port, vendor, now)
			if err != nil {
				return err
			}
		}
		return nil
	}, len(rows))
}

func (s *EntityStore) ReplaceServiceGroups(ctx context.Context, deviceID int64, vendor domain.Vendor, rows []domain.ServiceGroup) (int, error) {
	return s.replace(ctx, deviceID, `DELETE FROM service_groups WHERE device_id = ?`, func(tx *sql.Tx, now int64) error {
		for _, g := range rows {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO service_groups (device_id, name, members, vendor, last_sync_at)
				VALUES (?, ?, ?, ?, ?)`, deviceID, g.Name, g.Members, vendor, now)
			if err != nil {
				return err
			}
		}
		return nil
	}, len(rows))
}

// UpsertSystemInfo keeps the single system info row per device current.
func (s *EntityStore) UpsertSystemInfo(ctx context.Context, deviceID int64, info domain.SystemInfo) error {
	now := time.Now().UnixNano()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO system_info (device_id, hostname, model, version, uptime, ip_address,
			mac_address, serial_number, app_version, status, last_sync_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			hostname = excluded.hostname, model = excluded.model, version = excluded.version,
			uptime = excluded.uptime, ip_address = excluded.ip_address,
			mac_address = excluded.mac_address, serial_number = excluded.serial_number,
			app_version = excluded.app_version, status = excluded.status,
			last_sync_at = excluded.last_sync_at`,
		deviceID, info.Hostname, info.Model, info.Version, info.Uptime, info.IPAddress,
		info.MACAddress, info.SerialNumber, info.AppVersion, info.Status, now)
	return err
}

// GetSystemInfo returns the stored system info row, nil when never synced.
func (s *EntityStore) GetSystemInfo(ctx context.Context, deviceID int64) (*domain.SystemInfo, error) {
	var (
		info       domain.SystemInfo
		lastSyncAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, device_id, hostname, model, version, uptime, ip_address, mac_address,
			serial_number, app_version, status, last_sync_at
		FROM system_info WHERE device_id = ?`, deviceID).Scan(
		&info.ID, &info.DeviceID, &info.Hostname, &info.Model, &info.Version, &info.Uptime,
		&info.IPAddress, &info.MACAddress, &info.SerialNumber, &info.AppVersion, &info.Status, &lastSyncAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	info.LastSyncAt = time.Unix(0, lastSyncAt)
	return &info, nil
}

// PolicyUsage is one usage annotation keyed by rule name.
type PolicyUsage struct {
	RuleName    string
	LastHitDate *time.Time
	UnusedDays  int
	UsageStatus string
}

// ApplyUsage annotates existing policy rows in place and returns how many
// rules matched. Usage records for unknown rules are skipped, not an error.
func (s *EntityStore) ApplyUsage(ctx context.Context, deviceID int64, updates []PolicyUsage) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	matched := 0
	for _, u := range updates {
		var lastHit any
		if u.LastHitDate != nil {
			lastHit = u.LastHitDate.UnixNano()
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE policies SET last_hit_date = ?, unused_days = ?, usage_status = ?
			WHERE device_id = ? AND rule_name = ?`,
			lastHit, u.UnusedDays, u.UsageStatus, deviceID, u.RuleName)
		if err != nil {
			return 0, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		if n > 0 {
			matched++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return matched, nil
}

// CountPolicies returns the number of stored rules for a device.
func (s *EntityStore) CountPolicies(ctx context.Context, deviceID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM policies WHERE device_id = ?`, deviceID).Scan(&n)
	return n, err
}

// GetPolicy returns one rule by name, or nil when absent.
func (s *EntityStore) GetPolicy(ctx context.Context, deviceID int64, ruleName string) (*domain.Policy, error) {
	var (
		p        domain.Policy
		lastHit  sql.NullInt64
		lastSync int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, device_id, seq, rule_name, enable, action, source, destination, service,
			user, application, description, vsys, security_profile, category,
			last_hit_date, unused_days, usage_status, vendor, last_sync_at
		FROM policies WHERE device_id = ? AND rule_name = ?`, deviceID, ruleName).Scan(
		&p.ID, &p.DeviceID, &p.Seq, &p.RuleName, &p.Enable, &p.Action, &p.Source, &p.Destination,
		&p.Service, &p.User, &p.Application, &p.Description, &p.Vsys, &p.SecurityProfile,
		&p.Category, &lastHit, &p.UnusedDays, &p.UsageStatus, &p.Vendor, &lastSync)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if lastHit.Valid {
		ts := time.Unix(0, lastHit.Int64)
		p.LastHitDate = &ts
	}
	p.LastSyncAt = time.Unix(0, lastSync)
	return &p, nil
}

func (s *EntityStore) replace(ctx context.Context, deviceID int64, deleteQuery string, insert func(tx *sql.Tx, now int64) error, count int) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, deleteQuery, deviceID); err != nil {
		return 0, err
	}
	if err := insert(tx, time.Now().UnixNano()); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}
