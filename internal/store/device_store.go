package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fwsync/internal/domain"
)

// DeviceStore reads the managed device inventory. Device CRUD belongs to the
// surrounding application; the sync engine only needs lookups, plus Create
// for seeding and tests.
type DeviceStore struct {
	db *DB
}

func NewDeviceStore(db *DB) *DeviceStore {
	return &DeviceStore{db: db}
}

const deviceColumns = `id, name, category, vendor, ip_address, port, username, password, created_at, updated_at`

func scanDevice(row interface{ Scan(...any) error }) (*domain.Device, error) {
	var (
		d                    domain.Device
		createdAt, updatedAt int64
	)
	err := row.Scan(&d.ID, &d.Name, &d.Category, &d.Vendor, &d.IPAddress, &d.Port,
		&d.Username, &d.Password, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	d.CreatedAt = time.Unix(0, createdAt)
	d.UpdatedAt = time.Unix(0, updatedAt)
	return &d, nil
}

// Create inserts a device and fills in its assigned id.
func (s *DeviceStore) Create(ctx context.Context, d *domain.Device) error {
	now := time.Now()
	d.CreatedAt = now
	d.UpdatedAt = now
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO devices (name, category, vendor, ip_address, port, username, password, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.Name, d.Category, d.Vendor, d.IPAddress, d.Port, d.Username, d.Password,
		now.UnixNano(), now.UnixNano())
	if err != nil {
		return err
	}
	d.ID, err = res.LastInsertId()
	return err
}

// Get returns a device by id, or domain.ErrNotFound.
func (s *DeviceStore) Get(ctx context.Context, id int64) (*domain.Device, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = ?`, id)
	d, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("device %d: %w", id, domain.ErrNotFound)
	}
	return d, err
}

// List returns all devices ordered by name.
func (s *DeviceStore) List(ctx context.Context) ([]*domain.Device, error) {
	return s.queryDevices(ctx, `SELECT `+deviceColumns+` FROM devices ORDER BY name`)
}

// ListByCategory returns all devices of one category ordered by name.
func (s *DeviceStore) ListByCategory(ctx context.Context, category string) ([]*domain.Device, error) {
	return s.queryDevices(ctx, `SELECT `+deviceColumns+` FROM devices WHERE category = ? ORDER BY name`, category)
}

func (s *DeviceStore) queryDevices(ctx context.Context, q string, args ...any) ([]*domain.Device, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []*domain.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}
