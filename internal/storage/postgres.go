package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/codeBaron-dev/Rider/internal/models"
)

//go:embed migrations/*.sql
var migrations embed.FS

const locationsChannel = "locations_changed"

// PostgresStore implements LocationStore and DriverStore on one database.
// Location streams are driven by LISTEN/NOTIFY on locationsChannel.
type PostgresStore struct {
	db     *sql.DB
	dsn    string
	logger *slog.Logger
}

func NewPostgresStore(dsn string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{db: db, dsn: dsn, logger: logger}, nil
}

func (p *PostgresStore) Close() error { return p.db.Close() }

func (p *PostgresStore) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// Migrate applies the embedded schema files in name order.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		b, err := migrations.ReadFile("migrations/" + name)
		if err != nil {
			return err
		}
		if _, err := p.db.ExecContext(ctx, string(b)); err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
		p.logger.Info("migration applied", "file", name)
	}
	return nil
}

func (p *PostgresStore) notifyLocations(ctx context.Context) {
	if _, err := p.db.ExecContext(ctx, `SELECT pg_notify($1, '')`, locationsChannel); err != nil {
		p.logger.Warn("notify failed", "channel", locationsChannel, "error", err)
	}
}

func (p *PostgresStore) Insert(ctx context.Context, rec models.LocationRecord) (int64, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	var id int64
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO locations(latitude, longitude, address, created_at) VALUES($1,$2,$3,$4) RETURNING id`,
		rec.Loc.Lat, rec.Loc.Lon, rec.Address, rec.CreatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert location: %w", err)
	}
	p.notifyLocations(ctx)
	return id, nil
}

func (p *PostgresStore) Update(ctx context.Context, id int64, rec models.LocationRecord) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE locations SET latitude=$1, longitude=$2, address=$3 WHERE id=$4`,
		rec.Loc.Lat, rec.Loc.Lon, rec.Address, id)
	if err != nil {
		return fmt.Errorf("update location %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	p.notifyLocations(ctx)
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, id int64) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM locations WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete location %d: %w", id, err)
	}
	p.notifyLocations(ctx)
	return nil
}

func (p *PostgresStore) DeleteAll(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM locations`); err != nil {
		return fmt.Errorf("delete locations: %w", err)
	}
	p.notifyLocations(ctx)
	return nil
}

func (p *PostgresStore) ByID(ctx context.Context, id int64) (models.LocationRecord, error) {
	var r models.LocationRecord
	err := p.db.QueryRowContext(ctx,
		`SELECT id, latitude, longitude, address, created_at FROM locations WHERE id=$1`, id).
		Scan(&r.ID, &r.Loc.Lat, &r.Loc.Lon, &r.Address, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return r, ErrNotFound
	}
	if err != nil {
		return r, fmt.Errorf("location %d: %w", id, err)
	}
	return r, nil
}

func (p *PostgresStore) All(ctx context.Context) (<-chan []models.LocationRecord, error) {
	return p.watch(ctx, func(ctx context.Context) ([]models.LocationRecord, error) {
		return p.queryLocations(ctx,
			`SELECT id, latitude, longitude, address, created_at FROM locations ORDER BY created_at DESC, id DESC`)
	})
}

func (p *PostgresStore) Search(ctx context.Context, keyword string) (<-chan []models.LocationRecord, error) {
	return p.watch(ctx, func(ctx context.Context) ([]models.LocationRecord, error) {
		return p.queryLocations(ctx,
			`SELECT id, latitude, longitude, address, created_at FROM locations
			 WHERE address ILIKE '%' || $1 || '%' ESCAPE '\' ORDER BY created_at DESC, id DESC`, likePattern(keyword))
	})
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern escapes LIKE wildcards so keyword matches literally.
func likePattern(keyword string) string {
	return likeEscaper.Replace(keyword)
}

func (p *PostgresStore) queryLocations(ctx context.Context, q string, args ...any) ([]models.LocationRecord, error) {
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.LocationRecord{}
	for rows.Next() {
		var r models.LocationRecord
		if err := rows.Scan(&r.ID, &r.Loc.Lat, &r.Loc.Lon, &r.Address, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// watch runs query now and after every notification on locationsChannel.
// The listener is set up before the first query so no change is missed.
func (p *PostgresStore) watch(ctx context.Context, query func(context.Context) ([]models.LocationRecord, error)) (<-chan []models.LocationRecord, error) {
	listener := pq.NewListener(p.dsn, 100*time.Millisecond, 10*time.Second, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			p.logger.Warn("location listener event", "event", int(ev), "error", err)
		}
	})
	if err := listener.Listen(locationsChannel); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("listen %s: %w", locationsChannel, err)
	}
	first, err := query(ctx)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}

	out := make(chan []models.LocationRecord)
	go func() {
		defer close(out)
		defer listener.Close()
		list := first
		ping := time.NewTicker(90 * time.Second)
		defer ping.Stop()
		for {
			select {
			case out <- list:
			case <-ctx.Done():
				return
			}
		wait:
			for {
				select {
				case <-ctx.Done():
					return
				case <-ping.C:
					go func() { _ = listener.Ping() }()
				case <-listener.Notify:
					break wait
				}
			}
			next, err := query(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				p.logger.Error("location stream query failed", "error", err)
				return
			}
			list = next
		}
	}()
	return out, nil
}

// UpsertAll inserts or replaces drivers keyed on car_plate_number.
func (p *PostgresStore) UpsertAll(ctx context.Context, drivers []models.Driver) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO drivers(name, image, car_plate_number, car_name, latitude, longitude)
		VALUES($1,$2,$3,$4,$5,$6)
		ON CONFLICT (car_plate_number) DO UPDATE SET
			name=EXCLUDED.name, image=EXCLUDED.image, car_name=EXCLUDED.car_name,
			latitude=EXCLUDED.latitude, longitude=EXCLUDED.longitude`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, d := range drivers {
		if _, err := stmt.ExecContext(ctx, d.Name, d.Image, d.CarPlateNumber, d.CarName, d.Loc.Lat, d.Loc.Lon); err != nil {
			return fmt.Errorf("upsert driver %s: %w", d.CarPlateNumber, err)
		}
	}
	return tx.Commit()
}

func (p *PostgresStore) UpdateByPlate(ctx context.Context, plate string, d models.Driver) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE drivers SET name=$1, image=$2, longitude=$3, latitude=$4, car_name=$5 WHERE car_plate_number=$6`,
		d.Name, d.Image, d.Loc.Lon, d.Loc.Lat, d.CarName, plate)
	if err != nil {
		return fmt.Errorf("update driver %s: %w", plate, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) AllDrivers(ctx context.Context) ([]models.Driver, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, name, image, car_plate_number, car_name, latitude, longitude FROM drivers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.Driver{}
	for rows.Next() {
		var d models.Driver
		if err := rows.Scan(&d.ID, &d.Name, &d.Image, &d.CarPlateNumber, &d.CarName, &d.Loc.Lat, &d.Loc.Lon); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Drivers exposes the roster half of the store as a DriverStore; All on
// PostgresStore itself belongs to LocationStore.
func (p *PostgresStore) Drivers() DriverStore { return postgresDrivers{p} }

type postgresDrivers struct{ p *PostgresStore }

func (d postgresDrivers) UpsertAll(ctx context.Context, drivers []models.Driver) error {
	return d.p.UpsertAll(ctx, drivers)
}

func (d postgresDrivers) All(ctx context.Context) ([]models.Driver, error) {
	return d.p.AllDrivers(ctx)
}

func (d postgresDrivers) UpdateByPlate(ctx context.Context, plate string, drv models.Driver) error {
	return d.p.UpdateByPlate(ctx, plate, drv)
}
