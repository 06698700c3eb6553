package storage

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/codeBaron-dev/Rider/internal/models"
)

// RedisDriverStore keeps driver positions in a GEO set keyed by plate and the
// rest of the record in a hash per plate. Redis stores GEO members at ~0.6m
// precision, so positions read back are quantized.
type RedisDriverStore struct {
	client *redis.Client
	key    string
}

func NewRedisDriverStore(client *redis.Client, key string) *RedisDriverStore {
	if key == "" {
		key = "drivers_geo"
	}
	return &RedisDriverStore{client: client, key: key}
}

func (r *RedisDriverStore) UpsertAll(ctx context.Context, drivers []models.Driver) error {
	for _, d := range drivers {
		if err := r.upsert(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

func (r *RedisDriverStore) upsert(ctx context.Context, d models.Driver) error {
	meta := MetaKey(d.CarPlateNumber)
	id, err := r.client.HGet(ctx, meta, "id").Int64()
	if err == redis.Nil {
		id, err = r.client.Incr(ctx, r.key+":seq").Result()
	}
	if err != nil {
		return fmt.Errorf("driver %s id: %w", d.CarPlateNumber, err)
	}

	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.GeoAdd(ctx, r.key, &redis.GeoLocation{Longitude: d.Loc.Lon, Latitude: d.Loc.Lat, Name: d.CarPlateNumber})
		p.HSet(ctx, meta, map[string]interface{}{
			"id":       strconv.FormatInt(id, 10),
			"name":     d.Name,
			"image":    d.Image,
			"car_name": d.CarName,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert driver %s: %w", d.CarPlateNumber, err)
	}
	return nil
}

func (r *RedisDriverStore) UpdateByPlate(ctx context.Context, plate string, d models.Driver) error {
	n, err := r.client.Exists(ctx, MetaKey(plate)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	d.CarPlateNumber = plate
	return r.upsert(ctx, d)
}

// All returns the roster ordered by store ID.
func (r *RedisDriverStore) All(ctx context.Context) ([]models.Driver, error) {
	plates, err := r.client.ZRange(ctx, r.key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(plates) == 0 {
		return []models.Driver{}, nil
	}
	pos, err := r.client.GeoPos(ctx, r.key, plates...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.Driver, 0, len(plates))
	for i, plate := range plates {
		if pos[i] == nil {
			continue
		}
		d := models.Driver{CarPlateNumber: plate, Loc: models.Coord{Lat: pos[i].Latitude, Lon: pos[i].Longitude}}
		if m, err := r.client.HGetAll(ctx, MetaKey(plate)).Result(); err == nil {
			if v, ok := m["id"]; ok {
				if id, err := strconv.ParseInt(v, 10, 64); err == nil {
					d.ID = id
				}
			}
			d.Name = m["name"]
			d.Image = m["image"]
			d.CarName = m["car_name"]
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// MetaKey is the hash holding a driver's non-positional fields.
func MetaKey(plate string) string { return "driver:meta:" + plate }
