package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Rakib-codee/harmonycare-backend/internal/model"
)

const (
	deviceKeyPrefix = "device:"
	// availableVolunteersKey is a sorted set of available volunteer keys scored by last-seen unix ms.
	availableVolunteersKey = "devices:available:volunteer"
)

const (
	fieldUserID      = "user_id"
	fieldRole        = "role"
	fieldPushToken   = "push_token"
	fieldIsAvailable = "is_available"
	fieldLatitude    = "latitude"
	fieldLongitude   = "longitude"
	fieldLastSeenAt  = "last_seen_at"
)

// RedisDeviceDirectory keeps each device in a hash at device:{role}_{userId}.
type RedisDeviceDirectory struct {
	client *redis.Client
}

// NewRedisDeviceDirectory creates a DeviceDirectory backed by client.
func NewRedisDeviceDirectory(client *redis.Client) *RedisDeviceDirectory {
	return &RedisDeviceDirectory{client: client}
}

// Upsert merges the provided fields into the device hash and maintains the availability index.
func (r *RedisDeviceDirectory) Upsert(ctx context.Context, u DeviceUpdate) error {
	key := model.DeviceKey(u.Role, u.UserID)
	fields := map[string]any{
		fieldUserID:     u.UserID,
		fieldRole:       string(u.Role),
		fieldLastSeenAt: u.SeenAt.UnixMilli(),
	}
	if u.PushToken != nil {
		fields[fieldPushToken] = *u.PushToken
	}
	if u.IsAvailable != nil {
		fields[fieldIsAvailable] = strconv.FormatBool(*u.IsAvailable)
	}
	if u.Location != nil {
		fields[fieldLatitude] = strconv.FormatFloat(u.Location.Lat, 'f', -1, 64)
		fields[fieldLongitude] = strconv.FormatFloat(u.Location.Lon, 'f', -1, 64)
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, deviceKeyPrefix+key, fields)
		if u.Role != model.RoleVolunteer {
			return nil
		}
		member := redis.Z{Score: float64(u.SeenAt.UnixMilli()), Member: key}
		switch {
		case u.IsAvailable == nil:
			// Heartbeat only: refresh the score if already indexed.
			pipe.ZAddXX(ctx, availableVolunteersKey, member)
		case *u.IsAvailable:
			pipe.ZAdd(ctx, availableVolunteersKey, member)
		default:
			pipe.ZRem(ctx, availableVolunteersKey, key)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to upsert device %s: %w", key, err)
	}
	return nil
}

func (r *RedisDeviceDirectory) Get(ctx context.Context, role model.Role, userID int64) (*model.Device, error) {
	key := model.DeviceKey(role, userID)
	values, err := r.client.HGetAll(ctx, deviceKeyPrefix+key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load device %s: %w", key, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("device %s: %w", key, ErrNotFound)
	}
	return decodeDevice(values)
}

func (r *RedisDeviceDirectory) AvailableVolunteers(ctx context.Context, limit int) ([]model.Device, error) {
	if limit <= 0 {
		return nil, nil
	}
	keys, err := r.client.ZRevRange(ctx, availableVolunteersKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list available volunteers: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(keys))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, key := range keys {
			cmds[i] = pipe.HGetAll(ctx, deviceKeyPrefix+key)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to load available volunteers: %w", err)
	}

	devices := make([]model.Device, 0, len(keys))
	for i, cmd := range cmds {
		values := cmd.Val()
		if len(values) == 0 {
			continue
		}
		device, err := decodeDevice(values)
		if err != nil {
			return nil, fmt.Errorf("device %s: %w", keys[i], err)
		}
		devices = append(devices, *device)
	}
	return devices, nil
}

func decodeDevice(values map[string]string) (*model.Device, error) {
	userID, err := strconv.ParseInt(values[fieldUserID], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", fieldUserID, err)
	}
	seenMs, err := strconv.ParseInt(values[fieldLastSeenAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", fieldLastSeenAt, err)
	}

	device := &model.Device{
		UserID:      userID,
		Role:        model.Role(values[fieldRole]),
		PushToken:   values[fieldPushToken],
		IsAvailable: values[fieldIsAvailable] == "true",
		LastSeenAt:  time.UnixMilli(seenMs).UTC(),
	}
	latRaw, hasLat := values[fieldLatitude]
	lonRaw, hasLon := values[fieldLongitude]
	if hasLat && hasLon {
		lat, err := strconv.ParseFloat(latRaw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", fieldLatitude, err)
		}
		lon, err := strconv.ParseFloat(lonRaw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", fieldLongitude, err)
		}
		device.Latitude = &lat
		device.Longitude = &lon
	}
	return device, nil
}

var _ DeviceDirectory = (*RedisDeviceDirectory)(nil)
