package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const expiryIndexKey = "pptxd:artifacts:expiry"

// markSwept sets swept_at only on a hash that still exists, keeping its TTL.
var markSwept = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return redis.call("HSET", KEYS[1], "swept_at", ARGV[1])
end
return 0
`)

// RedisCatalog keeps one hash per artifact with a native TTL and a sorted set
// of ids scored by expiry time.
type RedisCatalog struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisCatalog connects to redisURL and pings it.
func NewRedisCatalog(ctx context.Context, redisURL string) (*RedisCatalog, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisCatalog{client: client, now: time.Now}, nil
}

func (c *RedisCatalog) Close() error { return c.client.Close() }

func (c *RedisCatalog) Ping(ctx context.Context) error { return c.client.Ping(ctx).Err() }

func recordKey(id string) string {
	return fmt.Sprintf("pptxd:artifact:%s", id)
}

func expiryScore(t time.Time) float64 {
	return float64(t.Unix())
}

// recordTTL is the native key lifetime for a record expiring at expiresAt.
func recordTTL(now, expiresAt time.Time) time.Duration {
	ttl := expiresAt.Sub(now) + RecordGrace
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func encodeRecord(a Artifact) (map[string]any, error) {
	meta := []byte("{}")
	if a.Meta != nil {
		var err error
		if meta, err = json.Marshal(a.Meta); err != nil {
			return nil, fmt.Errorf("marshal meta: %w", err)
		}
	}
	fields := map[string]any{
		"id":         a.ID,
		"filename":   a.Filename,
		"backend":    a.Backend,
		"location":   a.Location,
		"key":        a.Key,
		"size":       a.Size,
		"sha256":     a.SHA256,
		"sealed":     strconv.FormatBool(a.Sealed),
		"meta":       string(meta),
		"created_at": a.CreatedAt.UTC().Format(time.RFC3339Nano),
		"expires_at": a.ExpiresAt.UTC().Format(time.RFC3339Nano),
	}
	if a.SweptAt != nil {
		fields["swept_at"] = a.SweptAt.UTC().Format(time.RFC3339Nano)
	}
	return fields, nil
}

func decodeRecord(fields map[string]string) (Artifact, error) {
	a := Artifact{
		ID:       fields["id"],
		Filename: fields["filename"],
		Backend:  fields["backend"],
		Location: fields["location"],
		Key:      fields["key"],
		SHA256:   fields["sha256"],
	}
	var err error
	if a.Size, err = strconv.ParseInt(fields["size"], 10, 64); err != nil {
		return Artifact{}, fmt.Errorf("size: %w", err)
	}
	if a.Sealed, err = strconv.ParseBool(fields["sealed"]); err != nil {
		return Artifact{}, fmt.Errorf("sealed: %w", err)
	}
	if a.CreatedAt, err = time.Parse(time.RFC3339Nano, fields["created_at"]); err != nil {
		return Artifact{}, fmt.Errorf("created_at: %w", err)
	}
	if a.ExpiresAt, err = time.Parse(time.RFC3339Nano, fields["expires_at"]); err != nil {
		return Artifact{}, fmt.Errorf("expires_at: %w", err)
	}
	if v := fields["swept_at"]; v != "" {
		at, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return Artifact{}, fmt.Errorf("swept_at: %w", err)
		}
		a.SweptAt = &at
	}
	if m := fields["meta"]; m != "" && m != "{}" {
		if err := json.Unmarshal([]byte(m), &a.Meta); err != nil {
			return Artifact{}, fmt.Errorf("meta: %w", err)
		}
	}
	return a, nil
}

func (c *RedisCatalog) Insert(ctx context.Context, a Artifact) error {
	fields, err := encodeRecord(a)
	if err != nil {
		return err
	}
	key := recordKey(a.ID)
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, recordTTL(c.now(), a.ExpiresAt))
	pipe.ZAdd(ctx, expiryIndexKey, redis.Z{Score: expiryScore(a.ExpiresAt), Member: a.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save record %s: %w", a.ID, err)
	}
	return nil
}

func (c *RedisCatalog) Lookup(ctx context.Context, id string) (Artifact, error) {
	fields, err := c.client.HGetAll(ctx, recordKey(id)).Result()
	if err != nil {
		return Artifact{}, fmt.Errorf("get record %s: %w", id, err)
	}
	if len(fields) == 0 {
		return Artifact{}, ErrNotFound
	}
	a, err := decodeRecord(fields)
	if err != nil {
		return Artifact{}, fmt.Errorf("decode record %s: %w", id, err)
	}
	return a, nil
}

// Expired returns records due before now. An id whose hash already aged out
// is returned with only its blob key so the sweep still removes the bytes.
func (c *RedisCatalog) Expired(ctx context.Context, now time.Time) ([]Artifact, error) {
	ids, err := c.client.ZRangeByScore(ctx, expiryIndexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatFloat(expiryScore(now), 'f', 0, 64),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("range expiry index: %w", err)
	}
	out := make([]Artifact, 0, len(ids))
	for _, id := range ids {
		a, err := c.Lookup(ctx, id)
		switch {
		case errors.Is(err, ErrNotFound):
			a = Artifact{ID: id, Key: BlobKey(id)}
		case err != nil:
			return nil, err
		case !a.Expired(now):
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (c *RedisCatalog) MarkSwept(ctx context.Context, id string, at time.Time) error {
	return markSwept.Run(ctx, c.client, []string{recordKey(id)}, at.UTC().Format(time.RFC3339Nano)).Err()
}

func (c *RedisCatalog) Remove(ctx context.Context, id string) error {
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, recordKey(id))
	pipe.ZRem(ctx, expiryIndexKey, id)
	_, err := pipe.Exec(ctx)
	return err
}
