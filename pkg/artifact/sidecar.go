package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// SidecarCatalog keeps each record as JSON next to the blob, at MetaKey(id)
// in the same backend.
type SidecarCatalog struct {
	backend Backend
}

func NewSidecarCatalog(backend Backend) *SidecarCatalog {
	return &SidecarCatalog{backend: backend}
}

func (c *SidecarCatalog) Insert(ctx context.Context, a Artifact) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", a.ID, err)
	}
	_, err = c.backend.Put(ctx, MetaKey(a.ID), data, "application/json")
	return err
}

func (c *SidecarCatalog) Lookup(ctx context.Context, id string) (Artifact, error) {
	data, err := c.backend.Get(ctx, MetaKey(id))
	if err != nil {
		return Artifact{}, err
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return Artifact{}, fmt.Errorf("decode record %s: %w", id, err)
	}
	return a, nil
}

// Expired reads every record under MetaPrefix. Records that vanish between
// listing and reading are skipped.
func (c *SidecarCatalog) Expired(ctx context.Context, now time.Time) ([]Artifact, error) {
	keys, err := c.backend.List(ctx, MetaPrefix)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	var out []Artifact
	for _, key := range keys {
		id, ok := strings.CutSuffix(path.Base(key), ".json")
		if !ok {
			continue
		}
		a, err := c.Lookup(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if a.Expired(now) {
			out = append(out, a)
		}
	}
	return out, nil
}

// MarkSwept rewrites the record with SweptAt set.
func (c *SidecarCatalog) MarkSwept(ctx context.Context, id string, at time.Time) error {
	a, err := c.Lookup(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	a.SweptAt = &at
	return c.Insert(ctx, a)
}

func (c *SidecarCatalog) Remove(ctx context.Context, id string) error {
	return c.backend.Delete(ctx, MetaKey(id))
}
