package artifact

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"pptxd/pkg/db"
	"pptxd/pkg/db/migrations"
)

const selectArtifacts = `SELECT id, filename, backend, location, object_key, size, sha256, sealed, meta, created_at, expires_at, swept_at FROM artifacts`

// PostgresCatalog writes records through GORM and reads them with scany.
type PostgresCatalog struct {
	db *db.DB
}

func NewPostgresCatalog(conn *db.DB) (*PostgresCatalog, error) {
	if conn == nil || conn.Pool == nil || conn.ORM == nil {
		return nil, errors.New("postgres catalog needs a pool and an ORM session")
	}
	return &PostgresCatalog{db: conn}, nil
}

type artifactRow struct {
	ID        uuid.UUID      `db:"id"`
	Filename  string         `db:"filename"`
	Backend   string         `db:"backend"`
	Location  string         `db:"location"`
	ObjectKey string         `db:"object_key"`
	Size      int64          `db:"size"`
	SHA256    string         `db:"sha256"`
	Sealed    bool           `db:"sealed"`
	Meta      map[string]any `db:"meta"`
	CreatedAt time.Time      `db:"created_at"`
	ExpiresAt time.Time      `db:"expires_at"`
	SweptAt   *time.Time     `db:"swept_at"`
}

func (r artifactRow) toArtifact() Artifact {
	return Artifact{
		ID:        r.ID.String(),
		Filename:  r.Filename,
		CreatedAt: r.CreatedAt.UTC(),
		ExpiresAt: r.ExpiresAt.UTC(),
		Backend:   r.Backend,
		Location:  r.Location,
		Key:       r.ObjectKey,
		Size:      r.Size,
		SHA256:    r.SHA256,
		Sealed:    r.Sealed,
		Meta:      r.Meta,
		SweptAt:   r.SweptAt,
	}
}

func (c *PostgresCatalog) Insert(ctx context.Context, a Artifact) error {
	id, err := uuid.Parse(a.ID)
	if err != nil {
		return fmt.Errorf("artifact id: %w", err)
	}
	model := migrations.Artifact{
		ID:        id,
		Filename:  a.Filename,
		Backend:   a.Backend,
		Location:  a.Location,
		ObjectKey: a.Key,
		Size:      a.Size,
		SHA256:    a.SHA256,
		Sealed:    a.Sealed,
		Meta:      datatypes.JSONMap(a.Meta),
		CreatedAt: a.CreatedAt,
		ExpiresAt: a.ExpiresAt,
		SweptAt:   a.SweptAt,
	}
	return c.db.Write(ctx, func(tx *gorm.DB) error {
		return tx.Create(&model).Error
	})
}

func (c *PostgresCatalog) Lookup(ctx context.Context, id string) (Artifact, error) {
	var row artifactRow
	if err := c.db.Get(ctx, &row, selectArtifacts+` WHERE id = $1`, id); err != nil {
		if db.NotFound(err) {
			return Artifact{}, ErrNotFound
		}
		return Artifact{}, err
	}
	return row.toArtifact(), nil
}

func (c *PostgresCatalog) Expired(ctx context.Context, now time.Time) ([]Artifact, error) {
	var rows []artifactRow
	if err := c.db.Select(ctx, &rows, selectArtifacts+` WHERE expires_at < $1 ORDER BY expires_at`, now.UTC()); err != nil {
		return nil, err
	}
	out := make([]Artifact, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toArtifact())
	}
	return out, nil
}

func (c *PostgresCatalog) MarkSwept(ctx context.Context, id string, at time.Time) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("artifact id: %w", err)
	}
	return c.db.Write(ctx, func(tx *gorm.DB) error {
		return tx.Model(&migrations.Artifact{}).Where("id = ?", uid).Update("swept_at", at.UTC()).Error
	})
}

func (c *PostgresCatalog) Remove(ctx context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("artifact id: %w", err)
	}
	return c.db.Write(ctx, func(tx *gorm.DB) error {
		return tx.Delete(&migrations.Artifact{}, "id = ?", uid).Error
	})
}

// Ping reports whether the database answers.
func (c *PostgresCatalog) Ping(ctx context.Context) error { return c.db.Ping(ctx) }
