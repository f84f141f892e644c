package migrations

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func init() {
	goose.AddMigrationContext(upArtifacts, downArtifacts)
}

// Artifact is the catalog row for one stored presentation.
type Artifact struct {
	ID        uuid.UUID         `gorm:"type:uuid;primaryKey"`
	Filename  string            `gorm:"type:text;not null"`
	Backend   string            `gorm:"type:text;not null"`
	Location  string            `gorm:"type:text;not null"`
	ObjectKey string            `gorm:"type:text;not null"`
	Size      int64             `gorm:"type:bigint;not null"`
	SHA256    string            `gorm:"column:sha256;type:text;not null"`
	Sealed    bool              `gorm:"type:boolean;not null;default:false"`
	Meta      datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt time.Time         `gorm:"type:timestamptz;not null;default:now()"`
	ExpiresAt time.Time         `gorm:"type:timestamptz;not null;index"`
	SweptAt   *time.Time        `gorm:"type:timestamptz"`
}

func open(tx *sql.Tx) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
}

func upArtifacts(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := open(tx)
	if err != nil {
		return err
	}
	return gormDB.WithContext(ctx).AutoMigrate(&Artifact{})
}

func downArtifacts(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := open(tx)
	if err != nil {
		return err
	}
	return gormDB.WithContext(ctx).Migrator().DropTable(&Artifact{})
}
