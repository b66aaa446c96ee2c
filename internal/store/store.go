package store

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hearthdata/hearth/pkg/connector/health"
	"github.com/hearthdata/hearth/pkg/errors"
	"github.com/hearthdata/hearth/pkg/models"
)

// PropertyRow is the persisted shape of a property record. Rows are unique
// per (external_id, source) so the same listing ingested from two sources is
// kept as two rows.
type PropertyRow struct {
	ID         string  `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ExternalID string  `gorm:"uniqueIndex:idx_property_external_source;not null" json:"external_id"`
	Source     string  `gorm:"uniqueIndex:idx_property_external_source;not null" json:"source"`
	Street     string  `json:"street"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	Zip        string  `json:"zip"`
	Price      float64 `json:"price"`
	Bedrooms   int     `json:"bedrooms"`
	Bathrooms  float64 `json:"bathrooms"`
	SquareFeet int     `json:"square_feet"`
	Status     string  `json:"status"`
	Metadata   string  `gorm:"type:text" json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides gorm's pluralization.
func (PropertyRow) TableName() string { return "properties" }

// HealthSnapshotRow is an append-only record of a connector health
// evaluation taken at the end of a sync run.
type HealthSnapshotRow struct {
	ID                string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Source            string    `gorm:"index;not null" json:"source"`
	Status            string    `json:"status"`
	ErrorRate         float64   `json:"error_rate"`
	AvgResponseTimeMS float64   `json:"avg_response_time_ms"`
	Requests          int64     `json:"requests"`
	Errors            int64     `json:"errors"`
	Timeouts          int64     `json:"timeouts"`
	RateLimitHits     int64     `json:"rate_limit_hits"`
	CheckedAt         time.Time `json:"checked_at"`
	CreatedAt         time.Time `json:"created_at"`
}

// TableName overrides gorm's pluralization.
func (HealthSnapshotRow) TableName() string { return "health_snapshots" }

// Store wraps the database handle with the operations the sync job needs.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by an already-opened database.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// FindByExternalIDAndSource looks up a property row by its identity tuple.
// A missing row returns (nil, nil) so callers can branch on presence without
// unwrapping errors.
func (s *Store) FindByExternalIDAndSource(ctx context.Context, externalID, source string) (*PropertyRow, error) {
	var row PropertyRow
	err := s.db.WithContext(ctx).
		Where("external_id = ? AND source = ?", externalID, source).
		First(&row).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to query property")
	}
	return &row, nil
}

// Upsert inserts the record or overwrites the existing row sharing its
// (external_id, source) tuple. It reports whether a new row was created.
func (s *Store) Upsert(ctx context.Context, rec *models.PropertyRecord) (bool, error) {
	if err := rec.Validate(); err != nil {
		return false, err
	}

	existing, err := s.FindByExternalIDAndSource(ctx, rec.ExternalID, rec.Source)
	if err != nil {
		return false, err
	}

	metadata := ""
	if len(rec.Metadata) > 0 {
		raw, err := json.Marshal(rec.Metadata)
		if err != nil {
			return false, errors.Wrap(err, errors.ErrorTypeData, "failed to encode metadata")
		}
		metadata = string(raw)
	}

	if existing != nil {
		existing.Street = rec.Address.Street
		existing.City = rec.Address.City
		existing.State = rec.Address.State
		existing.Zip = rec.Address.Zip
		existing.Price = rec.Price
		existing.Bedrooms = rec.Bedrooms
		existing.Bathrooms = rec.Bathrooms
		existing.SquareFeet = rec.SquareFeet
		existing.Status = rec.Status
		existing.Metadata = metadata
		if err := s.db.WithContext(ctx).Save(existing).Error; err != nil {
			return false, errors.Wrap(err, errors.ErrorTypeInternal, "failed to update property")
		}
		return false, nil
	}

	row := &PropertyRow{
		ID:         uuid.NewString(),
		ExternalID: rec.ExternalID,
		Source:     rec.Source,
		Street:     rec.Address.Street,
		City:       rec.Address.City,
		State:      rec.Address.State,
		Zip:        rec.Address.Zip,
		Price:      rec.Price,
		Bedrooms:   rec.Bedrooms,
		Bathrooms:  rec.Bathrooms,
		SquareFeet: rec.SquareFeet,
		Status:     rec.Status,
		Metadata:   metadata,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return false, errors.Wrap(err, errors.ErrorTypeInternal, "failed to insert property")
	}
	return true, nil
}

// CountProperties returns the number of stored property rows.
func (s *Store) CountProperties(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&PropertyRow{}).Count(&count).Error; err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeInternal, "failed to count properties")
	}
	return count, nil
}

// SaveHealthSnapshot appends a health evaluation for a source.
func (s *Store) SaveHealthSnapshot(ctx context.Context, snap health.Snapshot) error {
	row := &HealthSnapshotRow{
		ID:                uuid.NewString(),
		Source:            snap.Source,
		Status:            string(snap.Status),
		ErrorRate:         snap.ErrorRate,
		AvgResponseTimeMS: snap.AvgResponseTimeMS,
		Requests:          snap.Requests,
		Errors:            snap.Errors,
		Timeouts:          snap.Timeouts,
		RateLimitHits:     snap.RateLimitHits,
		CheckedAt:         snap.CheckedAt,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to save health snapshot")
	}
	return nil
}

// LatestHealthSnapshots returns the most recent snapshot per source.
func (s *Store) LatestHealthSnapshots(ctx context.Context) ([]HealthSnapshotRow, error) {
	var rows []HealthSnapshotRow
	err := s.db.WithContext(ctx).
		Raw(`SELECT h.* FROM health_snapshots h
		     JOIN (SELECT source, MAX(checked_at) AS checked_at
		           FROM health_snapshots GROUP BY source) latest
		     ON h.source = latest.source AND h.checked_at = latest.checked_at
		     ORDER BY h.source`).
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to load health snapshots")
	}
	return rows, nil
}
