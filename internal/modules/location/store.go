package location

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/sbw-site/geotrack/internal/models"
	"github.com/sbw-site/geotrack/internal/pkg/apperr"
	"github.com/sbw-site/geotrack/internal/pkg/pagination"
	"github.com/sbw-site/geotrack/internal/pkg/response"
)

const insertBatchSize = 500

// rangeOrder keeps pings of one batch (which share a timestamp) in the
// order the client recorded them.
const rangeOrder = "`timestamp` ASC, `date` ASC, `time` ASC, `id` ASC"

// Store persists and queries location pings.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store { return &Store{db: db} }

// BulkInsert writes rows in one transaction; either all rows land or none.
func (s *Store) BulkInsert(ctx context.Context, rows []models.LocationData) error {
	if len(rows) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&rows, insertBatchSize).Error
	})
	if err != nil {
		return apperr.Persistence(err, "save location batch")
	}
	return nil
}

// Range returns userID's pings with start <= timestamp <= end, oldest first.
func (s *Store) Range(ctx context.Context, userID string, start, end time.Time) ([]models.LocationData, error) {
	var rows []models.LocationData
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND timestamp >= ? AND timestamp <= ?", userID, start, end).
		Order(rangeOrder).
		Find(&rows).Error
	if err != nil {
		return nil, apperr.Persistence(err, "load pings for %s", userID)
	}
	return rows, nil
}

// ActiveUsers returns the distinct users with at least one ping in
// [start, end].
func (s *Store) ActiveUsers(ctx context.Context, start, end time.Time) ([]string, error) {
	var users []string
	err := s.db.WithContext(ctx).
		Model(&models.LocationData{}).
		Where("timestamp >= ? AND timestamp <= ?", start, end).
		Distinct("user_id").
		Order("user_id").
		Pluck("user_id", &users).Error
	if err != nil {
		return nil, apperr.Persistence(err, "list active users")
	}
	return users, nil
}

// ListFilter narrows the admin listing.
type ListFilter struct {
	UserID   string
	SocketID string
	Date     string
}

// List pages through pings, newest first.
func (s *Store) List(ctx context.Context, f ListFilter, q pagination.Query) ([]models.LocationData, response.Pagination, error) {
	tx := s.db.WithContext(ctx).Model(&models.LocationData{})
	if f.UserID != "" {
		tx = tx.Where("user_id = ?", f.UserID)
	}
	if f.SocketID != "" {
		tx = tx.Where("socket_id = ?", f.SocketID)
	}
	if f.Date != "" {
		tx = tx.Where("`date` = ?", f.Date)
	}
	tx = tx.Order("`timestamp` DESC, `time` DESC")

	var items []models.LocationData
	pag, err := pagination.Paginate(tx, q, &items)
	if err != nil {
		return nil, response.Pagination{}, apperr.Persistence(err, "list pings")
	}
	return items, pag, nil
}
