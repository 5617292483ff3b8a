package repositories

import (
	"context"
	"time"

	"example.com/backstage/invoicing/internal/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TemplateRepository provides access to recurrence templates
type TemplateRepository struct {
	db         *gorm.DB // Write database
	readOnlyDB *gorm.DB // Read-only database
}

// NewTemplateRepository creates a new recurrence template repository
func NewTemplateRepository(db *gorm.DB, readOnlyDB *gorm.DB) *TemplateRepository {
	return &TemplateRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// Create stores a template together with its lines and installment plan
func (r *TemplateRepository) Create(ctx context.Context, template *models.RecurrenceTemplate) error {
	if err := r.db.WithContext(ctx).Create(template).Error; err != nil {
		return errors.Wrap(translate(err), "failed to create recurrence template")
	}
	return nil
}

// GetByID loads a template with its lines and installment plan
func (r *TemplateRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.RecurrenceTemplate, error) {
	var template models.RecurrenceTemplate
	err := r.readOnlyDB.WithContext(ctx).
		Preload("Lines", orderBy("position")).
		Preload("Installments", orderBy("sequence")).
		First(&template, "id = ?", id).Error
	if err != nil {
		return nil, errors.Wrap(translate(err), "failed to get recurrence template")
	}
	return &template, nil
}

// List returns templates for a customer, or all templates when customerID is nil
func (r *TemplateRepository) List(ctx context.Context, customerID *uuid.UUID, limit, offset int) ([]models.RecurrenceTemplate, error) {
	var templates []models.RecurrenceTemplate
	q := r.readOnlyDB.WithContext(ctx).Preload("Lines", orderBy("position"))
	if customerID != nil {
		q = q.Where("customer_id = ?", *customerID)
	}
	err := q.Order("created_at ASC").Order("id ASC").Limit(limit).Offset(offset).Find(&templates).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list recurrence templates")
	}
	return templates, nil
}

// FindDue returns every non-terminal template whose next run is at or before asOf,
// oldest first with the id as tie-break. Reads go to the write database so a
// pass never sees a stale replica and re-generates an occurrence.
func (r *TemplateRepository) FindDue(ctx context.Context, asOf time.Time) ([]models.RecurrenceTemplate, error) {
	var templates []models.RecurrenceTemplate
	err := r.db.WithContext(ctx).
		Preload("Lines", orderBy("position")).
		Preload("Installments", orderBy("sequence")).
		Where("next_run_at IS NOT NULL AND next_run_at <= ?", asOf.UTC()).
		Order("next_run_at ASC").
		Order("id ASC").
		Find(&templates).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to find due recurrence templates")
	}
	return templates, nil
}

// LockForUpdate re-reads a template inside tx holding a row lock until tx ends
func (r *TemplateRepository) LockForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.RecurrenceTemplate, error) {
	var template models.RecurrenceTemplate
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&template).Error
	if err != nil {
		return nil, errors.Wrap(translate(err), "failed to lock recurrence template")
	}
	return &template, nil
}

// SaveSchedule persists the schedule fields changed by the recurrence engine
func (r *TemplateRepository) SaveSchedule(ctx context.Context, tx *gorm.DB, template *models.RecurrenceTemplate) error {
	result := tx.WithContext(ctx).
		Model(&models.RecurrenceTemplate{}).
		Where("id = ?", template.ID).
		Updates(map[string]interface{}{
			"next_run_at":      template.NextRunAt,
			"schedule_index":   template.ScheduleIndex,
			"occurrence_count": template.OccurrenceCount,
			"last_run_at":      template.LastRunAt,
			"updated_at":       time.Now().UTC(),
		})
	if result.Error != nil {
		return errors.Wrap(translate(result.Error), "failed to save recurrence schedule")
	}
	if result.RowsAffected == 0 {
		return errors.Wrap(ErrNotFound, "no recurrence template updated")
	}
	return nil
}

func orderBy(column string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Order(column + " ASC")
	}
}
