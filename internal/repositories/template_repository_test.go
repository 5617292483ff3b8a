package repositories

import (
	"context"
	"testing"
	"time"

	"example.com/backstage/invoicing/internal/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func createTemplate(t *testing.T, repo *TemplateRepository, nextRun *time.Time) *models.RecurrenceTemplate {
	t.Helper()

	line, err := models.NewLineAmounts("Retainer", decimal.NewFromInt(1), decimal.NewFromInt(500), decimal.NewFromInt(19))
	require.NoError(t, err)

	tmpl, err := models.NewRecurrenceTemplate(models.TemplateParams{
		CustomerID:  uuid.New(),
		Name:        "Retainer",
		Currency:    "EUR",
		Unit:        models.FrequencyMonthly,
		Interval:    1,
		AnchorDate:  day(2026, 1, 15),
		EndStrategy: models.EndNever,
		Lines:       []models.LineAmounts{line},
	})
	require.NoError(t, err)
	tmpl.NextRunAt = nextRun

	require.NoError(t, repo.Create(context.Background(), tmpl))
	return tmpl
}

func TestFindDueIsInclusiveAndOrdered(t *testing.T) {
	db := newTestDB(t)
	repo := NewTemplateRepository(db, db)
	ctx := context.Background()

	jan15 := day(2026, 1, 15)
	jan10 := day(2026, 1, 10)
	feb1 := day(2026, 2, 1)

	later := createTemplate(t, repo, &jan15)
	earlier := createTemplate(t, repo, &jan10)
	createTemplate(t, repo, &feb1)
	createTemplate(t, repo, nil)

	due, err := repo.FindDue(ctx, jan15)
	require.NoError(t, err)
	require.Len(t, due, 2)
	require.Equal(t, earlier.ID, due[0].ID)
	require.Equal(t, later.ID, due[1].ID)
	require.Len(t, due[0].Lines, 1)

	due, err = repo.FindDue(ctx, day(2026, 1, 14))
	require.NoError(t, err)
	require.Len(t, due, 1)
}

func TestFindDueSkipsArchivedTemplates(t *testing.T) {
	db := newTestDB(t)
	repo := NewTemplateRepository(db, db)

	jan15 := day(2026, 1, 15)
	tmpl := createTemplate(t, repo, &jan15)
	require.NoError(t, db.Delete(&models.RecurrenceTemplate{}, "id = ?", tmpl.ID).Error)

	due, err := repo.FindDue(context.Background(), jan15)
	require.NoError(t, err)
	require.Empty(t, due)
}

func TestSaveScheduleInsideTransaction(t *testing.T) {
	db := newTestDB(t)
	repo := NewTemplateRepository(db, db)
	ctx := context.Background()

	jan15 := day(2026, 1, 15)
	tmpl := createTemplate(t, repo, &jan15)

	err := db.Transaction(func(tx *gorm.DB) error {
		locked, err := repo.LockForUpdate(ctx, tx, tmpl.ID)
		if err != nil {
			return err
		}
		next := day(2026, 2, 15)
		locked.NextRunAt = &next
		locked.ScheduleIndex = 1
		locked.OccurrenceCount = 1
		locked.LastRunAt = &jan15
		return repo.SaveSchedule(ctx, tx, locked)
	})
	require.NoError(t, err)

	stored, err := repo.GetByID(ctx, tmpl.ID)
	require.NoError(t, err)
	require.Equal(t, 1, stored.ScheduleIndex)
	require.Equal(t, 1, stored.OccurrenceCount)
	require.True(t, day(2026, 2, 15).Equal(*stored.NextRunAt))
}

func TestGetTemplateNotFound(t *testing.T) {
	db := newTestDB(t)
	repo := NewTemplateRepository(db, db)

	_, err := repo.GetByID(context.Background(), uuid.New())
	require.True(t, errors.Is(err, ErrNotFound))
}
