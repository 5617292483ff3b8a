package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (s *NumberSequence) BeforeCreate(tx *gorm.DB) error      { ensureID(&s.ID); return nil }
func (u *User) BeforeCreate(tx *gorm.DB) error                { ensureID(&u.ID); return nil }
func (c *Customer) BeforeCreate(tx *gorm.DB) error            { ensureID(&c.ID); return nil }
func (q *Quote) BeforeCreate(tx *gorm.DB) error               { ensureID(&q.ID); return nil }
func (l *QuoteLine) BeforeCreate(tx *gorm.DB) error           { ensureID(&l.ID); return nil }
func (t *RecurrenceTemplate) BeforeCreate(tx *gorm.DB) error  { ensureID(&t.ID); return nil }
func (l *TemplateLine) BeforeCreate(tx *gorm.DB) error        { ensureID(&l.ID); return nil }
func (i *TemplateInstallment) BeforeCreate(tx *gorm.DB) error { ensureID(&i.ID); return nil }
func (i *Invoice) BeforeCreate(tx *gorm.DB) error             { ensureID(&i.ID); return nil }
func (l *InvoiceLine) BeforeCreate(tx *gorm.DB) error         { ensureID(&l.ID); return nil }
func (i *InvoiceInstallment) BeforeCreate(tx *gorm.DB) error  { ensureID(&i.ID); return nil }
