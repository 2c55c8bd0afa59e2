package reward

import (
	"context"

	"github.com/kasuganosora/mvabs/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NopSink discards durable rewards.
type NopSink struct{}

func (NopSink) LearnSkill(context.Context, int, int) error   { return nil }
func (NopSink) AddGold(context.Context, string, int64) error { return nil }
func (NopSink) AddExp(context.Context, string, int64) error  { return nil }

// DBSink records rewards through gorm.
type DBSink struct {
	db *gorm.DB
}

func NewDBSink(db *gorm.DB) *DBSink {
	return &DBSink{db: db}
}

// LearnSkill is idempotent: learning a known skill again is a no-op.
func (s *DBSink) LearnSkill(ctx context.Context, templateID, skillID int) error {
	row := model.LearnedSkill{TemplateID: templateID, SkillID: skillID}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
}

func (s *DBSink) AddGold(ctx context.Context, party string, amount int64) error {
	return s.addLedger(ctx, party, "gold", amount)
}

func (s *DBSink) AddExp(ctx context.Context, party string, amount int64) error {
	return s.addLedger(ctx, party, "exp", amount)
}

func (s *DBSink) addLedger(ctx context.Context, party, column string, amount int64) error {
	if amount == 0 {
		return nil
	}
	row := model.PartyLedger{PartyKey: party}
	switch column {
	case "gold":
		row.Gold = amount
	case "exp":
		row.Exp = amount
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "party_key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			column:       gorm.Expr(column+" + ?", amount),
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(&row).Error
}

// Ledger returns the accumulated totals for party.
func (s *DBSink) Ledger(ctx context.Context, party string) (model.PartyLedger, error) {
	var row model.PartyLedger
	err := s.db.WithContext(ctx).Where("party_key = ?", party).First(&row).Error
	return row, err
}
