package model

import "time"

// LearnedSkill records a skill granted to an ally template by a reward.
type LearnedSkill struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TemplateID int       `gorm:"uniqueIndex:idx_learned_skill;not null" json:"template_id"`
	SkillID    int       `gorm:"uniqueIndex:idx_learned_skill;not null" json:"skill_id"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// PartyLedger accumulates gold and experience earned by a party.
type PartyLedger struct {
	PartyKey  string    `gorm:"primaryKey;size:64" json:"party_key"`
	Gold      int64     `gorm:"default:0" json:"gold"`
	Exp       int64     `gorm:"default:0" json:"exp"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
