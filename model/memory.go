package model

import "time"

// BattleMemoryRecord is one learned (target, skill) observation of an AI
// controller. ControllerKey and TargetID are unit instance IDs.
type BattleMemoryRecord struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ControllerKey int64     `gorm:"uniqueIndex:idx_memory_key;not null" json:"controller_key"`
	TargetID      int64     `gorm:"uniqueIndex:idx_memory_key;not null" json:"target_id"`
	SkillID       int       `gorm:"uniqueIndex:idx_memory_key;not null" json:"skill_id"`
	Effectiveness float64   `gorm:"not null" json:"effectiveness"`
	LastDamage    int       `json:"last_damage"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
