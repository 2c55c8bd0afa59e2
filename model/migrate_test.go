package model_test

import (
	"testing"
	"time"

	"github.com/kasuganosora/mvabs/model"
	"github.com/kasuganosora/mvabs/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestAutoMigrate_InsertAndQuery(t *testing.T) {
	db := testutil.SetupTestDB(t)

	rec := &model.BattleMemoryRecord{ControllerKey: 3, TargetID: 10, SkillID: 1, Effectiveness: 1.5, LastDamage: 42}
	require.NoError(t, db.Create(rec).Error)
	assert.Greater(t, rec.ID, int64(0))

	var found model.BattleMemoryRecord
	require.NoError(t, db.First(&found, rec.ID).Error)
	assert.Equal(t, 42, found.LastDamage)

	dup := &model.BattleMemoryRecord{ControllerKey: 3, TargetID: 10, SkillID: 1}
	assert.Error(t, db.Create(dup).Error, "controller/target/skill is unique")

	require.NoError(t, db.Create(&model.LearnedSkill{TemplateID: 3, SkillID: 7}).Error)
	require.NoError(t, db.Create(&model.PartyLedger{PartyKey: "default", Gold: 10}).Error)

	unit := int64(5)
	al := &model.AuditLog{
		TraceID: "trace-001", Action: "set_mode", MapID: 1, UnitID: &unit,
		Request:   datatypes.JSON(`{"mode":"support"}`),
		CreatedAt: time.Now(),
	}
	require.NoError(t, db.Create(al).Error)
}
