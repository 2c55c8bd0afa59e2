package battle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotSet_AssignResetsCooldownAndCombo(t *testing.T) {
	ss := NewSlotSet()
	require.NoError(t, ss.Assign(SlotPrimary, 3))
	s := ss.Get(SlotPrimary)
	s.Cooldown = 12
	s.Combo = &ComboState{BaseSkillID: 3, SkillID: 4, LinkFrames: 5}
	s.LastSkillID = 3

	require.NoError(t, ss.Assign(SlotPrimary, 3))
	assert.Equal(t, 12, s.Cooldown, "rebinding the same skill is a no-op")

	require.NoError(t, ss.Assign(SlotPrimary, 7))
	assert.Equal(t, 7, s.SkillID)
	assert.Zero(t, s.Cooldown)
	assert.Nil(t, s.Combo)
	assert.Zero(t, s.LastSkillID)
}

func TestSlotSet_LockedAndUnknown(t *testing.T) {
	ss := NewSlotSet()
	require.NoError(t, ss.Assign(SlotCombat1, 2))
	require.NoError(t, ss.SetLocked(SlotCombat1, true))

	assert.ErrorIs(t, ss.Assign(SlotCombat1, 5), ErrSlotLocked)
	assert.ErrorIs(t, ss.Unassign(SlotCombat1), ErrSlotLocked)
	assert.Equal(t, 2, ss.Get(SlotCombat1).SkillID)

	assert.ErrorIs(t, ss.Assign("pocket", 1), ErrUnknownSlot)
	assert.ErrorIs(t, ss.SetLocked("pocket", true), ErrUnknownSlot)
	assert.Nil(t, ss.Get("pocket"))

	require.NoError(t, ss.SetLocked(SlotCombat1, false))
	require.NoError(t, ss.Unassign(SlotCombat1))
	assert.Zero(t, ss.Get(SlotCombat1).SkillID)
}

func TestSlot_ComboOverridesCooldown(t *testing.T) {
	s := &Slot{Key: SlotPrimary, SkillID: 1, Cooldown: 20}
	assert.False(t, s.Ready())
	assert.Equal(t, 1, s.Effective())

	s.Combo = &ComboState{BaseSkillID: 1, SkillID: 2, LinkFrames: 3}
	assert.True(t, s.Ready(), "a follow-up is usable during its link window")
	assert.Equal(t, 2, s.Effective())

	s.Combo.LinkFrames = 0
	assert.False(t, s.Ready())
	assert.Equal(t, 1, s.Effective())

	empty := &Slot{Key: SlotUtility}
	assert.False(t, empty.Ready())
}

func TestSlotSet_OrderAndQueries(t *testing.T) {
	ss := NewSlotSet()
	require.NoError(t, ss.Assign(SlotCombat2, 8))
	require.NoError(t, ss.Assign(SlotPrimary, 1))
	require.NoError(t, ss.Assign(SlotSecondary, 5))
	ss.Get(SlotSecondary).Cooldown = 4
	ss.Get(SlotPrimary).Combo = &ComboState{BaseSkillID: 1, SkillID: 2, LinkFrames: 10}
	ss.Get(SlotPrimary).LastSkillID = 1

	keys := make([]SlotKey, 0, len(SlotOrder))
	for _, s := range ss.All() {
		keys = append(keys, s.Key)
	}
	assert.Equal(t, SlotOrder, keys)

	assert.Equal(t, []int{2, 5, 8}, ss.Equipped())
	assert.Equal(t, []int{2, 8}, ss.Ready())

	assert.Equal(t, SlotPrimary, ss.Owning(2).Key)
	assert.Nil(t, ss.Owning(1), "the base skill is hidden while the follow-up is offered")
	assert.Equal(t, SlotPrimary, ss.Committed(1).Key, "hits for the base skill are still credited")
	assert.Equal(t, SlotCombat2, ss.Committed(8).Key)
	assert.Nil(t, ss.Committed(99))
}
