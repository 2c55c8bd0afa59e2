package world

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/kasuganosora/mvabs/game/battle"
	"github.com/kasuganosora/mvabs/game/memory"
	"github.com/kasuganosora/mvabs/game/reward"
	"github.com/kasuganosora/mvabs/plugin/hook"
	"github.com/kasuganosora/mvabs/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	heroID    int64 = 1
	fighterID int64 = 2
	orcID     int64 = 10
)

// goldSink records gold grants. release, when set, holds every write until
// it is closed.
type goldSink struct {
	reward.NopSink
	release chan struct{}

	mu   sync.Mutex
	gold map[string]int64
}

func (s *goldSink) AddGold(ctx context.Context, party string, n int64) error {
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gold[party] += n
	return nil
}

func (s *goldSink) total(party string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gold[party]
}

// startRoom runs a room without a ticker; frames advance through Step.
func startRoom(t *testing.T, opts Options) *MapRoom {
	t.Helper()
	if opts.Catalog == nil {
		opts.Catalog = testCatalog()
	}
	if opts.Seed == 0 {
		opts.Seed = 42
	}
	room := newMapRoom(1, opts)
	go room.Run()
	t.Cleanup(room.Stop)
	return room
}

func spawn(t *testing.T, room *MapRoom, req SpawnRequest) battle.UnitSnapshot {
	t.Helper()
	snap, err := room.Spawn(context.Background(), req)
	require.NoError(t, err)
	return snap
}

// party spawns the primary hero at (0,0) and a fighter at (0,1).
func party(t *testing.T, room *MapRoom) {
	spawn(t, room, SpawnRequest{ID: heroID, TemplateID: 1, Primary: true})
	spawn(t, room, SpawnRequest{ID: fighterID, TemplateID: 1, Y: 1})
}

func unit(t *testing.T, room *MapRoom, id int64, fn func(battle.Combatant)) {
	t.Helper()
	require.NoError(t, room.withUnit(context.Background(), id, func(c battle.Combatant) error {
		fn(c)
		return nil
	}))
}

func step(t *testing.T, room *MapRoom) {
	t.Helper()
	require.NoError(t, room.Step(context.Background()))
}

func TestRoom_DecisionIsTelegraphed(t *testing.T) {
	ctx := context.Background()
	_, ps := testutil.SetupTestCache(t)
	msgs, unsub, err := ps.Subscribe(ctx, TelegraphChannel(1))
	require.NoError(t, err)
	defer unsub()

	hooks := hook.NewHookCenter()
	var cues []battle.Cue
	hooks.Register(hook.OnActionDecided, 0, "test", func(_ context.Context, _ string, data interface{}) (interface{}, error) {
		cues = append(cues, data.(battle.Cue))
		return data, nil
	})
	room := startRoom(t, Options{Hooks: hooks, PubSub: ps})
	spawn(t, room, SpawnRequest{ID: heroID, TemplateID: 1, X: 1, Primary: true})
	spawn(t, room, SpawnRequest{ID: orcID, TemplateID: 100})

	step(t, room)
	want := battle.Cue{UnitID: orcID, TargetID: heroID, SkillID: skSlash, Kind: battle.CueOffensive, Frame: 1}
	assert.Equal(t, []battle.Cue{want}, cues)

	select {
	case msg := <-msgs:
		var got battle.Cue
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatal("telegraph not published")
	}
}

func TestRoom_ResolutionFeedsAggroMemoryAndCombo(t *testing.T) {
	room := startRoom(t, Options{})
	party(t, room)
	spawn(t, room, SpawnRequest{ID: orcID, TemplateID: 100, X: 1, Y: 1})

	unit(t, room, fighterID, func(c battle.Combatant) {
		c.Base().Slots.Get(battle.SlotPrimary).LastSkillID = skSlash
	})
	require.NoError(t, room.Submit(battle.ResolutionEvent{
		AttackerID: fighterID, TargetID: orcID, SkillID: skSlash, HPDelta: 40, Effectiveness: 1.5,
	}))
	step(t, room)

	unit(t, room, orcID, func(c battle.Combatant) {
		u := c.Base()
		assert.Equal(t, 20, u.Stats.HP)
		assert.InDelta(t, 140, u.Aggro.Get(fighterID), 1e-9, "base 100 plus 40 damage")
	})
	unit(t, room, fighterID, func(c battle.Combatant) {
		u := c.Base()
		e, ok := u.Controller.Memory.Get(orcID, skSlash)
		require.True(t, ok)
		assert.Equal(t, memory.Entry{Effectiveness: 1.5, LastDamage: 40}, e)
		assert.Equal(t, skCross, u.Slots.Get(battle.SlotPrimary).Effective(), "combo window opened")
	})
}

func TestRoom_PrimaryAttackerAggroIsScaled(t *testing.T) {
	room := startRoom(t, Options{})
	party(t, room)
	spawn(t, room, SpawnRequest{ID: orcID, TemplateID: 100, X: 1})

	require.NoError(t, room.Submit(battle.ResolutionEvent{AttackerID: heroID, TargetID: orcID, SkillID: skSlash, HPDelta: 20}))
	step(t, room)
	unit(t, room, orcID, func(c battle.Combatant) {
		assert.InDelta(t, 60, c.Base().Aggro.Get(heroID), 1e-9)
	})
}

func TestRoom_HitFromOutsideSightAlerts(t *testing.T) {
	hooks := hook.NewHookCenter()
	var alerted []int64
	hooks.Register(hook.OnAlerted, 0, "test", func(_ context.Context, _ string, data interface{}) (interface{}, error) {
		alerted = append(alerted, data.(int64))
		return data, nil
	})
	room := startRoom(t, Options{Hooks: hooks})
	party(t, room)
	spawn(t, room, SpawnRequest{ID: orcID, TemplateID: 100, X: 9, Y: 1})

	require.NoError(t, room.Submit(battle.ResolutionEvent{AttackerID: fighterID, TargetID: orcID, SkillID: skBolt, HPDelta: 5}))
	step(t, room)

	assert.Equal(t, []int64{orcID}, alerted)
	unit(t, room, orcID, func(c battle.Combatant) {
		u := c.Base()
		assert.Equal(t, battle.EngageAlerted, u.Engagement.State)
		assert.Equal(t, battle.Point{Y: 1}, u.Engagement.AlertSource)
		assert.Equal(t, battle.IntentToward, u.Intent.Kind)
	})
}

func TestRoom_MissDoesNotAlert(t *testing.T) {
	room := startRoom(t, Options{})
	party(t, room)
	spawn(t, room, SpawnRequest{ID: orcID, TemplateID: 100, X: 9, Y: 1})

	require.NoError(t, room.Submit(battle.ResolutionEvent{AttackerID: fighterID, TargetID: orcID, SkillID: skBolt, Missed: true}))
	step(t, room)
	unit(t, room, orcID, func(c battle.Combatant) {
		u := c.Base()
		assert.Equal(t, battle.EngageIdle, u.Engagement.State)
		assert.InDelta(t, 110, u.Aggro.Get(fighterID), 1e-9, "a miss still draws aggro")
	})
}

func TestRoom_DefeatGrantsRewardsAndRemoves(t *testing.T) {
	sink := &goldSink{gold: map[string]int64{}}
	hooks := hook.NewHookCenter()
	var defeated []int64
	hooks.Register(hook.OnUnitDefeated, 0, "test", func(_ context.Context, _ string, data interface{}) (interface{}, error) {
		defeated = append(defeated, data.(int64))
		return data, nil
	})
	room := startRoom(t, Options{
		Party:   "alpha",
		Hooks:   hooks,
		Rewards: reward.New(sink, testCatalog(), zap.NewNop()),
	})
	party(t, room)
	spawn(t, room, SpawnRequest{ID: orcID, TemplateID: 100, X: 1, Y: 1})

	// The fighter holds aggro toward the orc and targets it.
	unit(t, room, fighterID, func(c battle.Combatant) {
		u := c.Base()
		u.Aggro.Add(orcID, 10)
		u.TargetID = orcID
		u.Engagement.Engage()
	})
	require.NoError(t, room.Submit(battle.ResolutionEvent{AttackerID: fighterID, TargetID: orcID, SkillID: skSlash, HPDelta: 99}))
	step(t, room)

	assert.Equal(t, []int64{orcID}, defeated)
	assert.Eventually(t, func() bool { return sink.total("alpha") == 20 }, 2*time.Second, 10*time.Millisecond, "b.level * 10")
	_, err := room.Unit(context.Background(), orcID)
	assert.ErrorIs(t, err, ErrUnknownUnit)
	unit(t, room, fighterID, func(c battle.Combatant) {
		u := c.Base()
		assert.Zero(t, u.Aggro.Get(orcID))
		assert.Zero(t, u.TargetID)
		assert.NotEqual(t, battle.EngageEngaged, u.Engagement.State)
	})
}

func TestRoom_ConnectingSkillAppliesStates(t *testing.T) {
	room := startRoom(t, Options{})
	party(t, room)
	spawn(t, room, SpawnRequest{ID: orcID, TemplateID: 100, X: 5, Y: 5})
	unit(t, room, heroID, func(c battle.Combatant) {
		c.Base().Stats.AddState(stPoison, 0)
	})

	require.NoError(t, room.Submit(battle.ResolutionEvent{AttackerID: fighterID, TargetID: heroID, SkillID: skCure}))
	require.NoError(t, room.Submit(battle.ResolutionEvent{AttackerID: fighterID, TargetID: orcID, SkillID: skSeal, HPDelta: 1, Missed: true}))
	step(t, room)

	unit(t, room, heroID, func(c battle.Combatant) {
		assert.False(t, c.Base().Stats.HasState(stPoison), "cure removed the poison")
	})
	unit(t, room, orcID, func(c battle.Combatant) {
		assert.Empty(t, c.Base().Stats.States(), "a miss applies nothing")
	})

	require.NoError(t, room.Submit(battle.ResolutionEvent{AttackerID: fighterID, TargetID: orcID, SkillID: skSeal, HPDelta: 1}))
	step(t, room)
	var before float64
	unit(t, room, orcID, func(c battle.Combatant) {
		u := c.Base()
		calm, ok := u.Stats.State(stCalm)
		require.True(t, ok)
		assert.Equal(t, 29, calm.FramesLeft, "the state's own duration, ticked once")
		poison, ok := u.Stats.State(stPoison)
		require.True(t, ok)
		assert.Equal(t, 4, poison.FramesLeft, "the effect's duration wins")
		assert.True(t, u.AggroLocked())
		before = u.Aggro.Get(fighterID)
	})

	require.NoError(t, room.Submit(battle.ResolutionEvent{AttackerID: fighterID, TargetID: orcID, SkillID: skBolt, HPDelta: 10}))
	step(t, room)
	unit(t, room, orcID, func(c battle.Combatant) {
		assert.Equal(t, before, c.Base().Aggro.Get(fighterID), "calm freezes the aggro table")
	})
}

func TestRoom_SlowRewardSinkDoesNotStallFrames(t *testing.T) {
	sink := &goldSink{gold: map[string]int64{}, release: make(chan struct{})}
	room := startRoom(t, Options{
		Party:   "alpha",
		Rewards: reward.New(sink, testCatalog(), zap.NewNop()),
	})
	party(t, room)
	spawn(t, room, SpawnRequest{ID: orcID, TemplateID: 100, X: 1, Y: 1})

	require.NoError(t, room.Submit(battle.ResolutionEvent{AttackerID: fighterID, TargetID: orcID, SkillID: skSlash, HPDelta: 99}))
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	require.NoError(t, room.Step(ctx))
	_, err := room.Units(ctx)
	require.NoError(t, err, "commands keep flowing while the sink blocks")
	assert.Zero(t, sink.total("alpha"))

	close(sink.release)
	assert.Eventually(t, func() bool { return sink.total("alpha") == 20 }, 2*time.Second, 10*time.Millisecond)
}

func TestRoom_BeforeResolutionCanDropEvents(t *testing.T) {
	hooks := hook.NewHookCenter()
	hooks.Register(hook.BeforeResolution, 0, "shield", func(_ context.Context, _ string, data interface{}) (interface{}, error) {
		if data.(*battle.ResolutionEvent).HPDelta > 30 {
			return data, hook.ErrInterrupt
		}
		return data, nil
	})
	room := startRoom(t, Options{Hooks: hooks})
	party(t, room)
	spawn(t, room, SpawnRequest{ID: orcID, TemplateID: 100, X: 5, Y: 5})

	require.NoError(t, room.Submit(battle.ResolutionEvent{AttackerID: fighterID, TargetID: orcID, HPDelta: 50}))
	require.NoError(t, room.Submit(battle.ResolutionEvent{AttackerID: fighterID, TargetID: orcID, HPDelta: 10}))
	step(t, room)

	unit(t, room, orcID, func(c battle.Combatant) {
		assert.Equal(t, 50, c.Base().Stats.HP)
	})
}

func TestRoom_UnknownTargetIsIgnored(t *testing.T) {
	room := startRoom(t, Options{})
	party(t, room)
	require.NoError(t, room.Submit(battle.ResolutionEvent{AttackerID: fighterID, TargetID: 999, HPDelta: 10}))
	step(t, room)

	frame, err := room.Frame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), frame)
}

func TestRoom_DespawnClearsReferences(t *testing.T) {
	ctx := context.Background()
	room := startRoom(t, Options{})
	party(t, room)
	spawn(t, room, SpawnRequest{ID: orcID, TemplateID: 100, X: 1, Y: 1})

	require.NoError(t, room.Submit(battle.ResolutionEvent{AttackerID: fighterID, TargetID: orcID, SkillID: skSlash, HPDelta: 1}))
	step(t, room)
	unit(t, room, orcID, func(c battle.Combatant) {
		require.Equal(t, fighterID, c.Base().TargetID)
	})

	require.NoError(t, room.Despawn(ctx, fighterID))
	unit(t, room, orcID, func(c battle.Combatant) {
		u := c.Base()
		assert.Zero(t, u.Aggro.Get(fighterID))
		assert.Zero(t, u.TargetID)
		assert.True(t, u.Pending == nil || u.Pending.TargetID != fighterID)
	})
	assert.ErrorIs(t, room.Despawn(ctx, fighterID), ErrUnknownUnit)
}

func TestRoom_SpawnPrimaryDemotesPrevious(t *testing.T) {
	room := startRoom(t, Options{})
	party(t, room)
	snap := spawn(t, room, SpawnRequest{ID: 3, TemplateID: 2, Primary: true})
	assert.True(t, snap.Primary)

	units, err := room.Units(context.Background())
	require.NoError(t, err)
	require.Len(t, units, 3)
	assert.False(t, units[0].Primary)
	assert.True(t, units[2].Primary)
	assert.Empty(t, units[2].Mode, "the primary unit has no ai")
}

func TestRoom_CommandErrors(t *testing.T) {
	ctx := context.Background()
	room := startRoom(t, Options{})
	party(t, room)

	_, err := room.Spawn(ctx, SpawnRequest{TemplateID: 404})
	assert.ErrorIs(t, err, ErrUnknownTemplate)
	_, err = room.Spawn(ctx, SpawnRequest{TemplateID: 100, Primary: true})
	assert.ErrorIs(t, err, ErrInvalidPrimary)

	assert.ErrorIs(t, room.SetPosture(ctx, "sideways"), battle.ErrInvalidPosture)
	require.NoError(t, room.SetPosture(ctx, "Aggressive"))
	p, err := room.Posture(ctx)
	require.NoError(t, err)
	assert.Equal(t, battle.PostureAggressive, p)

	assert.ErrorIs(t, room.SetMode(ctx, heroID, "support"), ErrNoController)
	assert.ErrorIs(t, room.SetMode(ctx, 999, "support"), ErrUnknownUnit)
	assert.ErrorIs(t, room.SetMode(ctx, fighterID, "berserk"), battle.ErrInvalidMode)
	snap, err := room.Unit(ctx, fighterID)
	require.NoError(t, err)
	assert.Equal(t, battle.DefaultMode, snap.Mode, "invalid mode keeps the current one")
	require.NoError(t, room.SetMode(ctx, fighterID, "Full Force"))
	snap, _ = room.Unit(ctx, fighterID)
	assert.Equal(t, battle.ModeFullForce, snap.Mode)

	assert.ErrorIs(t, room.AssignSlot(ctx, fighterID, battle.SlotUtility, 999), ErrUnknownSkill)
	assert.ErrorIs(t, room.AssignSlot(ctx, fighterID, "weapon", skBolt), battle.ErrUnknownSlot)
	require.NoError(t, room.LockSlot(ctx, fighterID, battle.SlotUtility, true))
	assert.ErrorIs(t, room.AssignSlot(ctx, fighterID, battle.SlotUtility, skBolt), battle.ErrSlotLocked)
	require.NoError(t, room.LockSlot(ctx, fighterID, battle.SlotUtility, false))
	require.NoError(t, room.AssignSlot(ctx, fighterID, battle.SlotUtility, skBolt))
	require.NoError(t, room.UnassignSlot(ctx, fighterID, battle.SlotCombat1))

	require.NoError(t, room.SetPosition(ctx, fighterID, 0, 3))
	snap, _ = room.Unit(ctx, fighterID)
	assert.Equal(t, battle.Point{Y: 3}, snap.Pos)
	assert.Equal(t, battle.DirDown, snap.Facing)
}

func TestRoom_StoppedRoomRejects(t *testing.T) {
	room := startRoom(t, Options{})
	room.Stop()
	room.Stop()

	assert.ErrorIs(t, room.Step(context.Background()), ErrRoomStopped)
	assert.ErrorIs(t, room.Submit(battle.ResolutionEvent{}), ErrRoomStopped)
}

func TestRoom_FlushMemorySurvivesRooms(t *testing.T) {
	ctx := context.Background()
	c, _ := testutil.SetupTestCache(t)
	store := memory.NewSessionStore(c, time.Minute)

	room := startRoom(t, Options{Memory: store})
	party(t, room)
	spawn(t, room, SpawnRequest{ID: orcID, TemplateID: 100, X: 5, Y: 5})
	require.NoError(t, room.Submit(battle.ResolutionEvent{
		AttackerID: fighterID, TargetID: orcID, SkillID: skBolt, HPDelta: 12, Effectiveness: 0.5,
	}))
	step(t, room)

	n, err := room.FlushMemory(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only the fighter has learned anything")

	recs, err := store.Load(ctx, fighterID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, memory.Key{TargetID: orcID, SkillID: skBolt}, recs[0].Key)

	next := startRoom(t, Options{Memory: store})
	spawn(t, next, SpawnRequest{ID: fighterID, TemplateID: 1})
	spawn(t, next, SpawnRequest{ID: 3, TemplateID: 1})
	unit(t, next, fighterID, func(c battle.Combatant) {
		e, ok := c.Base().Controller.Memory.Get(orcID, skBolt)
		require.True(t, ok)
		assert.InDelta(t, 0.5, e.Effectiveness, 1e-9)
	})
	unit(t, next, 3, func(c battle.Combatant) {
		assert.Zero(t, c.Base().Controller.Memory.Len(), "another fighter starts with its own memory")
	})
}

func TestRoom_ControllersDoNotShareMemory(t *testing.T) {
	room := startRoom(t, Options{})
	party(t, room)
	spawn(t, room, SpawnRequest{ID: 3, TemplateID: 1, Y: 2})
	spawn(t, room, SpawnRequest{ID: orcID, TemplateID: 100, X: 5, Y: 5})
	spawn(t, room, SpawnRequest{ID: orcID + 1, TemplateID: 100, X: 6, Y: 5})

	require.NoError(t, room.Submit(battle.ResolutionEvent{
		AttackerID: fighterID, TargetID: orcID, SkillID: skBolt, HPDelta: 3, Effectiveness: 2,
	}))
	step(t, room)

	var mine *memory.Memory
	unit(t, room, fighterID, func(c battle.Combatant) {
		mine = c.Base().Controller.Memory
		_, ok := mine.Get(orcID, skBolt)
		assert.True(t, ok)
		_, ok = mine.Get(orcID+1, skBolt)
		assert.False(t, ok, "entries are kept per target unit")
	})
	unit(t, room, 3, func(c battle.Combatant) {
		other := c.Base().Controller.Memory
		assert.NotSame(t, mine, other)
		_, ok := other.Get(orcID, skBolt)
		assert.False(t, ok)
	})
}

func TestWorldManager_Lifecycle(t *testing.T) {
	ctx := context.Background()
	wm := NewWorldManager(Options{Catalog: testCatalog(), Seed: 1})
	t.Cleanup(func() { wm.StopAll(ctx) })

	r3 := wm.GetOrCreate(3)
	assert.Same(t, r3, wm.GetOrCreate(3))
	wm.GetOrCreate(1)
	assert.Equal(t, []int{1, 3}, wm.MapIDs())
	assert.Equal(t, 2, wm.ActiveRoomCount())

	spawn(t, r3, SpawnRequest{ID: heroID, TemplateID: 1, Primary: true})
	spawn(t, r3, SpawnRequest{ID: fighterID, TemplateID: 1, Y: 1})
	spawn(t, r3, SpawnRequest{ID: orcID, TemplateID: 100, X: 5, Y: 5})
	require.NoError(t, r3.Submit(battle.ResolutionEvent{AttackerID: fighterID, TargetID: orcID, SkillID: skBolt, HPDelta: 3}))
	step(t, r3)
	n, err := wm.FlushMemory(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.True(t, wm.Destroy(ctx, 3))
	assert.False(t, wm.Destroy(ctx, 3))
	assert.Nil(t, wm.Get(3))
	assert.ErrorIs(t, r3.Step(ctx), ErrRoomStopped)
	assert.Equal(t, 1, wm.ActiveRoomCount())
}
