package world

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/kasuganosora/mvabs/cache"
	"github.com/kasuganosora/mvabs/game/aggro"
	"github.com/kasuganosora/mvabs/game/battle"
	"github.com/kasuganosora/mvabs/game/memory"
	"github.com/kasuganosora/mvabs/game/reward"
	"github.com/kasuganosora/mvabs/plugin/hook"
	"go.uber.org/zap"
)

var (
	ErrRoomStopped     = errors.New("world: map room stopped")
	ErrEventQueueFull  = errors.New("world: event queue full")
	ErrUnknownUnit     = errors.New("world: unknown unit")
	ErrUnknownSkill    = errors.New("world: unknown skill")
	ErrNoController    = errors.New("world: unit has no ai controller")
	ErrUnknownTemplate = errors.New("world: unknown unit template")
	ErrInvalidPrimary  = errors.New("world: only an ally can be the primary unit")
)

// Options configures every MapRoom a WorldManager creates.
type Options struct {
	Catalog battle.Catalog
	Tuning  battle.Tuning
	Aggro   aggro.Config
	// Mode is the AI mode of spawned units whose template names none.
	Mode  string
	Party string
	// Frame is the simulation step. Zero or less disables the ticker; frames
	// then only advance through Step.
	Frame   time.Duration
	Memory  memory.Store
	Rewards *reward.Interpreter
	Hooks   *hook.HookCenter
	PubSub  cache.PubSub
	// Seed fixes the AI random source per map; zero seeds from the clock.
	Seed   int64
	Logger *zap.Logger
}

func (o *Options) fill() {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Memory == nil {
		o.Memory = memory.NopStore{}
	}
	if o.Hooks == nil {
		o.Hooks = hook.NewHookCenter()
	}
	if o.Tuning == (battle.Tuning{}) {
		o.Tuning = battle.DefaultTuning()
	}
	if o.Aggro == (aggro.Config{}) {
		o.Aggro = aggro.DefaultConfig()
	}
}

// TelegraphChannel is the pub/sub channel carrying decided-action cues of a map.
func TelegraphChannel(mapID int) string {
	return fmt.Sprintf("abs:telegraph:%d", mapID)
}

// MapRoom owns the simulation of a single map. All simulation state is
// touched only by the Run goroutine; other goroutines reach it through Do
// and Submit.
type MapRoom struct {
	MapID int

	opts    Options
	sim     *battle.Sim
	sched   *Scheduler
	spawner *Spawner

	events     chan battle.ResolutionEvent
	cmds       chan func()
	telegraphQ chan []byte
	stopCh     chan struct{}
	logger     *zap.Logger
}

// newMapRoom creates a MapRoom but does not start the game loop.
func newMapRoom(mapID int, opts Options) *MapRoom {
	opts.fill()
	logger := opts.Logger.With(zap.Int("map_id", mapID))

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	sim := battle.NewSim(opts.Catalog, rand.New(rand.NewSource(seed+int64(mapID))), logger)
	sim.Tuning = opts.Tuning

	room := &MapRoom{
		MapID:      mapID,
		opts:       opts,
		sim:        sim,
		events:     make(chan battle.ResolutionEvent, 1024),
		cmds:       make(chan func(), 64),
		telegraphQ: make(chan []byte, 512),
		stopCh:     make(chan struct{}),
		logger:     logger,
	}
	room.sched = NewScheduler(sim)
	room.spawner = NewSpawner(opts.Catalog, opts.Memory, opts.Mode, logger)
	sim.Notify = &roomNotifier{room: room}
	return room
}

// Run starts the frame loop. Call in a goroutine.
func (room *MapRoom) Run() {
	var tickC <-chan time.Time
	if room.opts.Frame > 0 {
		ticker := time.NewTicker(room.opts.Frame)
		defer ticker.Stop()
		tickC = ticker.C
	}
	if room.opts.PubSub != nil {
		go room.publishLoop()
	}
	for {
		select {
		case <-tickC:
			room.tick()
		case fn := <-room.cmds:
			fn()
		case <-room.stopCh:
			return
		}
	}
}

// Stop signals the frame loop to exit.
func (room *MapRoom) Stop() {
	select {
	case <-room.stopCh:
	default:
		close(room.stopCh)
	}
}

// StopChan returns a channel that is closed when this room is stopped.
func (room *MapRoom) StopChan() <-chan struct{} {
	return room.stopCh
}

// tick applies the queued resolution events in arrival order, then runs one
// scheduler frame.
func (room *MapRoom) tick() {
	for n := len(room.events); n > 0; n-- {
		room.apply(<-room.events)
	}
	room.sched.Step()
}

// Do runs fn on the loop goroutine and waits for its result.
func (room *MapRoom) Do(ctx context.Context, fn func() error) error {
	select {
	case <-room.stopCh:
		return ErrRoomStopped
	default:
	}
	done := make(chan error, 1)
	select {
	case room.cmds <- func() { done <- fn() }:
	case <-room.stopCh:
		return ErrRoomStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-room.stopCh:
		return ErrRoomStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit queues a resolution event for the next frame.
func (room *MapRoom) Submit(ev battle.ResolutionEvent) error {
	select {
	case <-room.stopCh:
		return ErrRoomStopped
	default:
	}
	select {
	case room.events <- ev:
		return nil
	default:
		room.logger.Warn("event queue full, dropping resolution event",
			zap.Int64("attacker_id", ev.AttackerID), zap.Int64("target_id", ev.TargetID))
		return ErrEventQueueFull
	}
}

// Step runs a single frame on the loop goroutine.
func (room *MapRoom) Step(ctx context.Context) error {
	return room.Do(ctx, func() error {
		room.tick()
		return nil
	})
}

// Frame returns the current frame number.
func (room *MapRoom) Frame(ctx context.Context) (uint64, error) {
	var f uint64
	err := room.Do(ctx, func() error {
		f = room.sim.Frame
		return nil
	})
	return f, err
}

// telegraph enqueues a cue for the publisher goroutine.
func (room *MapRoom) telegraph(cue battle.Cue) {
	if room.opts.PubSub == nil {
		return
	}
	data, err := json.Marshal(cue)
	if err != nil {
		return
	}
	select {
	case room.telegraphQ <- data:
	default:
		room.logger.Warn("telegraphQ full, dropping cue", zap.Int64("unit_id", cue.UnitID))
	}
}

func (room *MapRoom) publishLoop() {
	ch := TelegraphChannel(room.MapID)
	for {
		select {
		case data := <-room.telegraphQ:
			if err := room.opts.PubSub.Publish(context.Background(), ch, string(data)); err != nil {
				room.logger.Warn("telegraph publish failed", zap.Error(err))
			}
		case <-room.stopCh:
			return
		}
	}
}

// saveMemory persists a copy of recs off the loop goroutine.
func (room *MapRoom) saveMemory(key int64, recs []memory.Record) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := room.opts.Memory.Save(ctx, key, recs); err != nil {
			room.logger.Warn("save battle memory failed", zap.Int64("controller", key), zap.Error(err))
		}
	}()
}

// commitRewards writes reward grants to their sink off the loop goroutine.
func (room *MapRoom) commitRewards(unitID int64, grants []reward.Grant) {
	if len(grants) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if n := room.opts.Rewards.Commit(ctx, grants); n < len(grants) {
			room.logger.Warn("rewards partially committed",
				zap.Int64("unit_id", unitID), zap.Int("committed", n), zap.Int("grants", len(grants)))
		}
	}()
}

// FlushMemory persists the memory of every AI controller in the room and
// returns how many controllers were saved.
func (room *MapRoom) FlushMemory(ctx context.Context) (int, error) {
	snap := map[int64][]memory.Record{}
	err := room.Do(ctx, func() error {
		for _, c := range room.sim.Units.All() {
			ctrl := c.Base().Controller
			if ctrl == nil || ctrl.Memory == nil || ctrl.Memory.Len() == 0 {
				continue
			}
			snap[ctrl.Key] = ctrl.Memory.Records()
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	var errs []error
	for key, recs := range snap {
		if err := room.opts.Memory.Save(ctx, key, recs); err != nil {
			errs = append(errs, fmt.Errorf("controller %d: %w", key, err))
		}
	}
	return len(snap) - len(errs), errors.Join(errs...)
}
