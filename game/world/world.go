package world

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// WorldManager manages all active MapRoom instances.
type WorldManager struct {
	mu     sync.RWMutex
	rooms  map[int]*MapRoom
	opts   Options
	logger *zap.Logger
}

// NewWorldManager creates a new WorldManager. opts applies to every room.
func NewWorldManager(opts Options) *WorldManager {
	opts.fill()
	return &WorldManager{
		rooms:  make(map[int]*MapRoom),
		opts:   opts,
		logger: opts.Logger,
	}
}

// GetOrCreate returns the MapRoom for mapID, creating and starting it if needed.
func (wm *WorldManager) GetOrCreate(mapID int) *MapRoom {
	// Fast path: room already exists.
	wm.mu.RLock()
	room, ok := wm.rooms[mapID]
	wm.mu.RUnlock()
	if ok {
		return room
	}

	wm.mu.Lock()
	defer wm.mu.Unlock()
	if room, ok = wm.rooms[mapID]; ok {
		return room
	}
	room = newMapRoom(mapID, wm.opts)
	wm.rooms[mapID] = room
	go room.Run()
	wm.logger.Info("map room created", zap.Int("map_id", mapID))
	return room
}

// Get returns the MapRoom for mapID, or nil if it does not exist.
func (wm *WorldManager) Get(mapID int) *MapRoom {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	return wm.rooms[mapID]
}

// Destroy flushes the memory of a room, then stops and removes it.
func (wm *WorldManager) Destroy(ctx context.Context, mapID int) bool {
	wm.mu.Lock()
	room, ok := wm.rooms[mapID]
	if ok {
		delete(wm.rooms, mapID)
	}
	wm.mu.Unlock()
	if !ok {
		return false
	}
	if _, err := room.FlushMemory(ctx); err != nil {
		wm.logger.Warn("flush on destroy failed", zap.Int("map_id", mapID), zap.Error(err))
	}
	room.Stop()
	wm.logger.Info("map room destroyed", zap.Int("map_id", mapID))
	return true
}

// MapIDs returns the IDs of the active rooms in ascending order.
func (wm *WorldManager) MapIDs() []int {
	wm.mu.RLock()
	ids := make([]int, 0, len(wm.rooms))
	for id := range wm.rooms {
		ids = append(ids, id)
	}
	wm.mu.RUnlock()
	sort.Ints(ids)
	return ids
}

// ActiveRoomCount returns the number of active map rooms.
func (wm *WorldManager) ActiveRoomCount() int {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	return len(wm.rooms)
}

// FlushMemory saves the battle memory of every room. It returns the number
// of controllers saved and every error encountered.
func (wm *WorldManager) FlushMemory(ctx context.Context) (int, error) {
	total := 0
	var errs []error
	for _, id := range wm.MapIDs() {
		room := wm.Get(id)
		if room == nil {
			continue
		}
		n, err := room.FlushMemory(ctx)
		total += n
		if err != nil && !errors.Is(err, ErrRoomStopped) {
			errs = append(errs, err)
		}
	}
	return total, errors.Join(errs...)
}

// StopAll flushes and stops all active map rooms (used at server shutdown).
func (wm *WorldManager) StopAll(ctx context.Context) {
	for _, id := range wm.MapIDs() {
		wm.Destroy(ctx, id)
	}
}
