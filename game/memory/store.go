package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kasuganosora/mvabs/cache"
	"github.com/kasuganosora/mvabs/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store persists controller memories between spawns. Controllers are keyed
// by the instance ID of the unit they drive.
type Store interface {
	Load(ctx context.Context, controller int64) ([]Record, error)
	Save(ctx context.Context, controller int64, recs []Record) error
}

// NopStore keeps nothing; memory lives only as long as its controller.
type NopStore struct{}

func (NopStore) Load(context.Context, int64) ([]Record, error) { return nil, nil }
func (NopStore) Save(context.Context, int64, []Record) error   { return nil }

// ---- session scope ----

// SessionStore keeps a JSON snapshot per controller in the cache with a TTL,
// so memory survives map transitions for the length of a play session.
type SessionStore struct {
	c   cache.Cache
	ttl time.Duration
}

func NewSessionStore(c cache.Cache, ttl time.Duration) *SessionStore {
	return &SessionStore{c: c, ttl: ttl}
}

func sessionKey(controller int64) string {
	return fmt.Sprintf("abs:memory:%d", controller)
}

func (s *SessionStore) Load(ctx context.Context, controller int64) ([]Record, error) {
	raw, err := s.c.Get(ctx, sessionKey(controller))
	if cache.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var recs []Record
	if err := json.Unmarshal([]byte(raw), &recs); err != nil {
		return nil, fmt.Errorf("memory: decode snapshot %d: %w", controller, err)
	}
	return recs, nil
}

func (s *SessionStore) Save(ctx context.Context, controller int64, recs []Record) error {
	data, err := json.Marshal(recs)
	if err != nil {
		return err
	}
	return s.c.Set(ctx, sessionKey(controller), string(data), s.ttl)
}

// ---- durable scope ----

// DBStore upserts one row per (controller, target, skill).
type DBStore struct {
	db *gorm.DB
}

func NewDBStore(db *gorm.DB) *DBStore {
	return &DBStore{db: db}
}

func (s *DBStore) Load(ctx context.Context, controller int64) ([]Record, error) {
	var rows []model.BattleMemoryRecord
	if err := s.db.WithContext(ctx).Where("controller_key = ?", controller).Find(&rows).Error; err != nil {
		return nil, err
	}
	recs := make([]Record, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, Record{
			Key:   Key{TargetID: r.TargetID, SkillID: r.SkillID},
			Entry: Entry{Effectiveness: r.Effectiveness, LastDamage: r.LastDamage},
		})
	}
	return recs, nil
}

func (s *DBStore) Save(ctx context.Context, controller int64, recs []Record) error {
	if len(recs) == 0 {
		return nil
	}
	rows := make([]model.BattleMemoryRecord, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, model.BattleMemoryRecord{
			ControllerKey: controller,
			TargetID:      r.TargetID,
			SkillID:       r.SkillID,
			Effectiveness: r.Effectiveness,
			LastDamage:    r.LastDamage,
		})
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "controller_key"}, {Name: "target_id"}, {Name: "skill_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"effectiveness", "last_damage", "updated_at"}),
	}).Create(&rows).Error
}

// Open selects a store by persistence scope: "session", "durable" or "none".
func Open(scope string, c cache.Cache, db *gorm.DB, ttl time.Duration) (Store, error) {
	switch scope {
	case "", "session":
		if c == nil {
			return nil, fmt.Errorf("memory: session scope needs a cache")
		}
		return NewSessionStore(c, ttl), nil
	case "durable":
		if db == nil {
			return nil, fmt.Errorf("memory: durable scope needs a database")
		}
		return NewDBStore(db), nil
	case "none":
		return NopStore{}, nil
	}
	return nil, fmt.Errorf("memory: unknown persistence scope %q", scope)
}
