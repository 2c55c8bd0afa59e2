package resource

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// ---- Skill attributes ----

// Scope names who a skill may target.
type Scope string

const (
	ScopeEnemy   Scope = "enemy"   // one opponent
	ScopeEnemies Scope = "enemies" // all opponents in range
	ScopeAlly    Scope = "ally"    // one living ally
	ScopeAllies  Scope = "allies"  // all living allies in range
	ScopeSelf    Scope = "self"
)

// DamageType uses the RMMV damage type codes.
type DamageType int

const (
	DamageNone DamageType = iota
	DamageHP
	DamageMP
	RecoverHP
	RecoverMP
	DrainHP
	DrainMP
)

// SkillDamage holds the damage formula and its type.
type SkillDamage struct {
	Type    DamageType `json:"type" yaml:"type"`
	Formula string     `json:"formula" yaml:"formula"`
}

// ComboAttr is the follow-up skill a slot switches to after a connecting hit.
type ComboAttr struct {
	SkillID  int `json:"skill_id" yaml:"skill_id"`
	LinkTime int `json:"link_time" yaml:"link_time"` // frames
}

// StateRemoval is a state-removal effect; Rate is 0.0-1.0.
type StateRemoval struct {
	StateID int     `json:"state_id" yaml:"state_id"`
	Rate    float64 `json:"rate" yaml:"rate"`
}

// StateApply is a state-apply effect. Frames <= 0 uses the state's own duration.
type StateApply struct {
	StateID int `json:"state_id" yaml:"state_id"`
	Frames  int `json:"frames" yaml:"frames"`
}

type SkillAttr struct {
	ID           int            `json:"id" yaml:"id"`
	Name         string         `json:"name" yaml:"name"`
	Scope        Scope          `json:"scope" yaml:"scope"`
	Damage       SkillDamage    `json:"damage" yaml:"damage"`
	MPCost       int            `json:"mp_cost" yaml:"mp_cost"`
	TPCost       int            `json:"tp_cost" yaml:"tp_cost"`
	Cooldown     int            `json:"cooldown" yaml:"cooldown"`   // frames
	CastTime     int            `json:"cast_time" yaml:"cast_time"` // frames
	Proximity    float64        `json:"proximity" yaml:"proximity"`
	AggroBonus   float64        `json:"aggro_bonus" yaml:"aggro_bonus"`
	AggroRate    *float64       `json:"aggro_rate" yaml:"aggro_rate"`
	Combo        *ComboAttr     `json:"combo" yaml:"combo"`
	FreeCombo    bool           `json:"free_combo" yaml:"free_combo"`
	AIExclude    bool           `json:"ai_exclude" yaml:"ai_exclude"`
	RemoveStates []StateRemoval `json:"remove_states" yaml:"remove_states"`
	AddStates    []StateApply   `json:"add_states" yaml:"add_states"`
}

// TargetsOpponent reports whether the skill is aimed at the other side.
func (s *SkillAttr) TargetsOpponent() bool {
	return s.Scope == ScopeEnemy || s.Scope == ScopeEnemies || s.Scope == ""
}

// TargetsAlly reports whether the skill can land on a friendly unit (self included).
func (s *SkillAttr) TargetsAlly() bool {
	return s.Scope == ScopeAlly || s.Scope == ScopeAllies || s.Scope == ScopeSelf
}

// IsArea reports whether the skill hits every unit on its side of the scope.
func (s *SkillAttr) IsArea() bool {
	return s.Scope == ScopeEnemies || s.Scope == ScopeAllies
}

func (s *SkillAttr) HealsHP() bool { return s.Damage.Type == RecoverHP }

// DealsDamage reports whether the skill removes HP from its target.
func (s *SkillAttr) DealsDamage() bool {
	return s.Damage.Type == DamageHP || s.Damage.Type == DrainHP
}

// RemovalRate returns the removal rate of stateID, or 0.
func (s *SkillAttr) RemovalRate(stateID int) float64 {
	best := 0.0
	for _, r := range s.RemoveStates {
		if r.StateID == stateID && r.Rate > best {
			best = r.Rate
		}
	}
	return best
}

// Rate returns the aggro multiplier, defaulting to 1.
func (s *SkillAttr) Rate() float64 {
	if s.AggroRate == nil {
		return 1
	}
	return *s.AggroRate
}

// ---- State attributes ----

type StateAttr struct {
	ID           int      `json:"id" yaml:"id"`
	Name         string   `json:"name" yaml:"name"`
	Negative     bool     `json:"negative" yaml:"negative"`
	AggroLock    bool     `json:"aggro_lock" yaml:"aggro_lock"`
	AggroInRate  *float64 `json:"aggro_in_rate" yaml:"aggro_in_rate"`
	AggroOutRate *float64 `json:"aggro_out_rate" yaml:"aggro_out_rate"`
	Frames       int      `json:"frames" yaml:"frames"` // 0 = until removed
}

// InRate returns the incoming aggro multiplier, defaulting to 1.
func (s *StateAttr) InRate() float64 {
	if s.AggroInRate == nil {
		return 1
	}
	return *s.AggroInRate
}

// OutRate returns the outgoing aggro multiplier, defaulting to 1.
func (s *StateAttr) OutRate() float64 {
	if s.AggroOutRate == nil {
		return 1
	}
	return *s.AggroOutRate
}

// ---- Unit attributes ----

// UnitKind separates hostile units from allies.
type UnitKind string

const (
	KindHostile UnitKind = "hostile"
	KindAlly    UnitKind = "ally"
)

// RewardAttr is one reward effect granted when a hostile is defeated.
type RewardAttr struct {
	Kind    string `json:"kind" yaml:"kind"`
	SkillID int    `json:"skill_id" yaml:"skill_id"`
	StateID int    `json:"state_id" yaml:"state_id"`
	Amount  string `json:"amount" yaml:"amount"` // formula
}

// Params order: 0=atk,1=def,2=mat,3=mdf,4=agi,5=luk
type UnitAttr struct {
	ID                int            `json:"id" yaml:"id"`
	Name              string         `json:"name" yaml:"name"`
	Kind              UnitKind       `json:"kind" yaml:"kind"`
	Team              string         `json:"team" yaml:"team"`
	Level             int            `json:"level" yaml:"level"`
	MaxHP             int            `json:"mhp" yaml:"mhp"`
	MaxMP             int            `json:"mmp" yaml:"mmp"`
	MaxTP             int            `json:"mtp" yaml:"mtp"`
	Params            [6]int         `json:"params" yaml:"params"`
	CritRate          float64        `json:"crit_rate" yaml:"crit_rate"`
	AggroRate         *float64       `json:"aggro_rate" yaml:"aggro_rate"`
	SightRadius       float64        `json:"sight_radius" yaml:"sight_radius"`
	PursuitRadius     float64        `json:"pursuit_radius" yaml:"pursuit_radius"`
	SenseRadius       float64        `json:"sense_radius" yaml:"sense_radius"`
	AlertSightBoost   float64        `json:"alert_sight_boost" yaml:"alert_sight_boost"`
	AlertPursuitBoost float64        `json:"alert_pursuit_boost" yaml:"alert_pursuit_boost"`
	AlertFrames       int            `json:"alert_frames" yaml:"alert_frames"`
	Inanimate         bool           `json:"inanimate" yaml:"inanimate"`
	Mode              string         `json:"mode" yaml:"mode"`
	Slots             map[string]int `json:"slots" yaml:"slots"`
	LockedSlots       []string       `json:"locked_slots" yaml:"locked_slots"`
	Rewards           []RewardAttr   `json:"rewards" yaml:"rewards"`
}

// Sense returns the ally sensing radius, falling back to the pursuit radius.
func (u *UnitAttr) Sense() float64 {
	if u.SenseRadius > 0 {
		return u.SenseRadius
	}
	return u.PursuitRadius
}

// Attractiveness returns the general aggro multiplier, defaulting to 1.
func (u *UnitAttr) Attractiveness() float64 {
	if u.AggroRate == nil {
		return 1
	}
	return *u.AggroRate
}

// ---- Loader ----

// ErrNoTable is returned when neither a .json nor a .yaml file exists for a table.
var ErrNoTable = errors.New("resource: table file not found")

// Tables is one consistent generation of attribute tables.
type Tables struct {
	Skills map[int]*SkillAttr
	States map[int]*StateAttr
	Units  map[int]*UnitAttr
}

// Loader holds the attribute tables and swaps them atomically on Reload.
type Loader struct {
	DataPath string

	mu     sync.RWMutex
	tables *Tables
}

// NewLoader creates a Loader reading from dataPath. Call Load before use.
func NewLoader(dataPath string) *Loader {
	return &Loader{DataPath: dataPath, tables: emptyTables()}
}

// NewStatic builds a Loader over in-memory tables (tests, embedded data).
func NewStatic(skills []*SkillAttr, states []*StateAttr, units []*UnitAttr) *Loader {
	t := emptyTables()
	for _, s := range skills {
		t.Skills[s.ID] = s
	}
	for _, s := range states {
		t.States[s.ID] = s
	}
	for _, u := range units {
		t.Units[u.ID] = u
	}
	return &Loader{tables: t}
}

func emptyTables() *Tables {
	return &Tables{
		Skills: map[int]*SkillAttr{},
		States: map[int]*StateAttr{},
		Units:  map[int]*UnitAttr{},
	}
}

// Load reads all tables from DataPath.
func (rl *Loader) Load() error {
	t := emptyTables()

	var skills []*SkillAttr
	if err := loadTable(rl.DataPath, "Skills", &skills); err != nil {
		return err
	}
	var states []*StateAttr
	if err := loadTable(rl.DataPath, "States", &states); err != nil {
		return err
	}
	var units []*UnitAttr
	if err := loadTable(rl.DataPath, "Units", &units); err != nil {
		return err
	}
	for _, s := range skills {
		if s != nil {
			t.Skills[s.ID] = s
		}
	}
	for _, s := range states {
		if s != nil {
			t.States[s.ID] = s
		}
	}
	for _, u := range units {
		if u != nil {
			t.Units[u.ID] = u
		}
	}

	rl.mu.Lock()
	rl.tables = t
	rl.mu.Unlock()
	return nil
}

// Reload is Load under another name; a failed reload keeps the previous tables.
func (rl *Loader) Reload() error {
	return rl.Load()
}

// loadTable reads <dir>/<name>.json, falling back to <name>.yaml / <name>.yml.
func loadTable(dir, name string, out interface{}) error {
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		path := filepath.Join(dir, name+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("resource: read %s: %w", path, err)
		}
		if ext == ".json" {
			err = json.Unmarshal(data, out)
		} else {
			err = yaml.Unmarshal(data, out)
		}
		if err != nil {
			return fmt.Errorf("resource: parse %s: %w", path, err)
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNoTable, name)
}

func (rl *Loader) Skill(id int) *SkillAttr {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return rl.tables.Skills[id]
}

func (rl *Loader) State(id int) *StateAttr {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return rl.tables.States[id]
}

func (rl *Loader) Unit(id int) *UnitAttr {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return rl.tables.Units[id]
}

// Counts returns the number of loaded skills, states and units.
func (rl *Loader) Counts() (skills, states, units int) {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.tables.Skills), len(rl.tables.States), len(rl.tables.Units)
}
