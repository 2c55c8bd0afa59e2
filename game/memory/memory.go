// Package memory records how well each skill has worked against each target.
package memory

// Baseline is the neutral effectiveness: the hit did exactly what the skill's
// formula promised. Entries at or above it are considered effective.
const Baseline = 1.0

// Key identifies one observation: a skill used against a target unit.
type Key struct {
	TargetID int64 `json:"target_id"`
	SkillID  int   `json:"skill_id"`
}

// Entry is the latest observation for a key.
type Entry struct {
	Effectiveness float64 `json:"effectiveness"`
	LastDamage    int     `json:"last_damage"`
}

// IsEffective reports whether the entry meets the baseline.
func (e Entry) IsEffective() bool { return e.Effectiveness >= Baseline }

// Record is a flattened key and entry, the persisted form.
type Record struct {
	Key
	Entry
}

// Memory is owned by a single controller. It is not safe for concurrent use.
type Memory struct {
	entries map[Key]Entry
}

func New() *Memory {
	return &Memory{entries: make(map[Key]Entry)}
}

// Record upserts the entry for (target, skill).
func (m *Memory) Record(target int64, skill int, effectiveness float64, damage int) {
	m.entries[Key{TargetID: target, SkillID: skill}] = Entry{Effectiveness: effectiveness, LastDamage: damage}
}

// Get returns the entry for (target, skill).
func (m *Memory) Get(target int64, skill int) (Entry, bool) {
	e, ok := m.entries[Key{TargetID: target, SkillID: skill}]
	return e, ok
}

func (m *Memory) Len() int { return len(m.entries) }

// Effective returns the skills, in the order given, whose entry against target
// is effective.
func (m *Memory) Effective(target int64, skills []int) []int {
	var out []int
	for _, s := range skills {
		if e, ok := m.Get(target, s); ok && e.IsEffective() {
			out = append(out, s)
		}
	}
	return out
}

// Records returns all entries.
func (m *Memory) Records() []Record {
	out := make([]Record, 0, len(m.entries))
	for k, e := range m.entries {
		out = append(out, Record{Key: k, Entry: e})
	}
	return out
}

// Restore upserts every record. Existing entries with other keys are kept.
func (m *Memory) Restore(recs []Record) {
	for _, r := range recs {
		m.entries[r.Key] = r.Entry
	}
}
