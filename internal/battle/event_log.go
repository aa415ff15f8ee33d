package battle

import (
	"fmt"
	"strings"
)

// Event is one recorded battle event.
type Event struct {
	Tick     int
	Subject  string // troop label "R12", unit name, or "--"
	Faction  string
	Category string // fire, melee, death, unit, tactics, battle
	Key      string
	Value    string
	NumVal   float64
}

// String renders one aligned line:
//
//	[T=042] R12  melee     kill             B40
func (e Event) String() string {
	return fmt.Sprintf("[T=%03d] %-4s %-9s %-16s %s",
		e.Tick, e.Subject, e.Category, e.Key, e.Value)
}

func (e Event) matches(category, key string) bool {
	return (category == "" || e.Category == category) && (key == "" || e.Key == key)
}

// EventLog collects structured events during a battle. It is unbounded and
// machine-readable; tests and the report tool filter it. It is only written
// from the sequential stages of a step.
type EventLog struct {
	entries  []Event
	disabled bool
}

// NewEventLog creates an EventLog. A disabled log drops every entry, which
// keeps long headless runs from growing without bound.
func NewEventLog(enabled bool) *EventLog {
	return &EventLog{disabled: !enabled}
}

func (el *EventLog) Add(tick int, subject, faction, category, key, value string, numVal float64) {
	if el == nil || el.disabled {
		return
	}
	el.entries = append(el.entries, Event{
		Tick:     tick,
		Subject:  subject,
		Faction:  faction,
		Category: category,
		Key:      key,
		Value:    value,
		NumVal:   numVal,
	})
}

func (el *EventLog) Entries() []Event {
	return el.entries
}

// Filter selects events by category and key; an empty argument is a
// wildcard.
func (el *EventLog) Filter(category, key string) []Event {
	var out []Event
	for _, e := range el.entries {
		if e.matches(category, key) {
			out = append(out, e)
		}
	}
	return out
}

// FilterSubject selects events for one troop label or unit name.
func (el *EventLog) FilterSubject(subject string) []Event {
	var out []Event
	for _, e := range el.entries {
		if e.Subject == subject {
			out = append(out, e)
		}
	}
	return out
}

// FilterTickRange selects events with fromTick <= Tick <= toTick.
func (el *EventLog) FilterTickRange(fromTick, toTick int) []Event {
	var out []Event
	for _, e := range el.entries {
		if fromTick <= e.Tick && e.Tick <= toTick {
			out = append(out, e)
		}
	}
	return out
}

func (el *EventLog) Count(category, key string) int {
	return len(el.Filter(category, key))
}

// LastOf is the latest event for category and key.
func (el *EventLog) LastOf(category, key string) (Event, bool) {
	for i := len(el.entries) - 1; i >= 0; i-- {
		if el.entries[i].matches(category, key) {
			return el.entries[i], true
		}
	}
	return Event{}, false
}

// HasEntry reports whether some event matches category and key and carries
// valueSubstr in its Value.
func (el *EventLog) HasEntry(category, key, valueSubstr string) bool {
	for _, e := range el.entries {
		if e.matches(category, key) && strings.Contains(e.Value, valueSubstr) {
			return true
		}
	}
	return false
}

// Format dumps every event, one per line, for t.Log.
func (el *EventLog) Format() string {
	return formatEvents(el.entries)
}

func (el *EventLog) FormatRange(fromTick, toTick int) string {
	return formatEvents(el.FilterTickRange(fromTick, toTick))
}

func formatEvents(events []Event) string {
	var sb strings.Builder
	for _, e := range events {
		sb.WriteString(e.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Summary returns a short human-readable summary of the battle state.
func Summary(tick int, units []*Unit) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "=== T=%03d ===\n", tick)
	for _, u := range units {
		fmt.Fprintf(&sb, "%-16s %-6s %-9s %-12s alive=%d/%d\n",
			u.name, u.faction, u.unitType, u.state, u.LiveCount(), u.Size())
	}
	alive := map[Faction]int{}
	for _, u := range units {
		alive[u.faction] += u.LiveCount()
	}
	fmt.Fprintf(&sb, "Alive: red=%d  blue=%d\n", alive[FactionRed], alive[FactionBlue])
	return sb.String()
}

// troopLabel is the short label used in events: faction initial plus id.
func troopLabel(t *Troop) string {
	if t == nil {
		return "--"
	}
	f := t.faction.String()
	return strings.ToUpper(f[:1]) + fmt.Sprint(t.id)
}
