package rules

import (
	"context"
	"errors"
	"fmt"
)

// Rule system targets. Each names the device-side module a repository
// talks to; all three share the same CRUD command set.
const (
	TargetSchedule  = "schedule"
	TargetCountdown = "count_down"
	TargetAntiTheft = "anti_theft"
)

// ErrRuleNotFound is returned when a rule is looked up by a name the
// device has no rule for. Check with errors.Is.
var ErrRuleNotFound = errors.New("rule not found")

// Dispatcher is the slice of the device command dispatcher the
// repositories need. *device.Dispatcher satisfies it.
type Dispatcher interface {
	Call(ctx context.Context, target, command string, args any) (map[string]any, error)
}

// Rule is one entry in a device rule list. ID is assigned by the device,
// Name is the caller-chosen key rules are addressed by, and Enabled
// mirrors the entry's enable flag. Raw carries the full entry as
// received: rule schemas differ per system and firmware revision, so the
// schema-specific fields (weekday masks, delays, coordinates) stay
// dynamic.
type Rule struct {
	ID      string
	Name    string
	Enabled bool
	Raw     map[string]any
}

// payload assembles the wire form of the rule. The typed fields win over
// whatever Raw carries for the same keys, and an empty ID is omitted
// entirely so the device assigns one.
func (r Rule) payload() map[string]any {
	p := make(map[string]any, len(r.Raw)+3)
	for k, v := range r.Raw {
		p[k] = v
	}
	p["name"] = r.Name
	p["enable"] = enableFlag(r.Enabled)
	if r.ID != "" {
		p["id"] = r.ID
	} else {
		delete(p, "id")
	}
	return p
}

// Repo is a name-keyed rule collection on one device. The same
// repository works against any of the three rule systems; only the
// target differs.
type Repo struct {
	disp   Dispatcher
	target string
}

// New creates a rule repository for the given target
func New(disp Dispatcher, target string) *Repo {
	return &Repo{disp: disp, target: target}
}

// NewCountdown creates a repository for the countdown timer rules
func NewCountdown(disp Dispatcher) *Repo {
	return New(disp, TargetCountdown)
}

// NewAntiTheft creates a repository for the away-mode (anti-theft) rules
func NewAntiTheft(disp Dispatcher) *Repo {
	return New(disp, TargetAntiTheft)
}

// List returns all rules in the collection
func (r *Repo) List(ctx context.Context) ([]Rule, error) {
	reply, err := r.disp.Call(ctx, r.target, "get_rules", nil)
	if err != nil {
		return nil, err
	}

	entries, _ := reply["rule_list"].([]any)
	rules := make([]Rule, 0, len(entries))
	for _, e := range entries {
		entry, ok := e.(map[string]any)
		if !ok {
			continue
		}
		rules = append(rules, parseRule(entry))
	}
	return rules, nil
}

// Get returns the rule with the given name, or an error wrapping
// ErrRuleNotFound if the device has no rule by that name.
func (r *Repo) Get(ctx context.Context, name string) (Rule, error) {
	list, err := r.List(ctx)
	if err != nil {
		return Rule{}, err
	}
	for _, rule := range list {
		if rule.Name == name {
			return rule, nil
		}
	}
	return Rule{}, fmt.Errorf("%s rule %q: %w", r.target, name, ErrRuleNotFound)
}

// Add creates a new rule and returns the ID the device assigned it. Any
// ID already set on the rule is ignored.
func (r *Repo) Add(ctx context.Context, rule Rule) (string, error) {
	rule.ID = ""
	reply, err := r.disp.Call(ctx, r.target, "add_rule", rule.payload())
	if err != nil {
		return "", err
	}
	id, _ := reply["id"].(string)
	return id, nil
}

// Edit replaces an existing rule. When the rule carries no ID it is
// resolved by name first, so callers can edit a rule the same way they
// address it everywhere else.
func (r *Repo) Edit(ctx context.Context, rule Rule) error {
	if rule.ID == "" {
		existing, err := r.Get(ctx, rule.Name)
		if err != nil {
			return err
		}
		rule.ID = existing.ID
	}
	_, err := r.disp.Call(ctx, r.target, "edit_rule", rule.payload())
	return err
}

// Delete removes the rule with the given name, or returns an error
// wrapping ErrRuleNotFound if no rule has that name.
func (r *Repo) Delete(ctx context.Context, name string) error {
	rule, err := r.Get(ctx, name)
	if err != nil {
		return err
	}
	_, err = r.disp.Call(ctx, r.target, "delete_rule", map[string]any{"id": rule.ID})
	return err
}

// ClearAll removes every rule in the collection
func (r *Repo) ClearAll(ctx context.Context) error {
	_, err := r.disp.Call(ctx, r.target, "delete_all_rules", nil)
	return err
}

// parseRule projects one rule_list entry into a Rule, keeping the entry
// itself as Raw.
func parseRule(entry map[string]any) Rule {
	rule := Rule{Raw: entry}
	if s, ok := entry["id"].(string); ok {
		rule.ID = s
	}
	if s, ok := entry["name"].(string); ok {
		rule.Name = s
	}
	rule.Enabled = flagSet(entry["enable"])
	return rule
}

// flagSet interprets the 0/1 integer flags rule entries use, tolerating
// the float64 values JSON decoding produces.
func flagSet(v any) bool {
	switch n := v.(type) {
	case bool:
		return n
	case float64:
		return n != 0
	case int:
		return n != 0
	}
	return false
}

// enableFlag renders a bool as the 0/1 integer the firmware expects
func enableFlag(on bool) int {
	if on {
		return 1
	}
	return 0
}
