package rules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

const (
	ruleIDLamp   = "8AA75A50A8440B17941D192BD9E01FFA"
	ruleIDHeater = "0B2A63D52B9C4E21A550D1AE730FF43D"
)

// fakeDispatcher implements Dispatcher with an in-memory rule store for
// one target. Arguments are round-tripped through JSON so tests exercise
// the payloads exactly as a real exchange would encode them.
type fakeDispatcher struct {
	t      *testing.T
	target string
	rules  []map[string]any
	nextID int
	calls  []string
}

func newFakeDispatcher(t *testing.T, target string) *fakeDispatcher {
	return &fakeDispatcher{t: t, target: target}
}

func (f *fakeDispatcher) seed(rules ...map[string]any) *fakeDispatcher {
	f.rules = append(f.rules, rules...)
	return f
}

func (f *fakeDispatcher) Call(ctx context.Context, target, command string, args any) (map[string]any, error) {
	f.t.Helper()
	f.calls = append(f.calls, target+"."+command)

	blob, err := json.Marshal(args)
	if err != nil {
		f.t.Fatalf("args for %s.%s do not serialize: %v", target, command, err)
	}
	var decoded any
	if err := json.Unmarshal(blob, &decoded); err != nil {
		f.t.Fatalf("args for %s.%s do not round-trip: %v", target, command, err)
	}

	if target != f.target {
		return nil, fmt.Errorf("unexpected target %q, fake serves %q", target, f.target)
	}

	switch command {
	case "get_rules":
		list := make([]any, len(f.rules))
		for i, r := range f.rules {
			list[i] = r
		}
		return map[string]any{"rule_list": list, "version": float64(2), "enable": float64(1)}, nil

	case "add_rule":
		entry, ok := decoded.(map[string]any)
		if !ok {
			f.t.Fatalf("add_rule args are %T, want object", decoded)
		}
		if stale, exists := entry["id"]; exists {
			f.t.Errorf("add_rule payload carries an id (%v); the device assigns ids", stale)
		}
		f.nextID++
		id := fmt.Sprintf("%032X", f.nextID)
		entry["id"] = id
		f.rules = append(f.rules, entry)
		return map[string]any{"id": id}, nil

	case "edit_rule":
		entry, ok := decoded.(map[string]any)
		if !ok {
			f.t.Fatalf("edit_rule args are %T, want object", decoded)
		}
		id, _ := entry["id"].(string)
		for i, r := range f.rules {
			if r["id"] == id {
				f.rules[i] = entry
				return map[string]any{}, nil
			}
		}
		return nil, fmt.Errorf("edit_rule: no rule with id %q", id)

	case "delete_rule":
		entry, _ := decoded.(map[string]any)
		id, _ := entry["id"].(string)
		for i, r := range f.rules {
			if r["id"] == id {
				f.rules = append(f.rules[:i], f.rules[i+1:]...)
				return map[string]any{}, nil
			}
		}
		return nil, fmt.Errorf("delete_rule: no rule with id %q", id)

	case "delete_all_rules":
		f.rules = nil
		return map[string]any{}, nil

	case "get_next_action":
		return map[string]any{
			"type":     float64(1),
			"id":       ruleIDLamp,
			"schd_sec": float64(59160),
			"action":   float64(1),
		}, nil

	case "erase_runtime_stat":
		return map[string]any{}, nil
	}

	return nil, fmt.Errorf("fake has no handler for %s.%s", target, command)
}

func (f *fakeDispatcher) callCount(name string) int {
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func lampRule() map[string]any {
	return map[string]any{
		"id":     ruleIDLamp,
		"name":   "Evening lamp",
		"enable": float64(1),
		"wday":   []any{float64(0), float64(1), float64(1), float64(1), float64(1), float64(1), float64(0)},
		"smin":   float64(1014),
		"sact":   float64(1),
	}
}

func heaterRule() map[string]any {
	return map[string]any{
		"id":     ruleIDHeater,
		"name":   "Morning heater",
		"enable": float64(0),
		"smin":   float64(390),
		"sact":   float64(1),
	}
}

func TestRepo_List(t *testing.T) {
	fake := newFakeDispatcher(t, TargetSchedule).seed(lampRule(), heaterRule())
	repo := New(fake, TargetSchedule)

	list, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("List returned %d rules, want 2", len(list))
	}

	lamp := list[0]
	if lamp.ID != ruleIDLamp {
		t.Errorf("ID = %q, want %q", lamp.ID, ruleIDLamp)
	}
	if lamp.Name != "Evening lamp" {
		t.Errorf("Name = %q, want %q", lamp.Name, "Evening lamp")
	}
	if !lamp.Enabled {
		t.Error("Enabled = false, want true")
	}
	if got, ok := lamp.Raw["smin"].(float64); !ok || got != 1014 {
		t.Errorf("Raw[smin] = %v, want 1014", lamp.Raw["smin"])
	}

	if list[1].Enabled {
		t.Error("disabled rule parsed as enabled")
	}
}

func TestRepo_List_Empty(t *testing.T) {
	fake := newFakeDispatcher(t, TargetCountdown)
	repo := NewCountdown(fake)

	list, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("List returned %d rules, want none", len(list))
	}
}

func TestRepo_Get(t *testing.T) {
	fake := newFakeDispatcher(t, TargetSchedule).seed(lampRule())
	repo := New(fake, TargetSchedule)

	rule, err := repo.Get(context.Background(), "Evening lamp")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rule.ID != ruleIDLamp {
		t.Errorf("ID = %q, want %q", rule.ID, ruleIDLamp)
	}

	_, err = repo.Get(context.Background(), "No such rule")
	if !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("Get(missing) = %v, want ErrRuleNotFound", err)
	}
}

func TestRepo_Add(t *testing.T) {
	fake := newFakeDispatcher(t, TargetCountdown)
	repo := NewCountdown(fake)

	id, err := repo.Add(context.Background(), Rule{
		Name:    "Shutoff",
		Enabled: true,
		Raw:     map[string]any{"delay": 1800, "act": 0},
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if id == "" {
		t.Fatal("Add returned an empty id")
	}

	list, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("List returned %d rules after Add, want 1", len(list))
	}
	added := list[0]
	if added.ID != id {
		t.Errorf("listed ID = %q, want the assigned %q", added.ID, id)
	}
	if added.Name != "Shutoff" || !added.Enabled {
		t.Errorf("listed rule = %+v, want name Shutoff enabled", added)
	}
	if got, ok := added.Raw["delay"].(float64); !ok || got != 1800 {
		t.Errorf("Raw[delay] = %v, want 1800", added.Raw["delay"])
	}
}

func TestRepo_Add_IgnoresStaleID(t *testing.T) {
	fake := newFakeDispatcher(t, TargetCountdown)
	repo := NewCountdown(fake)

	// Raw copied from a previously listed rule still carries that rule's
	// id; Add must not send it.
	id, err := repo.Add(context.Background(), Rule{
		ID:      ruleIDLamp,
		Name:    "Copy",
		Enabled: true,
		Raw:     map[string]any{"id": ruleIDLamp, "delay": 60, "act": 1},
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if id == ruleIDLamp {
		t.Error("Add kept the stale id instead of letting the device assign one")
	}
}

func TestRepo_Edit_ResolvesIDByName(t *testing.T) {
	fake := newFakeDispatcher(t, TargetSchedule).seed(lampRule())
	repo := New(fake, TargetSchedule)

	err := repo.Edit(context.Background(), Rule{
		Name:    "Evening lamp",
		Enabled: false,
		Raw:     map[string]any{"smin": 1050, "sact": 1},
	})
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}

	rule, err := repo.Get(context.Background(), "Evening lamp")
	if err != nil {
		t.Fatalf("Get after Edit: %v", err)
	}
	if rule.ID != ruleIDLamp {
		t.Errorf("ID changed to %q, want %q kept", rule.ID, ruleIDLamp)
	}
	if rule.Enabled {
		t.Error("Enabled = true after disabling edit")
	}
	if got, ok := rule.Raw["smin"].(float64); !ok || got != 1050 {
		t.Errorf("Raw[smin] = %v, want 1050", rule.Raw["smin"])
	}
}

func TestRepo_Edit_MissingRule(t *testing.T) {
	fake := newFakeDispatcher(t, TargetSchedule)
	repo := New(fake, TargetSchedule)

	err := repo.Edit(context.Background(), Rule{Name: "No such rule"})
	if !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("Edit(missing) = %v, want ErrRuleNotFound", err)
	}
	if n := fake.callCount(TargetSchedule + ".edit_rule"); n != 0 {
		t.Errorf("edit_rule dispatched %d times for a missing rule, want 0", n)
	}
}

func TestRepo_Delete(t *testing.T) {
	fake := newFakeDispatcher(t, TargetSchedule).seed(lampRule(), heaterRule())
	repo := New(fake, TargetSchedule)

	if err := repo.Delete(context.Background(), "Evening lamp"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	list, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].Name != "Morning heater" {
		t.Errorf("rules after Delete = %+v, want only Morning heater", list)
	}
}

func TestRepo_Delete_MissingRule(t *testing.T) {
	fake := newFakeDispatcher(t, TargetAntiTheft).seed(lampRule())
	repo := NewAntiTheft(fake)

	err := repo.Delete(context.Background(), "No such rule")
	if !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("Delete(missing) = %v, want ErrRuleNotFound", err)
	}
	if n := fake.callCount(TargetAntiTheft + ".delete_rule"); n != 0 {
		t.Errorf("delete_rule dispatched %d times for a missing rule, want 0", n)
	}
	if len(fake.rules) != 1 {
		t.Error("a rule disappeared while deleting a missing name")
	}
}

func TestRepo_ClearAll(t *testing.T) {
	fake := newFakeDispatcher(t, TargetSchedule).seed(lampRule(), heaterRule())
	repo := New(fake, TargetSchedule)

	if err := repo.ClearAll(context.Background()); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	if len(fake.rules) != 0 {
		t.Errorf("%d rules remain after ClearAll", len(fake.rules))
	}
	if n := fake.callCount(TargetSchedule + ".delete_all_rules"); n != 1 {
		t.Errorf("delete_all_rules dispatched %d times, want 1", n)
	}
}

func TestRepo_Targets(t *testing.T) {
	fake := newFakeDispatcher(t, TargetSchedule)

	tests := []struct {
		name string
		repo *Repo
		want string
	}{
		{"schedule", NewSchedule(fake).Repo, TargetSchedule},
		{"countdown", NewCountdown(fake), TargetCountdown},
		{"anti-theft", NewAntiTheft(fake), TargetAntiTheft},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.repo.target != tt.want {
				t.Errorf("target = %q, want %q", tt.repo.target, tt.want)
			}
		})
	}
}

func TestSchedule_NextAction(t *testing.T) {
	fake := newFakeDispatcher(t, TargetSchedule).seed(lampRule())
	sched := NewSchedule(fake)

	next, err := sched.NextAction(context.Background())
	if err != nil {
		t.Fatalf("NextAction: %v", err)
	}
	if id, _ := next["id"].(string); id != ruleIDLamp {
		t.Errorf("next action id = %q, want %q", id, ruleIDLamp)
	}
	if sec, _ := next["schd_sec"].(float64); sec != 59160 {
		t.Errorf("next action schd_sec = %v, want 59160", next["schd_sec"])
	}
}

func TestSchedule_EraseRuntimeStats(t *testing.T) {
	fake := newFakeDispatcher(t, TargetSchedule)
	sched := NewSchedule(fake)

	if err := sched.EraseRuntimeStats(context.Background()); err != nil {
		t.Fatalf("EraseRuntimeStats: %v", err)
	}
	if n := fake.callCount("schedule.erase_runtime_stat"); n != 1 {
		t.Errorf("erase_runtime_stat dispatched %d times, want 1", n)
	}
}
