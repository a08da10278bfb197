package rules

import "context"

// Schedule is the repository for the timed on/off rule system, which has
// two operations beyond the shared CRUD set.
type Schedule struct {
	*Repo
}

// NewSchedule creates a repository for the schedule rules
func NewSchedule(disp Dispatcher) *Schedule {
	return &Schedule{Repo: New(disp, TargetSchedule)}
}

// NextAction returns the device's description of the next scheduled
// action as received. The reply's "type" field is -1 when nothing is
// scheduled.
func (s *Schedule) NextAction(ctx context.Context) (map[string]any, error) {
	return s.disp.Call(ctx, s.target, "get_next_action", nil)
}

// EraseRuntimeStats clears the per-rule runtime statistics the device
// accumulates as schedules fire.
func (s *Schedule) EraseRuntimeStats(ctx context.Context) error {
	_, err := s.disp.Call(ctx, s.target, "erase_runtime_stat", nil)
	return err
}
