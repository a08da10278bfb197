package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muurk/kasalink/internal/rules"
	"github.com/muurk/kasalink/internal/ui"
)

// Rules command flags
var ruleSystem string

func init() {
	rulesCmd.PersistentFlags().StringVar(&ruleSystem, "system", "schedule", "Rule system (schedule, countdown, antitheft)")

	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesNextCmd)
	rulesCmd.AddCommand(rulesDeleteCmd)
	rulesCmd.AddCommand(rulesClearCmd)

	rootCmd.AddCommand(rulesCmd)
}

// rulesCmd groups the rule system operations
var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage device rules",
	Long: `Manage the rules a device runs on its own: schedules, countdown
timers and away-mode (anti-theft) presence simulation.

All three systems share the same operations; --system selects which one
a command talks to. Rules are addressed by name. Rules fire on the
device clock - see 'time' when they seem early or late.`,
	Example: `  kasalink-ctl rules list --device 192.168.1.40
  kasalink-ctl rules list --system countdown --device 192.168.1.40
  kasalink-ctl rules delete "Evening on" --device 192.168.1.40
  kasalink-ctl rules clear --system antitheft --device 192.168.1.40`,
}

// ruleRepo builds the repository for the selected rule system on host
func ruleRepo(host string) (*rules.Repo, string, error) {
	disp := newDevice(host).Dispatcher()
	switch strings.ToLower(ruleSystem) {
	case "schedule":
		return rules.New(disp, rules.TargetSchedule), "schedule", nil
	case "countdown":
		return rules.NewCountdown(disp), "countdown", nil
	case "antitheft", "anti-theft":
		return rules.NewAntiTheft(disp), "anti-theft", nil
	default:
		return nil, "", fmt.Errorf("unknown rule system %q (use schedule, countdown or antitheft)", ruleSystem)
	}
}

// rulesListCmd lists the rules of one system
var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List rules",
	Example: `  kasalink-ctl rules list --device 192.168.1.40
  kasalink-ctl rules list --system countdown --device 192.168.1.40 --json`,
	RunE: runRulesList,
}

func runRulesList(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	host, err := resolveHost()
	if err != nil {
		return err
	}
	repo, system, err := ruleRepo(host)
	if err != nil {
		return err
	}

	list, err := repo.List(context.Background())
	if err != nil {
		return reportFailure("Rule listing failed", err)
	}

	if jsonOutput {
		report := make([]map[string]any, 0, len(list))
		for _, rule := range list {
			report = append(report, rule.Raw)
		}
		return printJSON(report)
	}

	if len(list) == 0 {
		out.PrintNote(fmt.Sprintf("No %s rules on this device.", system))
		return nil
	}

	rows := make([]ui.KV, 0, len(list))
	for _, rule := range list {
		name := rule.Name
		if name == "" {
			name = "(unnamed)"
		}
		state := "disabled"
		if rule.Enabled {
			state = "enabled"
		}
		rows = append(rows, ui.KV{Key: name, Value: fmt.Sprintf("%s  %s", state, rule.ID)})
	}
	out.PrintPanel(fmt.Sprintf("Rules - %s (%d)", system, len(rows)), rows)
	return nil
}

// rulesNextCmd shows the next pending schedule action
var rulesNextCmd = &cobra.Command{
	Use:   "next",
	Short: "Show the next scheduled action",
	Long: `Show the next action the device's schedule will fire, as the device
reports it. Only the schedule system has a next action.`,
	Example: `  kasalink-ctl rules next --device 192.168.1.40
  kasalink-ctl rules next --device porch-light`,
	RunE: runRulesNext,
}

func runRulesNext(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	if system := strings.ToLower(ruleSystem); system != "schedule" {
		return fmt.Errorf("only the schedule system has a next action (got --system %s)", system)
	}

	host, err := resolveHost()
	if err != nil {
		return err
	}

	schedule := rules.NewSchedule(newDevice(host).Dispatcher())
	action, err := schedule.NextAction(context.Background())
	if err != nil {
		return reportFailure("Device query failed", err)
	}

	// type -1 means the schedule has nothing pending
	if t, ok := action["type"].(float64); ok && t == -1 {
		out.PrintNote("No scheduled action pending.")
		return nil
	}
	return printJSON(action)
}

// rulesDeleteCmd deletes one rule by name
var rulesDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a rule by name",
	Example: `  kasalink-ctl rules delete "Evening on" --device 192.168.1.40
  kasalink-ctl rules delete boiler-timer --system countdown --device 192.168.1.40`,
	Args: cobra.ExactArgs(1),
	RunE: runRulesDelete,
}

func runRulesDelete(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	host, err := resolveHost()
	if err != nil {
		return err
	}
	repo, system, err := ruleRepo(host)
	if err != nil {
		return err
	}

	name := args[0]
	if err := repo.Delete(context.Background(), name); err != nil {
		if errors.Is(err, rules.ErrRuleNotFound) {
			out.PrintFailure("Rule not found", err, []string{
				"List rule names first: kasalink-ctl rules list",
				"Rule names are case-sensitive",
			})
			return err
		}
		return reportFailure("Rule deletion failed", err)
	}

	out.PrintSuccess("Rule deleted", []ui.KV{
		{Key: "Device", Value: hostAddress(host)},
		{Key: "System", Value: system},
		{Key: "Rule", Value: name},
	})
	return nil
}

// rulesClearCmd deletes every rule of one system
var rulesClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all rules of a system",
	Example: `  kasalink-ctl rules clear --device 192.168.1.40
  kasalink-ctl rules clear --system antitheft --device 192.168.1.40`,
	RunE: runRulesClear,
}

func runRulesClear(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	host, err := resolveHost()
	if err != nil {
		return err
	}
	repo, system, err := ruleRepo(host)
	if err != nil {
		return err
	}

	if !ui.ConfirmAction(fmt.Sprintf("Delete all %s rules on %s?", system, hostAddress(host))) {
		out.PrintNote("Clear cancelled.")
		return nil
	}

	if err := repo.ClearAll(context.Background()); err != nil {
		return reportFailure("Rule clearing failed", err)
	}

	out.PrintSuccess("Rules cleared", []ui.KV{
		{Key: "Device", Value: hostAddress(host)},
		{Key: "System", Value: system},
	})
	return nil
}
