package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"servicehub/internal/app"
	"servicehub/internal/domain"
	"servicehub/internal/engine"
)

func projectCmd() *cobra.Command {
	p := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
		Long:  "Projects carry milestones, spend and a team; the automation cycle turns them into a health score.",
	}
	p.AddCommand(projectCreateCmd())
	p.AddCommand(projectListCmd())
	p.AddCommand(projectShowCmd())
	p.AddCommand(projectHealthCmd())
	p.AddCommand(milestoneCmd())
	p.AddCommand(transactionCmd())
	p.AddCommand(memberCmd())
	return p
}

func projectCreateCmd() *cobra.Command {
	var in engine.ProjectInput
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project owned by --as",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				p, err := rt.Engine.CreateProject(ctx, caller(), in)
				if err != nil {
					return err
				}
				return printResult(p)
			})
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "project name")
	cmd.Flags().StringVar(&in.Status, "status", "", "active, on_hold or completed")
	cmd.Flags().Float64Var(&in.BudgetTotal, "budget", 0, "total budget")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func projectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects owned by --as",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				items, err := rt.Engine.ListProjects(ctx, caller())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Status", "Health", "Budget", "Milestones", "Team"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.Name, p.Status, p.HealthScore, p.BudgetTotal, len(p.Milestones), len(p.TeamMembers)})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func projectShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show a project with milestones, spend and team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				p, err := rt.Engine.GetProject(ctx, caller(), args[0])
				if err != nil {
					return err
				}
				return printResult(p)
			})
		},
	}
}

func projectHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health <project-id>",
		Short: "Show health score, factors and history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				hr, err := rt.Engine.ProjectHealth(ctx, caller(), args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(hr)
				}
				docs := "n/a"
				if hr.Factors.DocumentStatus != nil {
					docs = fmt.Sprintf("%d%%", *hr.Factors.DocumentStatus)
				}
				fmt.Printf("Health: %d\n", hr.HealthScore)
				fmt.Printf("  milestone completion: %d%%\n", hr.Factors.MilestoneCompletion)
				fmt.Printf("  budget health:        %.1f%%\n", hr.Factors.BudgetHealth)
				fmt.Printf("  team engagement:      %d%%\n", hr.Factors.TeamEngagement)
				fmt.Printf("  document status:      %s\n", docs)
				if len(hr.History) == 0 {
					return nil
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Recorded", "Score"})
				for _, h := range hr.History {
					tw.AppendRow(table.Row{h.Timestamp.Format("2006-01-02 15:04"), h.Score})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func milestoneCmd() *cobra.Command {
	m := &cobra.Command{Use: "milestone", Short: "Manage milestones"}

	var title, due, status string
	add := &cobra.Command{
		Use:   "add <project-id>",
		Short: "Add a milestone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dueDate, err := parseDate(due)
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				ms, err := rt.Engine.AddMilestone(ctx, caller(), args[0], engine.MilestoneInput{
					Title:   title,
					DueDate: dueDate,
					Status:  domain.MilestoneStatus(status),
				})
				if err != nil {
					return err
				}
				return printResult(ms)
			})
		},
	}
	add.Flags().StringVar(&title, "title", "", "milestone title")
	add.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD or RFC3339)")
	add.Flags().StringVar(&status, "status", "", "pending, in_progress or completed")
	_ = add.MarkFlagRequired("title")
	_ = add.MarkFlagRequired("due")

	set := &cobra.Command{
		Use:   "status <milestone-id> <status>",
		Short: "Set milestone status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				ms, err := rt.Engine.SetMilestoneStatus(ctx, caller(), args[0], domain.MilestoneStatus(args[1]))
				if err != nil {
					return err
				}
				return printResult(ms)
			})
		},
	}
	m.AddCommand(add, set)
	return m
}

func transactionCmd() *cobra.Command {
	var in engine.TransactionInput
	cmd := &cobra.Command{
		Use:   "transaction <project-id>",
		Short: "Record spend against the project budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				t, err := rt.Engine.RecordTransaction(ctx, caller(), args[0], in)
				if err != nil {
					return err
				}
				return printResult(t)
			})
		},
	}
	cmd.Flags().Float64Var(&in.Amount, "amount", 0, "amount spent")
	cmd.Flags().StringVar(&in.Description, "description", "", "what it was for")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func memberCmd() *cobra.Command {
	var userID, role string
	cmd := &cobra.Command{
		Use:   "member <project-id>",
		Short: "Add a team member or refresh their role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				m, err := rt.Engine.AddTeamMember(ctx, caller(), args[0], userID, role)
				if err != nil {
					return err
				}
				return printResult(m)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "member user id")
	cmd.Flags().StringVar(&role, "role", "", "member role")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func automationCmd() *cobra.Command {
	a := &cobra.Command{Use: "automation", Short: "Run the health, deadline and insight cycle"}
	a.AddCommand(&cobra.Command{
		Use:   "run-once",
		Short: "Run a single cycle now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				report, err := rt.Engine.RunCycle(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(report)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.SetTitle("Scores")
				tw.AppendHeader(table.Row{"Project", "Previous", "Score"})
				for _, s := range report.Scores {
					tw.AppendRow(table.Row{s.ProjectID, s.Previous, s.Score})
				}
				tw.Render()
				if len(report.Alerts) > 0 {
					at := table.NewWriter()
					at.SetOutputMirror(os.Stdout)
					at.SetTitle("Alerts")
					at.AppendHeader(table.Row{"Kind", "Project", "Message"})
					for _, al := range report.Alerts {
						at.AppendRow(table.Row{al.Kind, al.ProjectID, al.Message})
					}
					at.Render()
				}
				for _, f := range report.Failures {
					fmt.Fprintf(os.Stderr, "failed %s for %s: %s\n", f.Stage, f.ProjectID, f.Error)
				}
				fmt.Printf("cycle finished in %s\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
				return nil
			})
		},
	})
	return a
}

func focusCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "focus",
		Short: "Show today's focus list for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				target := userID
				if target == "" {
					target = caller().ID
				}
				d, err := rt.Engine.Dashboard(ctx, caller(), target)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(d.TodaysFocus)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Priority", "Type", "Project", "Action"})
				for _, f := range d.TodaysFocus {
					tw.AppendRow(table.Row{f.Priority, f.Type, f.ProjectName, f.Action})
				}
				tw.AppendFooter(table.Row{"", "", "avg health", fmt.Sprintf("%.1f", d.Metrics.AverageHealth)})
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user whose dashboard to read (defaults to --as)")
	return cmd
}

func insightsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "insights",
		Short: "Show the latest insight snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				snap, err := rt.Engine.LatestInsights(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(snap)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.SetTitle("Insights " + snap.GeneratedAt.Format("2006-01-02 15:04"))
				tw.AppendHeader(table.Row{"Type", "Project", "Message"})
				for _, in := range append(snap.Insights, snap.Recommendations...) {
					tw.AppendRow(table.Row{in.Type, in.ProjectID, in.Message})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD or RFC3339", s)
	}
	return t, nil
}
