package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"servicehub/internal/app"
	"servicehub/internal/domain"
	"servicehub/internal/engine"
)

func providerCmd() *cobra.Command {
	p := &cobra.Command{Use: "provider", Short: "Manage service providers"}
	p.AddCommand(providerListCmd())
	p.AddCommand(providerCreateCmd())
	p.AddCommand(providerVerifyCmd())
	return p
}

func providerListCmd() *cobra.Command {
	var q engine.ProviderQuery
	var verified string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Search providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			if verified != "" {
				v, err := strconv.ParseBool(verified)
				if err != nil {
					return fmt.Errorf("--verified must be true or false")
				}
				q.Verified = &v
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				list, err := rt.Engine.ListProviders(ctx, q)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(list)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Business", "Category", "Location", "Verified", "Rating"})
				for _, p := range list.Providers {
					tw.AppendRow(table.Row{p.ID, p.BusinessName, p.Category, p.Location, p.Verified, fmt.Sprintf("%.1f (%d)", p.RatingAverage, p.RatingCount)})
				}
				tw.AppendFooter(table.Row{"", "", "", "", "page", fmt.Sprintf("%d/%d", list.Pagination.CurrentPage, list.Pagination.TotalPages)})
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&q.Category, "category", "", "category filter")
	cmd.Flags().StringVar(&q.Location, "location", "", "location substring")
	cmd.Flags().StringVar(&verified, "verified", "", "true or false")
	cmd.Flags().StringVar(&q.Search, "search", "", "search business name and description")
	cmd.Flags().IntVar(&q.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&q.Limit, "limit", 20, "page size (max 100)")
	return cmd
}

func providerCreateCmd() *cobra.Command {
	var in engine.ProviderInput
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a provider owned by --as",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				p, err := rt.Engine.CreateProvider(ctx, caller(), in)
				if err != nil {
					return err
				}
				return printResult(p)
			})
		},
	}
	cmd.Flags().StringVar(&in.BusinessName, "name", "", "business name")
	cmd.Flags().StringVar(&in.BusinessDescription, "description", "", "business description")
	cmd.Flags().StringVar(&in.Category, "category", "", "category")
	cmd.Flags().StringVar(&in.Subcategory, "subcategory", "", "subcategory")
	cmd.Flags().StringVar(&in.Location, "location", "", "location")
	cmd.Flags().StringVar(&in.Phone, "phone", "", "phone")
	cmd.Flags().StringVar(&in.Email, "email", "", "contact email")
	cmd.Flags().StringVar(&in.Website, "website", "", "website")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func providerVerifyCmd() *cobra.Command {
	var unset bool
	cmd := &cobra.Command{
		Use:   "verify <provider-id>",
		Short: "Mark a provider verified (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				p, err := rt.Engine.VerifyProvider(ctx, caller(), args[0], !unset)
				if err != nil {
					return err
				}
				return printResult(p)
			})
		},
	}
	cmd.Flags().BoolVar(&unset, "unset", false, "clear verification instead")
	return cmd
}

func requestCmd() *cobra.Command {
	r := &cobra.Command{
		Use:   "request",
		Short: "Manage service requests",
		Long:  "Requests move pending -> accepted -> in_progress -> completed; pending, accepted and in_progress may be cancelled. Clients can only cancel.",
	}
	r.AddCommand(requestCreateCmd())
	r.AddCommand(requestStatusCmd())
	r.AddCommand(requestListCmd())
	r.AddCommand(requestEventsCmd())
	return r
}

func requestCreateCmd() *cobra.Command {
	var in engine.RequestInput
	var budgetMin, budgetMax float64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a request as --as",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("budget-min") {
				in.BudgetMin = &budgetMin
			}
			if cmd.Flags().Changed("budget-max") {
				in.BudgetMax = &budgetMax
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				sr, err := rt.Engine.CreateRequest(ctx, caller(), in)
				if err != nil {
					return err
				}
				return printResult(sr)
			})
		},
	}
	cmd.Flags().StringVar(&in.ProviderID, "provider", "", "provider id")
	cmd.Flags().StringVar(&in.ServiceCategory, "category", "", "service category")
	cmd.Flags().StringVar(&in.Description, "description", "", "what needs doing")
	cmd.Flags().StringVar(&in.Location, "location", "", "where")
	cmd.Flags().StringVar(&in.Urgency, "urgency", "", "low, medium or high")
	cmd.Flags().StringVar(&in.ContactPhone, "phone", "", "contact phone")
	cmd.Flags().Float64Var(&budgetMin, "budget-min", 0, "minimum budget")
	cmd.Flags().Float64Var(&budgetMax, "budget-max", 0, "maximum budget")
	_ = cmd.MarkFlagRequired("provider")
	return cmd
}

func requestStatusCmd() *cobra.Command {
	var notes string
	cmd := &cobra.Command{
		Use:   "status <request-id> <status>",
		Short: "Move a request to a new status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				sr, err := rt.Engine.UpdateRequestStatus(ctx, caller(), args[0], domain.RequestStatus(args[1]), notes)
				if err != nil {
					return err
				}
				return printResult(sr)
			})
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "notes stored on the request")
	return cmd
}

func requestListCmd() *cobra.Command {
	var q engine.RequestQuery
	var status string
	var incoming bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List requests opened by --as (or addressed to its providers with --incoming)",
		RunE: func(cmd *cobra.Command, args []string) error {
			q.Status = domain.RequestStatus(status)
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				var (
					list engine.RequestList
					err  error
				)
				if incoming {
					list, err = rt.Engine.ProviderRequests(ctx, caller(), q)
				} else {
					list, err = rt.Engine.MyRequests(ctx, caller(), q)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(list)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Provider", "Category", "Status", "Urgency", "Created"})
				for _, r := range list.Requests {
					tw.AppendRow(table.Row{r.ID, r.ProviderID, r.ServiceCategory, r.Status, r.Urgency, r.CreatedAt.Format("2006-01-02 15:04")})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	cmd.Flags().BoolVar(&incoming, "incoming", false, "requests addressed to providers owned by --as")
	cmd.Flags().IntVar(&q.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&q.Limit, "limit", 20, "page size (max 50)")
	return cmd
}

func requestEventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events <request-id>",
		Short: "Show the status audit trail of a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				events, err := rt.Engine.RequestEvents(ctx, caller(), args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"TS", "Type", "Actor", "Payload"})
				for _, e := range events {
					tw.AppendRow(table.Row{e.TS.Format("2006-01-02 15:04:05"), e.Type, e.ActorID, e.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
}
