package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/straye-as/pipeline-gateway/internal/domain"
	"github.com/straye-as/pipeline-gateway/internal/service"
)

func newRootCmd(out io.Writer, confirm confirmFunc) *cobra.Command {
	return newRootCmdWithApp(&app{out: out, confirm: confirm})
}

// newRootCmdWithApp builds the command tree around a. When a is already wired
// the configuration step is skipped.
func newRootCmdWithApp(a *app) *cobra.Command {
	var baseURL, token string

	rootCmd := &cobra.Command{
		Use:           "pipelinectl",
		Short:         "Sales pipeline terminal client",
		Long:          `Inspect the lead board and move leads through the sales pipeline.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.leads != nil {
				return nil
			}
			cfg, err := a.connect(baseURL, token)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("include-archived") {
				a.includeArchived = cfg.Pipeline.IncludeArchivedDefault
			}
			return nil
		},
	}
	rootCmd.SetOut(a.out)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&baseURL, "base-url", "", "backend base URL (default from config)")
	flags.StringVar(&token, "token", "", "backend bearer token (default BACKEND_SERVICE_TOKEN)")
	flags.BoolVar(&a.includeArchived, "include-archived", false, "include archived leads")
	flags.BoolVarP(&a.assumeYes, "yes", "y", false, "skip confirmation prompts")

	rootCmd.AddCommand(
		boardCmd(a),
		listCmd(a),
		metricsCmd(a),
		feedCmd(a),
		createCmd(a),
		moveCmd(a),
		simpleTransitionCmd(a, domain.TransitionWon, "Mark a lead as won"),
		simpleTransitionCmd(a, domain.TransitionLost, "Mark a lead as lost"),
		simpleTransitionCmd(a, domain.TransitionDelete, "Delete a lead"),
		simpleTransitionCmd(a, domain.TransitionArchive, "Archive a lead"),
		simpleTransitionCmd(a, domain.TransitionRestore, "Restore an archived lead"),
	)
	return rootCmd
}

func boardCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Show the lead board grouped by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			board, err := a.board.Board(ctx, a.includeArchived)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, renderBoard(board))
			return nil
		},
	}
}

func listCmd(a *app) *cobra.Command {
	var status, priority, query string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List leads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := service.LeadFilter{
				IncludeArchived: a.includeArchived,
				Priority:        domain.LeadPriority(strings.ToUpper(priority)),
				Query:           query,
			}
			if status != "" {
				s, err := domain.ParseLeadStatus(status)
				if err != nil {
					return err
				}
				filter.Status = s
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()

			leads, err := a.leads.List(ctx, filter)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, renderLeads(leads))
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only leads with this status")
	cmd.Flags().StringVar(&priority, "priority", "", "only leads with this priority")
	cmd.Flags().StringVarP(&query, "query", "q", "", "search title, company and email")
	return cmd
}

func metricsCmd(a *app) *cobra.Command {
	var rng string

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Show pipeline metrics for a date range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			m, err := a.dashboard.PipelineMetrics(ctx, rng, a.includeArchived)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, renderMetrics(m))
			return nil
		},
	}
	cmd.Flags().StringVarP(&rng, "range", "r", "30d", "date range: 7d, 30d, 90d, 12m or all")
	return cmd
}

func feedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "feed LEAD_ID",
		Short: "Show a lead's activity feed, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			items, err := a.activities.Feed(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, renderFeed(items))
			return nil
		},
	}
}

func createCmd(a *app) *cobra.Command {
	var (
		req   domain.CreateLeadRequest
		value string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a lead; prompts for fields when --title is omitted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Title == "" {
				if err := leadForm(&req, &value).Run(); err != nil {
					return err
				}
			}
			if value != "" {
				v, err := decimal.NewFromString(strings.TrimSpace(value))
				if err != nil {
					return fmt.Errorf("invalid value %q", value)
				}
				req.Value = v
			}
			req.Currency = strings.ToUpper(req.Currency)
			req.Priority = domain.LeadPriority(strings.ToUpper(string(req.Priority)))

			ctx, cancel := commandContext(cmd)
			defer cancel()

			lead, err := a.leads.Create(ctx, &req)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s Created %s (%s) in %s\n",
				successStyle.Render("✔"), lead.Title, lead.ID, lead.Status.Label())
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&req.Title, "title", "", "lead title")
	flags.StringVar(&req.Company, "company", "", "company name")
	flags.StringVar(&req.Email, "email", "", "contact email")
	flags.StringVar(&value, "value", "", "deal value")
	flags.StringVar(&req.Currency, "currency", "USD", "ISO currency code")
	flags.StringVar((*string)(&req.Priority), "priority", "", "LOW, MEDIUM or HIGH")
	return cmd
}

func moveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "move LEAD_ID STATUS",
		Short: "Move a lead to another open status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := domain.ParseLeadStatus(args[1])
			if err != nil {
				return err
			}
			return a.runTransition(cmd, args[0], &domain.TransitionRequest{
				Action: domain.TransitionMove,
				Target: target,
			})
		},
	}
}

func simpleTransitionCmd(a *app, action domain.TransitionAction, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(action) + " LEAD_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTransition(cmd, args[0], &domain.TransitionRequest{Action: action})
		},
	}
}

// runTransition begins a transition and, when it waits for confirmation,
// asks the user before confirming or cancelling it.
func (a *app) runTransition(cmd *cobra.Command, leadID string, req *domain.TransitionRequest) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	t, err := a.transitions.Begin(ctx, leadID, req)
	if err != nil {
		return transitionError(t, err)
	}

	if t.State == domain.TransitionAwaitingConfirmation {
		ok := a.assumeYes
		if !ok {
			lead, _ := a.leads.Get(ctx, leadID)
			title, desc := confirmationText(t, lead)
			if ok, err = a.confirm(title, desc); err != nil {
				_, _ = a.transitions.Cancel(t.ID)
				return err
			}
		}
		if !ok {
			if _, err := a.transitions.Cancel(t.ID); err != nil {
				return err
			}
			fmt.Fprintln(a.out, mutedStyle.Render("Cancelled, nothing was changed."))
			return nil
		}
		if t, err = a.transitions.Confirm(ctx, t.ID); err != nil {
			return transitionError(t, err)
		}
	}

	fmt.Fprintln(a.out, renderTransition(t))
	return nil
}

// transitionError prefers the backend's own words for a rolled-back transition
func transitionError(t domain.Transition, err error) error {
	if t.State == domain.TransitionRolledBack && t.Error != "" {
		return fmt.Errorf("%s rolled back: %s", t.Action, t.Error)
	}
	return err
}

func confirmationText(t domain.Transition, lead domain.Lead) (string, string) {
	name := lead.Title
	if name == "" {
		name = t.LeadID
	}
	switch t.Action {
	case domain.TransitionDelete:
		return fmt.Sprintf("Delete %q?", name), "The lead and its activity history are removed permanently."
	case domain.TransitionWon:
		return fmt.Sprintf("Mark %q as won?", name), fmt.Sprintf("%s %s moves from %s to Won.", lead.Value.StringFixed(2), lead.Currency, t.From.Label())
	default:
		return fmt.Sprintf("Mark %q as lost?", name), fmt.Sprintf("The lead moves from %s to Lost.", t.From.Label())
	}
}
