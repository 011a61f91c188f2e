package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jask/finbridge/internal/budget"
	"github.com/jask/finbridge/internal/config"
	"github.com/jask/finbridge/internal/database/repository"
	"github.com/jask/finbridge/internal/prefs"
	"github.com/jask/finbridge/internal/rules"
	"github.com/jask/finbridge/internal/secrets"
	"github.com/jask/finbridge/internal/service"
	"github.com/jask/finbridge/internal/simplefin"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the local database",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			fmt.Printf("local database ready at %s\n", a.cfg.Database.Path)
			return nil
		}),
	}
}

func newSyncCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "sync [linkage-id]",
		Short: "Run a reconciliation pass for one linkage or all enabled linkages",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			svc := a.syncService()
			if all || len(args) == 0 {
				sum, err := svc.RunAllSyncs(ctx)
				if err != nil {
					return err
				}
				fmt.Println(renderSummary(sum))
				if sum.Failed > 0 {
					return fmt.Errorf("%d of %d linkages failed", sum.Failed, sum.Total)
				}
				return nil
			}
			res := svc.SyncLinkage(ctx, args[0])
			fmt.Println(renderResult(args[0], res))
			if !res.Success && res.Err != nil {
				return res.Err
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&all, "all", false, "sync every enabled linkage")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <linkage-id>",
		Short: "Show the sync state of a linkage",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			st, err := a.syncService().SyncStatus(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Println(renderStatus(st))
			return nil
		}),
	}
}

func newBudgetsCmd() *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "budgets",
		Short: "Show spending against budgets for a month",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			day := time.Now().UTC()
			if month != "" {
				t, err := time.Parse("2006-01", month)
				if err != nil {
					return fmt.Errorf("month must be YYYY-MM: %w", err)
				}
				day = t
			}
			store, err := a.openTarget(ctx)
			if err != nil {
				return err
			}
			defer store.Close()
			st, err := budget.NewEvaluator(store, a.notifications, a.notifier, a.logger).GetStatus(ctx, day)
			if err != nil {
				return err
			}
			fmt.Println(renderBudgetStatus(st))
			return nil
		}),
	}
	cmd.Flags().StringVar(&month, "month", "", "month as YYYY-MM (default: current month)")
	return cmd
}

func newAccountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "List, discover and pair accounts",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			accts, err := a.accounts.List(ctx, "")
			if err != nil {
				return err
			}
			fmt.Println(renderAccounts(accts))
			return nil
		}),
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "discover",
		Short: "Cache accounts from SimpleFIN and Maybe",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			res, err := a.accountService().Discover(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("cached %d SimpleFIN and %d Maybe accounts\n", res.Source, res.Target)
			return nil
		}),
	}, &cobra.Command{
		Use:   "suggest",
		Short: "Propose linkages between unlinked accounts",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			sgs, err := a.accountService().SuggestLinkages(ctx)
			if err != nil {
				return err
			}
			if len(sgs) == 0 {
				fmt.Println("no suggestions")
				return nil
			}
			fmt.Println(renderSuggestions(sgs))
			return nil
		}),
	})
	return cmd
}

func newLinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "link <source-account-id> <target-account-id>",
		Short: "Link a SimpleFIN account to a Maybe account",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			l, err := a.accountService().Link(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("linkage %s created\n", l.ID)
			return nil
		}),
	}
}

func newLinkagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "linkages",
		Short: "List linkages",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			ls, err := a.linkages.List(ctx)
			if err != nil {
				return err
			}
			fmt.Println(renderLinkages(ls))
			return nil
		}),
	}
	toggle := func(use string, enabled bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <linkage-id>",
			Short: use + " a linkage",
			Args:  cobra.ExactArgs(1),
			RunE: withApp(func(ctx context.Context, a *app, args []string) error {
				l, err := a.linkages.Get(ctx, args[0])
				if err != nil {
					return err
				}
				if l == nil {
					return &service.NotFoundError{Kind: "linkage", ID: args[0]}
				}
				return a.linkages.SetEnabled(ctx, l.ID, enabled)
			}),
		}
	}
	unlink := &cobra.Command{
		Use:   "delete <linkage-id>",
		Short: "Delete a linkage",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			return a.linkages.Delete(ctx, args[0])
		}),
	}
	cmd.AddCommand(toggle("enable", true), toggle("disable", false), unlink)
	return cmd
}

func newSetupTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup-token <token>",
		Short: "Claim a SimpleFIN setup token and store the credentials",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			creds, err := simplefin.New(a.cfg.Source.BaseURL, "", "", nil).ClaimSetupToken(ctx, args[0])
			if err != nil {
				return err
			}
			if err := a.settings.Set(ctx, repository.SettingSimpleFINUsername, creds.Username); err != nil {
				return err
			}
			if err := a.secrets.Put(secrets.ProviderSimpleFIN, creds.Password); err != nil {
				return fmt.Errorf("store password: %w", err)
			}
			fmt.Println("SimpleFIN credentials saved")
			return nil
		}),
	}
}

func newCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List categories mirrored from Maybe",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			cats, err := a.categories.List(ctx)
			if err != nil {
				return err
			}
			fmt.Println(renderCategories(cats))
			return nil
		}),
	}
}

func newRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List categorisation rules in evaluation order",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			rs, err := a.rules.List(ctx)
			if err != nil {
				return err
			}
			fmt.Println(renderRules(rs))
			return nil
		}),
	}

	var name, field, operator, value, category string
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a single-condition rule that sets a category",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			if strings.TrimSpace(category) == "" {
				return errors.New("--category is required")
			}
			c, err := a.categories.Get(ctx, category)
			if err != nil {
				return err
			}
			if c == nil {
				return &service.NotFoundError{Kind: "category", ID: category}
			}
			rule := rules.Rule{
				Name:    name,
				Enabled: true,
				Actions: []rules.Action{{Type: rules.ActionSetCategory, Value: c.ID}},
			}
			if value != "" {
				rule.Conditions = []rules.Condition{{Field: field, Operator: operator, Value: value}}
			}
			id, err := a.rules.Create(ctx, rule)
			if err != nil {
				return err
			}
			fmt.Printf("rule %s created\n", id)
			return nil
		}),
	}
	add.Flags().StringVar(&name, "name", "", "rule name")
	add.Flags().StringVar(&field, "field", rules.FieldName, "transaction_name or transaction_amount")
	add.Flags().StringVar(&operator, "operator", rules.OpContains, "condition operator")
	add.Flags().StringVar(&value, "value", "", "condition value")
	add.Flags().StringVar(&category, "category", "", "category id to assign")

	del := &cobra.Command{
		Use:   "delete <rule-id>",
		Short: "Delete a rule",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			return a.rules.Delete(ctx, args[0])
		}),
	}
	export := &cobra.Command{
		Use:   "export [file]",
		Short: "Write rules to a JSON file",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			path, err := rulesPath(args)
			if err != nil {
				return err
			}
			rs, err := a.rules.List(ctx)
			if err != nil {
				return err
			}
			if err := prefs.SaveRules(path, rs); err != nil {
				return err
			}
			fmt.Printf("exported %d rules to %s\n", len(rs), path)
			return nil
		}),
	}
	imp := &cobra.Command{
		Use:   "import [file]",
		Short: "Append rules from a JSON file",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			path, err := rulesPath(args)
			if err != nil {
				return err
			}
			rs, err := prefs.LoadRules(path)
			if err != nil {
				return err
			}
			// keep file order as evaluation order
			base := time.Now().UTC().Truncate(time.Second)
			for i, r := range rs {
				r.CreatedAt = base.Add(time.Duration(i) * time.Second)
				if _, err := a.rules.Create(ctx, r); err != nil {
					return err
				}
			}
			fmt.Printf("imported %d rules from %s\n", len(rs), path)
			return nil
		}),
	}
	cmd.AddCommand(add, del, export, imp)
	return cmd
}

func rulesPath(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	return prefs.RulesPath()
}

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "List runtime settings",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			ss, err := a.settings.List(ctx)
			if err != nil {
				return err
			}
			fmt.Println(renderSettings(ss))
			return nil
		}),
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change a runtime setting",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			key, value := args[0], args[1]
			switch key {
			case repository.SettingSchedule:
				if err := config.ValidateSchedule(value); err != nil {
					return err
				}
			case repository.SettingSimpleFINPassword:
				return a.secrets.Put(secrets.ProviderSimpleFIN, value)
			case repository.SettingMaybePassword:
				return a.secrets.Put(secrets.ProviderMaybe, value)
			}
			return a.settings.Set(ctx, key, value)
		}),
	})
	return cmd
}

func newResetCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear cached accounts, linkages, categories and budget state",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			if !yes {
				return errors.New("refusing to reset without --yes")
			}
			return (&service.MaintenanceService{DB: a.db}).Reset(ctx)
		}),
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}
