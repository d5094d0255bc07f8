package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/carewell-hms/carewell/cmd/carewell/cli"
	"github.com/carewell-hms/carewell/internal/app"
)

// exitError carries a process exit code out of RunE.
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func jobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and trigger background jobs",
	}

	withJobs := func(run func(ctx context.Context, c *cli.JobsCLI) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			c := cli.NewJobsCLI(cfg.Queue())
			defer func() { _ = c.Close() }()
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			return run(ctx, c)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show queue depth for the audit and default queues",
		RunE: withJobs(func(ctx context.Context, c *cli.JobsCLI) error {
			stats, err := c.InspectQueues(ctx)
			if err != nil {
				return err
			}
			cli.PrintStats(os.Stdout, stats)
			return nil
		}),
	})

	deadCmd := &cobra.Command{
		Use:   "dead-audit",
		Short: "List audit events that exhausted their retries",
	}
	deadCmd.Flags().Int("limit", 10, "Maximum number of events to print")
	deadCmd.RunE = withJobs(func(ctx context.Context, c *cli.JobsCLI) error {
		limit, _ := deadCmd.Flags().GetInt("limit")
		events, err := c.ListDeadAuditEvents(ctx, limit)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		for _, ev := range events {
			if err := enc.Encode(ev); err != nil {
				return err
			}
		}
		return nil
	})
	cmd.AddCommand(deadCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "sync-catalog",
		Short: "Enqueue a permission catalog sync",
		RunE: withJobs(func(ctx context.Context, c *cli.JobsCLI) error {
			info, err := c.SyncCatalog(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("enqueued %s (%s) on %s\n", info.Type, info.ID, info.Queue)
			return nil
		}),
	})
	return cmd
}

func authzCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authz",
		Short: "Authorization diagnostics",
	}

	explainCmd := &cobra.Command{
		Use:   "explain",
		Short: "Show how a user's request would be decided",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetInt64("user")
			tenantID, _ := cmd.Flags().GetInt64("tenant")
			codes, _ := cmd.Flags().GetStringSlice("require")
			mode, _ := cmd.Flags().GetString("mode")
			asJSON, _ := cmd.Flags().GetBool("json")

			rt, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			code := cli.NewExplainCLI(rt.services.Resolver).Command(cmd.Context(), cli.ExplainOptions{
				UserID:     userID,
				TenantID:   tenantID,
				Codes:      codes,
				Mode:       mode,
				JSONOutput: asJSON,
			})
			if code != 0 {
				return exitError{code: code}
			}
			return nil
		},
	}
	explainCmd.Flags().Int64("user", 0, "User id")
	explainCmd.Flags().Int64("tenant", 0, "Request tenant id")
	explainCmd.Flags().StringSlice("require", nil, "Permission code(s), comma separated")
	explainCmd.Flags().String("mode", "single", "Requirement mode: single, any or all")
	explainCmd.Flags().Bool("json", false, "Print the decision as JSON")
	cmd.AddCommand(explainCmd)
	return cmd
}

func tenantsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenants",
		Short: "Manage tenants",
	}

	provisionCmd := &cobra.Command{
		Use:   "provision",
		Short: "Create the system Admin role for existing tenants",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, _ := cmd.Flags().GetInt64Slice("tenant")
			if len(ids) == 0 {
				return fmt.Errorf("--tenant is required")
			}

			rt, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			for _, id := range ids {
				role, err := rt.services.Roles.ProvisionTenant(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("provision tenant %d: %w", id, err)
				}
				fmt.Printf("tenant %d: system role %q (id %d)\n", id, role.Name, role.ID)
			}
			return nil
		},
	}
	provisionCmd.Flags().Int64Slice("tenant", nil, "Tenant id(s), comma separated")
	cmd.AddCommand(provisionCmd)
	return cmd
}

func exitCode(err error) int {
	var exit exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	return 1
}
