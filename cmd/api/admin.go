package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"civic-reporting-api/internal/app"
	"civic-reporting-api/internal/models"
)

func jobsCmd() *cobra.Command {
	jobs := &cobra.Command{Use: "jobs", Short: "Inspect and retry queued classification jobs"}
	jobs.AddCommand(jobsListCmd(), jobsProcessCmd())
	return jobs
}

func jobsListCmd() *cobra.Command {
	var f struct {
		Status string
		Limit  int
	}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				jobs, err := a.Service.Jobs.ListJobs(cmd.Context(), models.JobFilter{
					Status: models.JobStatus(f.Status),
					Limit:  f.Limit,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(jobs)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Problem", "Status", "Attempts", "Created", "Error"})
				for _, j := range jobs {
					tw.AppendRow(table.Row{j.ID, j.ProblemID, j.Status, j.Attempts, j.CreatedAt.Format(time.RFC3339), j.Error})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter: pending, completed, failed")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "maximum jobs to list (1-100)")
	return cmd
}

func jobsProcessCmd() *cobra.Command {
	var pending int
	cmd := &cobra.Command{
		Use:   "process [job-id]",
		Short: "Retry one job, or a batch of pending jobs with --pending",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && pending <= 0 {
				return fmt.Errorf("a job id or --pending is required")
			}
			return withApp(cmd.Context(), func(a *app.App) error {
				if len(args) == 1 {
					job, err := a.Service.Jobs.ProcessJob(cmd.Context(), args[0])
					if job != nil && viper.GetBool("json") {
						if perr := printJSON(job); perr != nil {
							return perr
						}
					} else if job != nil {
						fmt.Printf("job %s: %s (attempts: %d)\n", job.ID, job.Status, job.Attempts)
					}
					return err
				}
				processed, failed, err := a.Service.Jobs.ProcessPending(cmd.Context(), pending)
				if err != nil {
					return err
				}
				fmt.Printf("processed: %d, failed: %d\n", processed, failed)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&pending, "pending", 0, "process up to N pending jobs, oldest first")
	return cmd
}

func usersCmd() *cobra.Command {
	users := &cobra.Command{Use: "users", Short: "Manage accounts"}

	var email, password, name string
	create := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				res, err := a.Service.Auth.CreateAdmin(cmd.Context(), email, password, name)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Printf("created admin %s (%s)\n", res.User.ID, res.User.Email)
				return nil
			})
		},
	}
	create.Flags().StringVar(&email, "email", "", "admin email")
	create.Flags().StringVar(&password, "password", "", "admin password (min 6 characters)")
	create.Flags().StringVar(&name, "name", "Administrator", "display name")
	_ = create.MarkFlagRequired("email")
	_ = create.MarkFlagRequired("password")

	users.AddCommand(create)
	return users
}

func rewardsCmd() *cobra.Command {
	rewards := &cobra.Command{Use: "rewards", Short: "Manage the reward catalog"}

	var req models.CreateRewardRequest
	var rewardType string
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a reward to the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Type = models.RewardType(rewardType)
			return withApp(cmd.Context(), func(a *app.App) error {
				reward, err := a.Service.Redemptions.CreateReward(cmd.Context(), req)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(reward)
				}
				fmt.Printf("created reward %s\n", reward.ID)
				return nil
			})
		},
	}
	add.Flags().StringVar(&rewardType, "type", "", "transport, commodity or partner")
	add.Flags().StringVar(&req.Description, "description", "", "reward description")
	add.Flags().Float64Var(&req.CreditsRequired, "credits", 0, "credits required to redeem")
	add.Flags().StringVar(&req.PartnerID, "partner", "", "partner id")
	_ = add.MarkFlagRequired("type")
	_ = add.MarkFlagRequired("description")
	_ = add.MarkFlagRequired("credits")

	list := &cobra.Command{
		Use:   "list",
		Short: "List active rewards",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				rewards, err := a.Service.Redemptions.ListAvailableRewards(cmd.Context())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rewards)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Type", "Credits", "Partner", "Description"})
				for _, r := range rewards {
					tw.AppendRow(table.Row{r.ID, r.Type, r.CreditsRequired, r.PartnerID, r.Description})
				}
				tw.Render()
				return nil
			})
		},
	}

	rewards.AddCommand(add, list)
	return rewards
}

func featuresCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "features",
		Short: "Show feature flags as resolved from configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				flags := a.Flags.All()
				if viper.GetBool("json") {
					return printJSON(flags)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Flag", "Enabled", "Description"})
				for _, f := range flags {
					tw.AppendRow(table.Row{f.Name, f.Enabled, f.Description})
				}
				tw.Render()
				return nil
			})
		},
	}
}
