package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"task-gravity-backend/internal/auth"
	"task-gravity-backend/internal/config"
	"task-gravity-backend/internal/db"
	"task-gravity-backend/internal/tasks"
)

func parseStatusFlag(raw []string) ([]tasks.Status, error) {
	var out []tasks.Status
	for _, v := range raw {
		s, err := tasks.ParseStatus(strings.TrimSpace(v))
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the tasks schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Store != config.StorePostgres {
				return fmt.Errorf("❌ migrate needs the postgres store (got %q)", a.cfg.Store)
			}
			dbx, err := db.Connect(cmd.Context(), a.cfg.ConnString())
			if err != nil {
				return fmt.Errorf("❌ failed to connect DB: %w", err)
			}
			defer dbx.Close()
			if err := db.EnsureSchema(cmd.Context(), dbx); err != nil {
				return fmt.Errorf("❌ failed to apply schema: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✅ Schema is up to date.")
			return nil
		},
	}
}

func (a *app) addCmd() *cobra.Command {
	var (
		parent      string
		description string
		category    string
		x, y        float64
		difficulty  int
	)
	cmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Create a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := tasks.CreateTaskInput{Title: strings.Join(args, " ")}
			if parent != "" {
				in.ParentID = &parent
			}
			if description != "" {
				in.Description = &description
			}
			if category != "" {
				c, err := tasks.ParseCategory(category)
				if err != nil {
					return err
				}
				in.Category = &c
			}
			if cmd.Flags().Changed("x") {
				in.TimeCostX = &x
			}
			if cmd.Flags().Changed("y") {
				in.InterestY = &y
			}
			if cmd.Flags().Changed("difficulty") {
				in.Difficulty = &difficulty
			}

			return a.withService(cmd.Context(), func(svc *tasks.Service, ownerID string) error {
				t, err := svc.CreateTask(cmd.Context(), ownerID, in)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✅ Task %s has been created successfully.\n", t.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&parent, "parent", "p", "", "Parent task id")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Task description")
	cmd.Flags().StringVarP(&category, "category", "c", "", "Category (work, personal, learning, creative, health)")
	cmd.Flags().Float64Var(&x, "x", tasks.DefaultCoordinate, "Time cost, 0-100")
	cmd.Flags().Float64Var(&y, "y", tasks.DefaultCoordinate, "Interest, 0-100")
	cmd.Flags().IntVar(&difficulty, "difficulty", tasks.DefaultDifficulty, "Difficulty, 1-10")
	return cmd
}

func (a *app) listCmd() *cobra.Command {
	var (
		statuses []string
		search   string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := parseStatusFlag(statuses)
			if err != nil {
				return err
			}
			return a.withService(cmd.Context(), func(svc *tasks.Service, ownerID string) error {
				list, err := svc.ListTasks(cmd.Context(), ownerID, tasks.Filter{Statuses: st, Search: search})
				if err != nil {
					return err
				}
				renderTasks(cmd.OutOrStdout(), list)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status")
	cmd.Flags().StringVarP(&search, "search", "q", "", "Search by title")
	return cmd
}

func (a *app) treeCmd() *cobra.Command {
	var statuses []string
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Show tasks as a parent/child forest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := parseStatusFlag(statuses)
			if err != nil {
				return err
			}
			return a.withService(cmd.Context(), func(svc *tasks.Service, ownerID string) error {
				forest, err := svc.GetTaskTree(cmd.Context(), ownerID, st...)
				if err != nil {
					return err
				}
				renderTree(cmd.OutOrStdout(), forest)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status")
	return cmd
}

func (a *app) rootsCmd() *cobra.Command {
	var statuses []string
	cmd := &cobra.Command{
		Use:   "roots",
		Short: "List top-level tasks, most recently touched first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := parseStatusFlag(statuses)
			if err != nil {
				return err
			}
			return a.withService(cmd.Context(), func(svc *tasks.Service, ownerID string) error {
				list, err := svc.GetRootTasks(cmd.Context(), ownerID, st...)
				if err != nil {
					return err
				}
				renderTasks(cmd.OutOrStdout(), list)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status")
	return cmd
}

func (a *app) gravityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gravity",
		Short: "List active top-level tasks by interest, then time cost",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd.Context(), func(svc *tasks.Service, ownerID string) error {
				list, err := svc.GetTasksForGravity(cmd.Context(), ownerID)
				if err != nil {
					return err
				}
				renderTasks(cmd.OutOrStdout(), list)
				return nil
			})
		},
	}
}

func (a *app) moveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move [id] [time-cost] [interest]",
		Short: "Place a task on the board",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("❌ time cost must be a number: %w", err)
			}
			y, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("❌ interest must be a number: %w", err)
			}
			return a.withService(cmd.Context(), func(svc *tasks.Service, ownerID string) error {
				t, err := svc.UpdateCoordinates(cmd.Context(), ownerID, args[0], x, y)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✅ Task %s moved to (%.1f, %.1f).\n", t.ID, t.TimeCostX, t.InterestY)
				return nil
			})
		},
	}
}

func (a *app) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm [id]",
		Short: "Delete a task and all of its subtasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd.Context(), func(svc *tasks.Service, ownerID string) error {
				if err := svc.DeleteTask(cmd.Context(), ownerID, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "🗑️  Task %s has been deleted.\n", args[0])
				return nil
			})
		},
	}
}

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize tasks by status and category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd.Context(), func(svc *tasks.Service, ownerID string) error {
				st, err := svc.GetStats(cmd.Context(), ownerID)
				if err != nil {
					return err
				}
				renderStats(cmd.OutOrStdout(), st)
				return nil
			})
		},
	}
}

func (a *app) decayCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "decay",
		Short: "Archive inbox/active tasks nobody touched for --days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("days") {
				days = a.cfg.DecayThresholdDays
			}
			return a.withService(cmd.Context(), func(svc *tasks.Service, ownerID string) error {
				n, err := svc.DecayTasks(cmd.Context(), ownerID, days)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "🍂 %d task(s) archived (threshold %d days).\n", n, days)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", tasks.DefaultDecayThresholdDays, "Staleness threshold in days")
	return cmd
}

func (a *app) focusCmd() *cobra.Command {
	focus := &cobra.Command{
		Use:   "focus",
		Short: "Start or stop a focus session",
	}

	start := &cobra.Command{
		Use:   "start [id]",
		Short: "Start focusing on a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd.Context(), func(svc *tasks.Service, ownerID string) error {
				t, err := svc.StartFocus(cmd.Context(), ownerID, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "🎯 Focus started on %q.\n", t.Title)
				return nil
			})
		},
	}

	var complete bool
	stop := &cobra.Command{
		Use:   "stop [id]",
		Short: "Stop the running focus session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd.Context(), func(svc *tasks.Service, ownerID string) error {
				t, err := svc.StopFocus(cmd.Context(), ownerID, args[0], complete)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "⏱️  %q: %s focused in total.\n",
					t.Title, time.Duration(t.TotalFocusTime)*time.Second)
				return nil
			})
		},
	}
	stop.Flags().BoolVar(&complete, "complete", false, "Also mark the task completed")

	focus.AddCommand(start, stop)
	return focus
}

func (a *app) tokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for --owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.JWTSecret == "" {
				return fmt.Errorf("❌ jwt_secret is not configured")
			}
			ownerID, err := a.owner()
			if err != nil {
				return err
			}
			tok, err := auth.GenerateToken([]byte(a.cfg.JWTSecret), ownerID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultTokenTTL, "Token lifetime")
	return cmd
}
