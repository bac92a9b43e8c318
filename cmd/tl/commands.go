package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tufline/internal/app"
	"tufline/internal/domain"
	"tufline/internal/engine"
	"tufline/internal/repo"
	"tufline/internal/tuf"
)

func curveCmd() *cobra.Command {
	curve := &cobra.Command{
		Use:   "curve",
		Short: "Time utility functions",
		Long:  "A curve is a list of time,utility points. Utility between points is linear; outside the first and last point it is undefined.",
	}
	curve.AddCommand(curveCreateCmd())
	curve.AddCommand(curveShowCmd())
	curve.AddCommand(curveEvalCmd())
	curve.AddCommand(curveBestCmd())
	return curve
}

// parsePoint reads "time,utility" where time is epoch ms or RFC3339.
func parsePoint(s string) (tuf.Point, error) {
	at, util, ok := strings.Cut(s, ",")
	if !ok {
		return tuf.Point{}, fmt.Errorf("invalid point %q: want time,utility", s)
	}
	t, err := parseMillis(at)
	if err != nil {
		return tuf.Point{}, err
	}
	u, err := parseInt(util)
	if err != nil {
		return tuf.Point{}, fmt.Errorf("invalid utility in %q: %w", s, err)
	}
	return tuf.Point{Time: t, Utility: u}, nil
}

func curveCreateCmd() *cobra.Command {
	var raw []string
	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Create a curve",
		Example: "tl curve create --point 2024-01-01T09:00:00Z,0 --point 2024-01-01T17:00:00Z,10",
		RunE: func(cmd *cobra.Command, args []string) error {
			points := make([]tuf.Point, 0, len(raw))
			for _, r := range raw {
				p, err := parsePoint(r)
				if err != nil {
					return err
				}
				points = append(points, p)
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				f, err := rt.Engine.CreateUtilityFunction(ctx, apiKey(), points)
				if err != nil {
					return err
				}
				return printCurve(f)
			})
		},
	}
	cmd.Flags().StringArrayVar(&raw, "point", nil, "time,utility point (repeatable)")
	return cmd
}

func curveShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <curve-id>",
		Short: "Show a curve",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				f, err := rt.Engine.GetUtilityFunction(ctx, apiKey(), args[0])
				if err != nil {
					return err
				}
				return printCurve(f)
			})
		},
	}
}

func printCurve(f domain.TimeUtilityFunction) error {
	if viper.GetBool("json") {
		return printJSON(f)
	}
	fmt.Printf("Curve %s (creator %s)\n", f.ID, f.CreatorUserID)
	tw := newTable("Time", "Epoch ms", "Utility")
	for _, p := range f.Points {
		tw.AppendRow(table.Row{formatMillis(p.Time), p.Time, p.Utility})
	}
	tw.Render()
	return nil
}

func curveEvalCmd() *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "eval <curve-id>",
		Short: "Utility of a curve at a time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseMillis(at)
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				u, defined, err := rt.Engine.UtilityAt(ctx, apiKey(), args[0], t)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					out := map[string]any{"t": t, "defined": defined}
					if defined {
						out["utility"] = u
					}
					return printJSON(out)
				}
				if !defined {
					fmt.Printf("%s: undefined (outside the curve)\n", formatMillis(t))
					return nil
				}
				fmt.Printf("%s: %g\n", formatMillis(t), u)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "time to evaluate")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

func curveBestCmd() *cobra.Command {
	var from, to string
	var duration int64
	cmd := &cobra.Command{
		Use:   "best <curve-id>",
		Short: "Best start time inside a window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, we, err := parseWindow(from, to)
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				start, u, found, err := rt.Engine.BestStart(ctx, apiKey(), args[0], ws, we, duration)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					out := map[string]any{"found": found}
					if found {
						out["start_time"] = start
						out["utility"] = u
					}
					return printJSON(out)
				}
				if !found {
					fmt.Println("no start time fits the window and curve")
					return nil
				}
				fmt.Printf("start %s (utility %g)\n", formatMillis(start), u)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "window-start", "", "window start")
	cmd.Flags().StringVar(&to, "window-end", "", "window end")
	cmd.Flags().Int64Var(&duration, "duration", 0, "duration in milliseconds")
	_ = cmd.MarkFlagRequired("window-start")
	_ = cmd.MarkFlagRequired("window-end")
	return cmd
}

func goalCmd() *cobra.Command {
	goal := &cobra.Command{
		Use:   "goal",
		Short: "Manage goals",
		Long:  "Goals carry a duration estimate and a curve. Revisions append; the latest is current. COMPLETED and CANCELLED goals are final.",
	}
	goal.AddCommand(goalCreateCmd())
	goal.AddCommand(goalListCmd())
	goal.AddCommand(goalReviseCmd())
	goal.AddCommand(goalEventCmd())
	goal.AddCommand(goalEventsCmd())
	return goal
}

func goalCreateCmd() *cobra.Command {
	var opts engine.GoalCreateOptions
	var start string
	var duration int64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a goal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("start") {
				t, err := parseMillis(start)
				if err != nil {
					return err
				}
				opts.Scheduled = true
				opts.StartTime = &t
				opts.Duration = &duration
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				g, err := rt.Engine.CreateGoal(ctx, apiKey(), opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(g)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "goal name")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().Int64Var(&opts.DurationEstimate, "duration-estimate", 0, "estimated duration in milliseconds")
	cmd.Flags().StringVar(&opts.TimeUtilityFunctionID, "curve", "", "time utility function id")
	cmd.Flags().StringVar(&start, "start", "", "scheduled start (marks the goal scheduled)")
	cmd.Flags().Int64Var(&duration, "duration", 0, "scheduled duration in milliseconds")
	return cmd
}

func goalListCmd() *cobra.Command {
	var f repo.GoalFilter
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List goals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				if !all {
					p, err := rt.Engine.Authenticate(ctx, apiKey())
					if err != nil {
						return err
					}
					f.CreatorUserIDs = []string{p.UserID}
				}
				goals, err := rt.Engine.ListGoals(ctx, apiKey(), f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(goals)
				}
				tw := newTable("Goal", "Rev", "Name", "Status", "Estimate ms", "Scheduled", "Curve")
				for _, g := range goals {
					sched := ""
					if g.Scheduled && g.StartTime != nil {
						sched = formatMillis(*g.StartTime)
					}
					tw.AppendRow(table.Row{g.GoalID, g.RevisionID, g.Name, g.Status, g.DurationEstimate, sched, g.TimeUtilityFunctionID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&f.Statuses, "status", nil, "status filter (repeatable)")
	cmd.Flags().StringArrayVar(&f.GoalIDs, "id", nil, "goal id filter (repeatable)")
	cmd.Flags().BoolVar(&f.OnlyRecent, "recent", true, "only the latest revision of each goal")
	cmd.Flags().BoolVar(&all, "all-users", false, "include goals of every user")
	return cmd
}

func goalReviseCmd() *cobra.Command {
	var name, description, curve, status, start string
	var estimate, duration int64
	var scheduled bool
	cmd := &cobra.Command{
		Use:   "revise <goal-id>",
		Short: "Append a goal revision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.GoalReviseOptions{
				Name:                  optionalString(cmd, "name", name),
				Description:           optionalString(cmd, "description", description),
				DurationEstimate:      optionalInt64(cmd, "duration-estimate", estimate),
				TimeUtilityFunctionID: optionalString(cmd, "curve", curve),
				Scheduled:             optionalBool(cmd, "scheduled", scheduled),
				Duration:              optionalInt64(cmd, "duration", duration),
				Status:                optionalString(cmd, "status", strings.ToUpper(status)),
			}
			if cmd.Flags().Changed("start") {
				t, err := parseMillis(start)
				if err != nil {
					return err
				}
				opts.StartTime = &t
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				g, err := rt.Engine.ReviseGoal(ctx, apiKey(), args[0], opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(g)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "goal name")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().Int64Var(&estimate, "duration-estimate", 0, "estimated duration in milliseconds")
	cmd.Flags().StringVar(&curve, "curve", "", "time utility function id")
	cmd.Flags().BoolVar(&scheduled, "scheduled", false, "scheduled flag")
	cmd.Flags().StringVar(&start, "start", "", "scheduled start")
	cmd.Flags().Int64Var(&duration, "duration", 0, "scheduled duration in milliseconds")
	cmd.Flags().StringVar(&status, "status", "", "PENDING, COMPLETED or CANCELLED")
	return cmd
}

func goalEventCmd() *cobra.Command {
	var start string
	var duration int64
	cmd := &cobra.Command{
		Use:   "event <goal-id>",
		Short: "Log that a goal happened",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseMillis(start)
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				ev, err := rt.Engine.CreateGoalEvent(ctx, apiKey(), args[0], t, duration)
				if err != nil {
					return err
				}
				return printJSONOrTable(ev)
			})
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "event start")
	cmd.Flags().Int64Var(&duration, "duration", 0, "event duration in milliseconds")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("duration")
	return cmd
}

func goalEventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events <goal-id>",
		Short: "List events of a goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				events, err := rt.Engine.ListGoalEvents(ctx, apiKey(), repo.GoalEventFilter{GoalIDs: args, OnlyRecent: true})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := newTable("Event", "Start", "Duration ms", "Active")
				for _, ev := range events {
					tw.AppendRow(table.Row{ev.RevisionID, formatMillis(ev.StartTime), ev.Duration, ev.Active})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func entityCmd() *cobra.Command {
	ent := &cobra.Command{
		Use:   "entity",
		Short: "Manage named entities",
		Long:  "Named entities tag goals: a goal whose name or description contains an active pattern of an active entity gets tagged with it.",
	}
	ent.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create a named entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				d, err := rt.Engine.CreateNamedEntity(ctx, apiKey(), args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	})
	ent.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List named entities",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				items, err := rt.Engine.ListNamedEntities(ctx, apiKey(), repo.OwnerFilter{OnlyRecent: true})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("Entity", "Name", "Active", "Creator")
				for _, d := range items {
					tw.AppendRow(table.Row{d.NamedEntityID, d.Name, d.Active, d.CreatorUserID})
				}
				tw.Render()
				return nil
			})
		},
	})
	ent.AddCommand(&cobra.Command{
		Use:   "deactivate <entity-id>",
		Short: "Deactivate a named entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inactive := false
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				d, err := rt.Engine.ReviseNamedEntity(ctx, apiKey(), args[0], nil, &inactive)
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	})
	ent.AddCommand(patternCmd(patternOps{
		owner:      "entity",
		create:     engine.Engine.CreateNamedEntityPattern,
		deactivate: engine.Engine.DeactivateNamedEntityPattern,
		list:       engine.Engine.ListNamedEntityPatterns,
	}))
	return ent
}

func intentCmd() *cobra.Command {
	in := &cobra.Command{
		Use:   "intent",
		Short: "Manage goal intents",
		Long:  "A goal intent is a named, long-lived aim. Like every record it is revised rather than edited in place.",
	}
	in.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create a goal intent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				d, err := rt.Engine.CreateGoalIntent(ctx, apiKey(), args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	})

	var (
		name, partial string
		history       bool
		offset, limit int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List goal intents",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				items, err := rt.Engine.ListGoalIntents(ctx, apiKey(), repo.OwnerFilter{
					OnlyRecent:  !history,
					Name:        name,
					PartialName: partial,
					Page:        repo.Page{Offset: offset, Limit: limit},
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("Intent", "Revision", "Name", "Active", "Created")
				for _, d := range items {
					tw.AppendRow(table.Row{d.GoalIntentID, d.RevisionID, d.Name, d.Active, formatMillis(d.CreationTime)})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().StringVar(&name, "name", "", "exact name")
	list.Flags().StringVar(&partial, "partial-name", "", "substring of the name")
	list.Flags().BoolVar(&history, "history", false, "include superseded revisions")
	list.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	list.Flags().IntVar(&limit, "limit", 0, "maximum rows (0 for all)")
	in.AddCommand(list)

	var (
		rename string
		active bool
	)
	revise := &cobra.Command{
		Use:   "revise <intent-id>",
		Short: "Rename or (de)activate a goal intent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			newName := optionalString(cmd, "name", rename)
			newActive := optionalBool(cmd, "active", active)
			if newName == nil && newActive == nil {
				return fmt.Errorf("nothing to revise: pass --name or --active")
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				d, err := rt.Engine.ReviseGoalIntent(ctx, apiKey(), args[0], newName, newActive)
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	revise.Flags().StringVar(&rename, "name", "", "new name")
	revise.Flags().BoolVar(&active, "active", true, "set the active flag")
	in.AddCommand(revise)
	return in
}

func templateCmd() *cobra.Command {
	tpl := &cobra.Command{
		Use:   "template",
		Short: "Manage goal templates",
		Long:  "Templates link goals matching their patterns and can be instantiated into new goals with the curve shifted by an anchor.",
	}
	tpl.AddCommand(templateCreateCmd())
	tpl.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List goal templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				items, err := rt.Engine.ListGoalTemplates(ctx, apiKey(), repo.OwnerFilter{OnlyRecent: true})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("Template", "Name", "Estimate ms", "Curve", "Active")
				for _, d := range items {
					tw.AppendRow(table.Row{d.GoalTemplateID, d.Name, d.DurationEstimate, d.TimeUtilityFunctionID, d.Active})
				}
				tw.Render()
				return nil
			})
		},
	})
	tpl.AddCommand(&cobra.Command{
		Use:   "deactivate <template-id>",
		Short: "Deactivate a goal template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inactive := false
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				d, err := rt.Engine.ReviseGoalTemplate(ctx, apiKey(), args[0], engine.TemplateReviseOptions{Active: &inactive})
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	})
	tpl.AddCommand(templateInstantiateCmd())
	tpl.AddCommand(patternCmd(patternOps{
		owner:      "template",
		create:     engine.Engine.CreateGoalTemplatePattern,
		deactivate: engine.Engine.DeactivateGoalTemplatePattern,
		list:       engine.Engine.ListGoalTemplatePatterns,
	}))
	return tpl
}

func templateCreateCmd() *cobra.Command {
	var opts engine.TemplateCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a goal template",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				d, err := rt.Engine.CreateGoalTemplate(ctx, apiKey(), opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "template name")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().Int64Var(&opts.DurationEstimate, "duration-estimate", 0, "estimated duration in milliseconds")
	cmd.Flags().StringVar(&opts.TimeUtilityFunctionID, "curve", "", "time utility function id")
	return cmd
}

func templateInstantiateCmd() *cobra.Command {
	var anchor int64
	cmd := &cobra.Command{
		Use:   "instantiate <template-id>",
		Short: "Create a goal from a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				g, err := rt.Engine.InstantiateTemplate(ctx, apiKey(), args[0], anchor)
				if err != nil {
					return err
				}
				return printJSONOrTable(g)
			})
		},
	}
	cmd.Flags().Int64Var(&anchor, "anchor", 0, "offset in milliseconds applied to the template curve")
	return cmd
}

type patternOps struct {
	owner      string
	create     func(engine.Engine, context.Context, string, string, string) (domain.Pattern, error)
	deactivate func(engine.Engine, context.Context, string, string) (domain.Pattern, error)
	list       func(engine.Engine, context.Context, string, repo.PatternFilter) ([]domain.Pattern, error)
}

func patternCmd(ops patternOps) *cobra.Command {
	pat := &cobra.Command{Use: "pattern", Short: "Manage " + ops.owner + " patterns"}
	pat.AddCommand(&cobra.Command{
		Use:   "add <" + ops.owner + "-id> <text>",
		Short: "Add a pattern",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				p, err := ops.create(rt.Engine, ctx, apiKey(), args[0], args[1])
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	})
	pat.AddCommand(&cobra.Command{
		Use:   "deactivate <pattern-id>",
		Short: "Deactivate a pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				p, err := ops.deactivate(rt.Engine, ctx, apiKey(), args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	})
	pat.AddCommand(&cobra.Command{
		Use:   "list [" + ops.owner + "-id...]",
		Short: "List current patterns",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				items, err := ops.list(rt.Engine, ctx, apiKey(), repo.PatternFilter{OwnerIDs: args, OnlyRecent: true})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("Pattern", "Owner", "Text", "Active")
				for _, p := range items {
					tw.AppendRow(table.Row{p.PatternID, p.OwnerID, p.Pattern, p.Active})
				}
				tw.Render()
				return nil
			})
		},
	})
	return pat
}

func tagsCmd() *cobra.Command {
	tags := &cobra.Command{Use: "tags", Short: "Goal tags and template links"}
	tags.AddCommand(&cobra.Command{
		Use:   "resolve [goal-id...]",
		Short: "Match active patterns against goals",
		Long:  "With no goal ids every current goal of the caller is resolved. Existing tags and links are kept.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				res, err := rt.Engine.ResolveAssociations(ctx, apiKey(), args)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Printf("resolved %d goals: %d new tags, %d new template links\n", res.Goals, len(res.Tags), len(res.Links))
				return nil
			})
		},
	})
	tags.AddCommand(&cobra.Command{
		Use:   "list <goal-id...>",
		Short: "List tags and template links of goals",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				tagged, err := rt.Engine.ListGoalTags(ctx, apiKey(), args)
				if err != nil {
					return err
				}
				links, err := rt.Engine.ListGoalTemplateLinks(ctx, apiKey(), args)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"tags": tagged, "links": links})
				}
				tw := newTable("Goal", "Kind", "Target", "Source", "Since")
				for _, t := range tagged {
					tw.AppendRow(table.Row{t.GoalID, "entity", t.NamedEntityID, domain.LinkSourcePattern, formatMillis(t.CreationTime)})
				}
				for _, l := range links {
					tw.AppendRow(table.Row{l.GoalID, "template", l.GoalTemplateID, l.Source, formatMillis(l.CreationTime)})
				}
				tw.Render()
				return nil
			})
		},
	})
	return tags
}

func scheduleCmd() *cobra.Command {
	sched := &cobra.Command{Use: "schedule", Short: "Scheduling suggestions"}
	var from, to string
	suggest := &cobra.Command{
		Use:   "suggest",
		Short: "Best start for each unscheduled pending goal",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, we, err := parseWindow(from, to)
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				items, err := rt.Engine.SuggestSchedule(ctx, apiKey(), ws, we)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("Goal", "Name", "Start", "Utility")
				for _, s := range items {
					tw.AppendRow(table.Row{s.GoalID, s.Name, formatMillis(s.StartTime), s.Utility})
				}
				tw.Render()
				return nil
			})
		},
	}
	suggest.Flags().StringVar(&from, "window-start", "", "window start")
	suggest.Flags().StringVar(&to, "window-end", "", "window end")
	_ = suggest.MarkFlagRequired("window-start")
	_ = suggest.MarkFlagRequired("window-end")
	sched.AddCommand(suggest)
	return sched
}

func dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Pending goals with their last event, tags and templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				items, err := rt.Engine.Dashboard(ctx, apiKey())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("Goal", "Name", "Last event", "Tags", "Templates")
				for _, d := range items {
					last := ""
					if d.Event != nil {
						last = formatMillis(d.Event.StartTime)
					}
					names := make([]string, 0, len(d.Tags))
					for _, t := range d.Tags {
						names = append(names, t.Name)
					}
					templates := make([]string, 0, len(d.Templates))
					for _, t := range d.Templates {
						templates = append(templates, t.Name)
					}
					tw.AppendRow(table.Row{d.Goal.GoalID, d.Goal.Name, last, strings.Join(names, ", "), strings.Join(templates, ", ")})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func parseWindow(from, to string) (int64, int64, error) {
	ws, err := parseMillis(from)
	if err != nil {
		return 0, 0, err
	}
	we, err := parseMillis(to)
	if err != nil {
		return 0, 0, err
	}
	return ws, we, nil
}
