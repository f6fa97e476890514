package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/langalex/henry/internal/audit"
	"github.com/langalex/henry/internal/auth"
	"github.com/langalex/henry/internal/migrate"
	"github.com/langalex/henry/internal/store/pg"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type globals struct {
	dsn     string
	timeout time.Duration
}

func newRootCommand(out io.Writer) *cobra.Command {
	g := &globals{}
	cmd := &cobra.Command{
		Use:           "henryctl",
		Short:         "Operator tooling for the henry volunteer planner",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.PersistentFlags().StringVar(&g.dsn, "dsn", os.Getenv("DATABASE_URL"), "PostgreSQL DSN (defaults to DATABASE_URL)")
	cmd.PersistentFlags().DurationVar(&g.timeout, "timeout", 30*time.Second, "Overall command timeout")

	cmd.AddCommand(newMigrateCommand(g))
	cmd.AddCommand(newUsersCommand(g))
	cmd.AddCommand(newAuditCommand(g))
	return cmd
}

// open connects to the database and returns a context bounded by the timeout flag.
func (g *globals) open(cmd *cobra.Command) (context.Context, context.CancelFunc, *pg.Store, error) {
	if g.dsn == "" {
		return nil, nil, nil, errors.New("missing DSN: provide via --dsn or DATABASE_URL")
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	store, err := pg.Open(ctx, g.dsn)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return ctx, cancel, store, nil
}

func newMigrateCommand(g *globals) *cobra.Command {
	var seedsDir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().StringVar(&seedsDir, "seeds", "", "Directory with SQL seed files")

	withManager := func(fn func(ctx context.Context, mgr *migrate.Manager, out io.Writer) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			ctx, cancel, store, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			defer store.Close()
			var opts []migrate.Option
			if seedsDir != "" {
				opts = append(opts, migrate.WithSeeds(os.DirFS(seedsDir)))
			}
			mgr, err := migrate.NewManager(store.DB(), opts...)
			if err != nil {
				return err
			}
			return fn(ctx, mgr, cmd.OutOrStdout())
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: withManager(func(ctx context.Context, mgr *migrate.Manager, out io.Writer) error {
			applied, err := mgr.Up(ctx)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(out, "schema is up to date")
			}
			for _, name := range applied {
				fmt.Fprintf(out, "applied %s\n", name)
			}
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the latest migration",
		RunE: withManager(func(ctx context.Context, mgr *migrate.Manager, out io.Writer) error {
			name, err := mgr.Down(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "rolled back %s\n", name)
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		RunE: withManager(func(ctx context.Context, mgr *migrate.Manager, out io.Writer) error {
			history, err := mgr.Status(ctx)
			if err != nil {
				return err
			}
			return printStatus(out, history)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: withManager(func(ctx context.Context, mgr *migrate.Manager, out io.Writer) error {
			v, err := mgr.Version(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, v)
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Apply seed files that have not run yet",
		RunE: withManager(func(ctx context.Context, mgr *migrate.Manager, out io.Writer) error {
			if seedsDir == "" {
				return errors.New("--seeds is required")
			}
			applied, err := mgr.Seed(ctx)
			if err != nil {
				return err
			}
			for _, name := range applied {
				fmt.Fprintf(out, "seeded %s\n", name)
			}
			return nil
		}),
	})
	return cmd
}

func printStatus(out io.Writer, history []migrate.Status) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED AT")
	for _, s := range history {
		applied := "pending"
		if s.Applied {
			applied = s.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", s.Version, s.Name, applied)
	}
	return tw.Flush()
}

func newUsersCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "User administration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var (
		email string
		name  string
		admin bool
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a user, optionally as admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, store, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			defer store.Close()

			rec, err := audit.NewRecorder(store.Audit(), audit.WithLogger(zerolog.Nop()))
			if err != nil {
				return err
			}
			svc, err := auth.NewService(store, auth.WithAuditSink(rec), auth.WithLogger(zerolog.Nop()))
			if err != nil {
				return err
			}
			in := auth.UserInput{Email: email, Name: name}
			if admin {
				in.Roles = []string{string(auth.RoleAdmin)}
			}
			m, err := svc.Provision(ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s <%s> roles=%v\n", m.ID, m.Email, m.Roles)
			return nil
		},
	}
	create.Flags().StringVar(&email, "email", "", "Email address")
	create.Flags().StringVar(&name, "name", "", "Display name")
	create.Flags().BoolVar(&admin, "admin", false, "Grant the admin role")
	_ = create.MarkFlagRequired("email")
	_ = create.MarkFlagRequired("name")

	cmd.AddCommand(create)
	return cmd
}

func newAuditCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var (
		page     int
		pageSize int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "Print one page of the audit log, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, store, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			defer store.Close()

			rec, err := audit.NewRecorder(store.Audit(), audit.WithPageSize(pageSize))
			if err != nil {
				return err
			}
			p, err := rec.Page(ctx, page)
			if err != nil {
				return err
			}
			return printAudit(cmd.OutOrStdout(), p)
		},
	}
	list.Flags().IntVar(&page, "page", 1, "Page number")
	list.Flags().IntVar(&pageSize, "page-size", audit.DefaultPageSize, "Entries per page")

	cmd.AddCommand(list)
	return cmd
}

func printAudit(out io.Writer, p audit.Page) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tACTOR\tACTION\tRESOURCE\tTARGET\tDETAILS")
	for _, e := range p.Entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt.UTC().Format(time.RFC3339),
			person(e.ActorDisplayName, e.ActorName, e.ActorEmail),
			e.Action,
			resource(e.ResourceType, e.ResourceName, e.ResourceID),
			person(e.TargetDisplayName, e.TargetName, e.TargetEmail),
			e.Details)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "page %d of %d (%d entries)\n", p.Page, max(p.TotalPages, 1), p.Total)
	return err
}

// person prefers the current display name and falls back to the recorded one.
func person(current, recorded, email string) string {
	name := current
	if name == "" {
		name = recorded
	}
	switch {
	case name == "" && email == "":
		return "-"
	case email == "":
		return name
	}
	return fmt.Sprintf("%s <%s>", name, email)
}

func resource(kind, name, id string) string {
	switch {
	case name != "":
		return kind + " " + name
	case id != "":
		return kind + " " + id
	}
	return kind
}
