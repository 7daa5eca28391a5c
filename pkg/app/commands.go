package app

// pkg/app/commands.go — cobra subcommands over an assembled Application.
// The consumer's main() builds the Application and calls Run(); these
// commands do the rest.

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/setulabs/setu/config"
	"github.com/setulabs/setu/pkg/auth"
	"github.com/setulabs/setu/pkg/collection"
	"github.com/setulabs/setu/pkg/container"
	"github.com/setulabs/setu/pkg/database"
	"github.com/setulabs/setu/pkg/migration"
	"github.com/setulabs/setu/pkg/orm"
	"github.com/setulabs/setu/pkg/queue"
)

// Execute runs the CLI for an assembled application. With no arguments
// the server starts; subcommands cover introspection, migrations, and
// token minting.
func Execute(a *Application) error {
	return NewRootCmd(a).Execute()
}

// NewRootCmd builds the command tree over a.
func NewRootCmd(a *Application) *cobra.Command {
	root := &cobra.Command{
		Use:   config.AppName(),
		Short: "setu — endpoint registry and dispatcher",
		Long: "setu boots a module-built endpoint registry behind an HTTP bridge.\n" +
			"Run with no arguments to serve.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return startServer(a)
		},
	}

	root.AddCommand(
		newServeCmd(a),
		newRoutesCmd(a),
		newModulesCmd(a),
		newServicesCmd(a),
		newScheduleCmd(a),
		newTokenCmd(),
		newDBCmd(a),
		newQueueCmd(a),
	)
	return root
}

// setu serve — boot and listen.
func newServeCmd(a *Application) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return startServer(a)
		},
	}
}

// setu routes — print the sorted endpoint listing.
func newRoutesCmd(a *Application) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List registered endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.boot(); err != nil {
				return err
			}

			endpoints := a.rt.Endpoints()
			if len(endpoints) == 0 {
				fmt.Println("No endpoints registered.")
				return nil
			}

			rows := collection.Map(endpoints, func(ep string) [2]string {
				idx := strings.LastIndex(ep, ":")
				return [2]string{ep[idx+1:], ep[:idx]}
			})

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "METHOD\tPATH")
			fmt.Fprintln(w, "------\t----")
			for _, row := range rows {
				fmt.Fprintf(w, "%s\t%s\n", row[0], row[1])
			}
			return w.Flush()
		},
	}
}

// setu modules — show factory counts and the instantiable modules.
func newModulesCmd(a *Application) *cobra.Command {
	return &cobra.Command{
		Use:   "modules",
		Short: "Show registered modules",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.boot(); err != nil {
				return err
			}

			fmt.Printf("Factories registered: %d\n", a.rt.ModuleCount())
			fmt.Printf("Modules active:       %d\n", a.rt.ActiveModules())

			modules := a.rt.CreateAllModules()
			if len(modules) == 0 {
				return nil
			}
			fmt.Println("Instantiable modules:")
			for _, m := range modules {
				fmt.Printf("  %T\n", m)
			}
			return nil
		},
	}
}

// setu services — print the container summary.
func newServicesCmd(a *Application) *cobra.Command {
	return &cobra.Command{
		Use:   "services",
		Short: "Show registered services",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.boot(); err != nil {
				return err
			}

			fmt.Println(a.c.Info())
			for _, name := range a.c.TypeNames() {
				fmt.Printf("  %s\n", name)
			}
			return nil
		},
	}
}

// setu schedule — show the recurring tasks without starting the loop.
func newScheduleCmd(a *Application) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "List scheduled tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.boot(); err != nil {
				return err
			}

			entries := a.sched.List()
			if len(entries) == 0 {
				fmt.Println("No tasks scheduled.")
				return nil
			}
			for _, e := range entries {
				fmt.Println(e)
			}
			return nil
		},
	}
}

// setu token — mint a token for the /admin group.
func newTokenCmd() *cobra.Command {
	var subject, role string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a signed token (admin role reaches /admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Load(); err != nil {
				return err
			}

			tok, err := auth.GenerateToken(subject, role)
			if err != nil {
				return err
			}
			fmt.Println(tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "cli", "token subject")
	cmd.Flags().StringVar(&role, "role", "admin", "token role claim")
	return cmd
}

// setu db — versioned migrations and seeding.
func newDBCmd(a *Application) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Run database migrations and seeders",
	}

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := a.migrationRunner()
			if err != nil {
				return err
			}
			applied, err := runner.Run()
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Println("Nothing to migrate.")
				return nil
			}
			for _, name := range applied {
				fmt.Println("Migrated:", name)
			}
			return nil
		},
	}

	rollback := &cobra.Command{
		Use:   "rollback",
		Short: "Roll back the most recent migration batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := a.migrationRunner()
			if err != nil {
				return err
			}
			rolled, err := runner.Rollback()
			if err != nil {
				return err
			}
			if len(rolled) == 0 {
				fmt.Println("Nothing to roll back.")
				return nil
			}
			for _, name := range rolled {
				fmt.Println("Rolled back:", name)
			}
			return nil
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show which migrations have run",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := a.migrationRunner()
			if err != nil {
				return err
			}
			statuses, err := runner.Status()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "MIGRATION\tSTATUS\tBATCH")
			for _, st := range statuses {
				state, batch := "pending", "-"
				if st.Ran {
					state = "ran"
					batch = strconv.Itoa(st.Batch)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", st.Name, state, batch)
			}
			return w.Flush()
		},
	}

	seed := &cobra.Command{
		Use:   "seed",
		Short: "Run the registered seeders",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.database()
			if err != nil {
				return err
			}
			if len(a.seeders) == 0 {
				fmt.Println("No seeders registered.")
				return nil
			}
			if err := database.Seed(db, a.seeders...); err != nil {
				return err
			}
			fmt.Printf("Seeded (%d seeders).\n", len(a.seeders))
			return nil
		},
	}

	dbCmd.AddCommand(migrate, rollback, status, seed)
	return dbCmd
}

// setu queue failed — inspect jobs that exhausted their retries.
func newQueueCmd(a *Application) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the job queue",
	}

	var limit int
	failed := &cobra.Command{
		Use:   "failed",
		Short: "List persisted failed jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.database()
			if err != nil {
				return err
			}

			var records []queue.FailedJobRecord
			if err := db.Order("failed_at DESC").Scopes(orm.Page(limit, 0)).Find(&records).Error; err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("No failed jobs.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tJOB\tATTEMPTS\tFAILED AT\tERROR")
			for _, rec := range records {
				fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n",
					rec.ID, rec.Job, rec.Attempts,
					rec.FailedAt.Format(time.RFC3339), rec.Error)
			}
			return w.Flush()
		},
	}
	failed.Flags().IntVar(&limit, "limit", 20, "maximum rows to show")

	queueCmd.AddCommand(failed)
	return queueCmd
}

// database boots the application and resolves the DB handle, erroring
// when none is configured.
func (a *Application) database() (*gorm.DB, error) {
	if err := a.boot(); err != nil {
		return nil, err
	}
	db, err := container.Resolve[*gorm.DB](a.c)
	if err != nil {
		return nil, fmt.Errorf("database not configured (set DB_DRIVER / DATABASE_DSN): %w", err)
	}
	return db, nil
}

// migrationRunner builds the runner over the migrations the app
// registered.
func (a *Application) migrationRunner() (*migration.Runner, error) {
	db, err := a.database()
	if err != nil {
		return nil, err
	}
	return migration.New(db, a.migrations...), nil
}
