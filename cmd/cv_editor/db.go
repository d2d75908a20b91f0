package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonathan/cv-editor/internal/db"
	"github.com/jonathan/cv-editor/internal/project"
	"github.com/jonathan/cv-editor/internal/record"
	"github.com/spf13/cobra"
)

var (
	dbURL     string
	dbProject string
	dbName    string
	dbLimit   int
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Store projects and compile history in PostgreSQL",
}

var dbPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Save a project file to the database",
	RunE:  runDBPush,
}

var dbPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Write a stored project to a project file",
	RunE:  runDBPull,
}

var dbListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored projects",
	RunE:  runDBList,
}

var dbHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent compile runs",
	RunE:  runDBHistory,
}

var dbDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a stored project and its compile history",
	RunE:  runDBDelete,
}

func init() {
	dbCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "Database URL (default: DATABASE_URL)")

	for _, c := range []*cobra.Command{dbPushCmd, dbPullCmd} {
		c.Flags().StringVarP(&dbProject, "project", "p", "", "Path to the project file (default from config)")
	}
	for _, c := range []*cobra.Command{dbPushCmd, dbPullCmd, dbDeleteCmd} {
		c.Flags().StringVarP(&dbName, "name", "n", "", "Name of the stored project")
		_ = c.MarkFlagRequired("name")
	}
	dbHistoryCmd.Flags().StringVarP(&dbName, "name", "n", "", "Only show runs of this project")
	dbHistoryCmd.Flags().IntVar(&dbLimit, "limit", 20, "Maximum number of runs")

	dbCmd.AddCommand(dbPushCmd, dbPullCmd, dbListCmd, dbHistoryCmd, dbDeleteCmd)
	rootCmd.AddCommand(dbCmd)
}

// connectDB opens and migrates the database named by --db-url or the config,
// with a pool of at most maxConns connections
func connectDB(ctx context.Context, maxConns int32) (*db.DB, error) {
	url := dbURL
	if url == "" {
		url = cfg.DatabaseURL
	}
	if url == "" {
		return nil, errors.New("database URL is required (--db-url or DATABASE_URL)")
	}
	database, err := db.Connect(ctx, url, db.WithMaxConns(maxConns))
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

func runDBPush(cmd *cobra.Command, _ []string) error {
	if err := db.ValidateName(dbName); err != nil {
		return err
	}
	path := projectPath(dbProject)
	store, err := openStore(path)
	if err != nil {
		return err
	}

	database, err := connectDB(cmd.Context(), 1)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.SaveProject(cmd.Context(), dbName, store.Snapshot()); err != nil {
		return err
	}
	printer(cmd).Success("Pushed %s as %q", path, dbName)
	return nil
}

func runDBPull(cmd *cobra.Command, _ []string) error {
	if err := db.ValidateName(dbName); err != nil {
		return err
	}
	database, err := connectDB(cmd.Context(), 1)
	if err != nil {
		return err
	}
	defer database.Close()

	rec, err := database.LoadProject(cmd.Context(), dbName, record.Default())
	if err != nil {
		if errors.Is(err, db.ErrProjectNotFound) {
			return fmt.Errorf("%w: %s", err, dbName)
		}
		return err
	}
	path := projectPath(dbProject)
	if err := project.Save(path, rec); err != nil {
		return err
	}
	printer(cmd).Success("Pulled %q into %s", dbName, path)
	return nil
}

func runDBList(cmd *cobra.Command, _ []string) error {
	database, err := connectDB(cmd.Context(), 1)
	if err != nil {
		return err
	}
	defer database.Close()

	projects, err := database.ListProjects(cmd.Context())
	if err != nil {
		return err
	}
	printer(cmd).PrintProjects(projects)
	return nil
}

func runDBHistory(cmd *cobra.Command, _ []string) error {
	if dbLimit <= 0 {
		return fmt.Errorf("--limit must be positive")
	}
	database, err := connectDB(cmd.Context(), 1)
	if err != nil {
		return err
	}
	defer database.Close()

	runs, err := database.ListCompiles(cmd.Context(), dbName, dbLimit)
	if err != nil {
		return err
	}
	printer(cmd).PrintCompiles(runs)
	return nil
}

func runDBDelete(cmd *cobra.Command, _ []string) error {
	database, err := connectDB(cmd.Context(), 1)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.DeleteProject(cmd.Context(), dbName); err != nil {
		return err
	}
	printer(cmd).Success("Deleted %q", dbName)
	return nil
}
