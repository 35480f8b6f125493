package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/GiuseppeVizzari/todo-app-phi/internal/config"
	"github.com/GiuseppeVizzari/todo-app-phi/internal/kvstore"
	"github.com/GiuseppeVizzari/todo-app-phi/internal/repository"
	"github.com/GiuseppeVizzari/todo-app-phi/internal/service"
)

var (
	ownerID  string
	dataFile string
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:           "todo",
	Short:         "Local to-do list",
	Long:          "Manage active and archived to-do items stored in a local JSON file, one list per owner.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	defaults := config.Default()
	if cfg, err := config.Load(); err == nil {
		defaults = cfg
	}

	rootCmd.PersistentFlags().StringVarP(&ownerID, "owner", "u", defaultOwner(), "owner whose list to use")
	rootCmd.PersistentFlags().StringVarP(&dataFile, "data", "d", defaults.DataFile, "path to the data file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log store events")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(toggleCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(removeArchivedCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(unarchiveCmd)
}

func defaultOwner() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "local"
}

// app bundles what every command needs.
type app struct {
	svc      service.TodoService
	sessions *service.Sessions
}

func (a *app) Close() {
	a.sessions.Close()
}

// openApp wires the file-backed gateway behind a todo service.
func openApp() (*app, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, fmt.Errorf("owner is required")
	}
	file, err := kvstore.NewFile(dataFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open data file: %w", err)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "todo"})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.ErrorLevel)
	}

	sessions := service.NewSessions(repository.NewKeyValueRepository(file), config.DefaultQueueSize, service.WithLogger(logger))
	return &app{svc: service.NewTodoService(sessions), sessions: sessions}, nil
}

// resolveID expands a unique id prefix from the given list.
func resolveID(todos []service.TodoResponse, prefix string) (string, error) {
	var match string
	for _, todo := range todos {
		if todo.ID == prefix {
			return todo.ID, nil
		}
		if strings.HasPrefix(todo.ID, prefix) {
			if match != "" {
				return "", fmt.Errorf("id prefix %q is ambiguous", prefix)
			}
			match = todo.ID
		}
	}
	if match == "" {
		// let the store report the miss
		return prefix, nil
	}
	return match, nil
}

func withApp(fn func(ctx context.Context, a *app) error) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(context.Background(), a)
}
