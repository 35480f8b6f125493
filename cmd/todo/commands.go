package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/GiuseppeVizzari/todo-app-phi/internal/service"
)

var (
	outputFormat string
	dueDate      string
	editText     string
	editDue      string
	editDone     bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show active and archived items",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			list, err := a.svc.ListTodos(ctx, ownerID)
			if err != nil {
				return err
			}
			return printList(cmd.OutOrStdout(), list, outputFormat)
		})
	},
}

var addCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Add an item to the active list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			todo, err := a.svc.CreateTodo(ctx, ownerID, service.CreateTodoRequest{Text: args[0], DueDate: dueDate})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", shortID(todo.ID))
			return nil
		})
	},
}

var toggleCmd = &cobra.Command{
	Use:   "toggle <id>",
	Short: "Mark an item done (archiving it) or not done (restoring it)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			list, err := a.svc.ListTodos(ctx, ownerID)
			if err != nil {
				return err
			}
			id, err := resolveID(append(list.Active, list.Archived...), args[0])
			if err != nil {
				return err
			}
			todo, err := a.svc.ToggleTodo(ctx, ownerID, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", checkbox(todo.Completed), todo.Text)
			return nil
		})
	},
}

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit an active item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var req service.UpdateTodoRequest
		if cmd.Flags().Changed("text") {
			req.Text = &editText
		}
		if cmd.Flags().Changed("due") {
			req.DueDate = &editDue
		}
		if cmd.Flags().Changed("completed") {
			req.Completed = &editDone
		}
		return withApp(func(ctx context.Context, a *app) error {
			list, err := a.svc.ListTodos(ctx, ownerID)
			if err != nil {
				return err
			}
			id, err := resolveID(list.Active, args[0])
			if err != nil {
				return err
			}
			todo, err := a.svc.UpdateTodo(ctx, ownerID, id, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", shortID(todo.ID))
			return nil
		})
	},
}

var removeCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete an active item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			list, err := a.svc.ListTodos(ctx, ownerID)
			if err != nil {
				return err
			}
			id, err := resolveID(list.Active, args[0])
			if err != nil {
				return err
			}
			return a.svc.DeleteTodo(ctx, ownerID, id)
		})
	},
}

var removeArchivedCmd = &cobra.Command{
	Use:   "rm-archived <id>",
	Short: "Delete an archived item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			list, err := a.svc.ListTodos(ctx, ownerID)
			if err != nil {
				return err
			}
			id, err := resolveID(list.Archived, args[0])
			if err != nil {
				return err
			}
			return a.svc.DeleteArchivedTodo(ctx, ownerID, id)
		})
	},
}

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Move completed active items to the archive",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			archived, err := a.svc.ArchiveCompleted(ctx, ownerID)
			fmt.Fprintf(cmd.OutOrStdout(), "Archived %d item(s)\n", len(archived))
			return err
		})
	},
}

var unarchiveCmd = &cobra.Command{
	Use:   "unarchive <id>",
	Short: "Restore an archived item to the active list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			list, err := a.svc.ListTodos(ctx, ownerID)
			if err != nil {
				return err
			}
			id, err := resolveID(list.Archived, args[0])
			if err != nil {
				return err
			}
			todo, err := a.svc.UnarchiveTodo(ctx, ownerID, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %s\n", todo.Text)
			return nil
		})
	},
}

func init() {
	listCmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "output format: text, json or yaml")
	addCmd.Flags().StringVar(&dueDate, "due", "", "due date, stored as given")
	editCmd.Flags().StringVar(&editText, "text", "", "new text")
	editCmd.Flags().StringVar(&editDue, "due", "", "new due date")
	editCmd.Flags().BoolVar(&editDone, "completed", false, "mark completed without archiving")
}

func printList(w io.Writer, list *service.ListResponse, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(list)
	case "text", "":
		printSection(w, "Active", list.Active)
		printSection(w, "Archived", list.Archived)
		return nil
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func printSection(w io.Writer, title string, todos []service.TodoResponse) {
	fmt.Fprintf(w, "%s (%d)\n", title, len(todos))
	for _, todo := range todos {
		line := fmt.Sprintf("  %s %s  %s", checkbox(todo.Completed), shortID(todo.ID), todo.Text)
		if todo.DueDate != "" {
			line += fmt.Sprintf("  (due %s)", todo.DueDate)
		}
		fmt.Fprintln(w, line)
	}
}

func checkbox(done bool) string {
	if done {
		return "[x]"
	}
	return "[ ]"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
