package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskwire/taskwire/internal/api"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Manage tasks within a project",
}

var tasksListCmd = &cobra.Command{
	Use:   "list <project-id>",
	Short: "List a project's tasks",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksList,
}

var tasksGetCmd = &cobra.Command{
	Use:   "get <task-id>",
	Short: "Show one task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksGet,
}

var tasksCreateCmd = &cobra.Command{
	Use:   "create <project-id> <title>",
	Short: "Create a task",
	Args:  cobra.ExactArgs(2),
	RunE:  runTasksCreate,
}

var tasksUpdateCmd = &cobra.Command{
	Use:   "update <project-id> <task-id>",
	Short: "Update a task",
	Args:  cobra.ExactArgs(2),
	RunE:  runTasksUpdate,
}

var tasksCompleteCmd = &cobra.Command{
	Use:   "complete <project-id> <task-id>",
	Short: "Mark a task done",
	Args:  cobra.ExactArgs(2),
	RunE:  runTasksComplete,
}

var tasksDeleteCmd = &cobra.Command{
	Use:   "delete <project-id> <task-id>",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(2),
	RunE:  runTasksDelete,
}

func init() {
	tasksCmd.AddCommand(tasksListCmd)
	tasksCmd.AddCommand(tasksGetCmd)
	tasksCmd.AddCommand(tasksCreateCmd)
	tasksCmd.AddCommand(tasksUpdateCmd)
	tasksCmd.AddCommand(tasksCompleteCmd)
	tasksCmd.AddCommand(tasksDeleteCmd)

	tasksCreateCmd.Flags().String("notes", "", "Task notes")
	tasksCreateCmd.Flags().Int("priority", 0, "Priority (higher is more urgent)")
	tasksCreateCmd.Flags().String("due", "", "Due date (YYYY-MM-DD)")

	tasksUpdateCmd.Flags().String("title", "", "New title")
	tasksUpdateCmd.Flags().String("notes", "", "New notes")
	tasksUpdateCmd.Flags().String("status", "", "New status (open or done)")
	tasksUpdateCmd.Flags().Int("priority", 0, "New priority")
	tasksUpdateCmd.Flags().String("due", "", "New due date (YYYY-MM-DD)")
}

func runTasksList(cmd *cobra.Command, args []string) error {
	client, err := apiClient()
	if err != nil {
		return err
	}
	tasks, meta, err := client.ListTasks(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	noteStale(meta)
	return render(tasks)
}

func runTasksGet(cmd *cobra.Command, args []string) error {
	client, err := apiClient()
	if err != nil {
		return err
	}
	task, err := client.GetTask(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return render(task)
}

func runTasksCreate(cmd *cobra.Command, args []string) error {
	client, err := apiClient()
	if err != nil {
		return err
	}
	notes, _ := cmd.Flags().GetString("notes")
	priority, _ := cmd.Flags().GetInt("priority")
	due, _ := cmd.Flags().GetString("due")
	task, err := client.CreateTask(cmd.Context(), args[0], api.CreateTaskInput{
		Title:    args[1],
		Notes:    notes,
		Priority: priority,
		DueDate:  due,
	})
	if err != nil {
		return err
	}
	return render(task)
}

func runTasksUpdate(cmd *cobra.Command, args []string) error {
	client, err := apiClient()
	if err != nil {
		return err
	}
	var input api.UpdateTaskInput
	if cmd.Flags().Changed("title") {
		v, _ := cmd.Flags().GetString("title")
		input.Title = &v
	}
	if cmd.Flags().Changed("notes") {
		v, _ := cmd.Flags().GetString("notes")
		input.Notes = &v
	}
	if cmd.Flags().Changed("status") {
		v, _ := cmd.Flags().GetString("status")
		input.Status = &v
	}
	if cmd.Flags().Changed("priority") {
		v, _ := cmd.Flags().GetInt("priority")
		input.Priority = &v
	}
	if cmd.Flags().Changed("due") {
		v, _ := cmd.Flags().GetString("due")
		input.DueDate = &v
	}
	task, err := client.UpdateTask(cmd.Context(), args[0], args[1], input)
	if err != nil {
		return err
	}
	return render(task)
}

func runTasksComplete(cmd *cobra.Command, args []string) error {
	client, err := apiClient()
	if err != nil {
		return err
	}
	task, err := client.CompleteTask(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	return render(task)
}

func runTasksDelete(cmd *cobra.Command, args []string) error {
	client, err := apiClient()
	if err != nil {
		return err
	}
	if err := client.DeleteTask(cmd.Context(), args[0], args[1]); err != nil {
		return err
	}
	fmt.Printf("Deleted task %s\n", args[1])
	return nil
}
