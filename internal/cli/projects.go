package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskwire/taskwire/internal/api"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Manage projects",
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all projects",
	RunE:  runProjectsList,
}

var projectsGetCmd = &cobra.Command{
	Use:   "get <project-id>",
	Short: "Show one project",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectsGet,
}

var projectsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectsCreate,
}

var projectsUpdateCmd = &cobra.Command{
	Use:   "update <project-id>",
	Short: "Update a project's name or description",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectsUpdate,
}

var projectsDeleteCmd = &cobra.Command{
	Use:   "delete <project-id>",
	Short: "Delete a project and its tasks",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectsDelete,
}

func init() {
	projectsCmd.AddCommand(projectsListCmd)
	projectsCmd.AddCommand(projectsGetCmd)
	projectsCmd.AddCommand(projectsCreateCmd)
	projectsCmd.AddCommand(projectsUpdateCmd)
	projectsCmd.AddCommand(projectsDeleteCmd)

	projectsCreateCmd.Flags().String("description", "", "Project description")
	projectsUpdateCmd.Flags().String("name", "", "New name")
	projectsUpdateCmd.Flags().String("description", "", "New description")
}

func runProjectsList(cmd *cobra.Command, args []string) error {
	client, err := apiClient()
	if err != nil {
		return err
	}
	projects, meta, err := client.ListProjects(cmd.Context())
	if err != nil {
		return err
	}
	noteStale(meta)
	return render(projects)
}

func runProjectsGet(cmd *cobra.Command, args []string) error {
	client, err := apiClient()
	if err != nil {
		return err
	}
	project, meta, err := client.GetProject(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	noteStale(meta)
	return render(project)
}

func runProjectsCreate(cmd *cobra.Command, args []string) error {
	client, err := apiClient()
	if err != nil {
		return err
	}
	description, _ := cmd.Flags().GetString("description")
	project, err := client.CreateProject(cmd.Context(), api.CreateProjectInput{
		Name:        args[0],
		Description: description,
	})
	if err != nil {
		return err
	}
	return render(project)
}

func runProjectsUpdate(cmd *cobra.Command, args []string) error {
	client, err := apiClient()
	if err != nil {
		return err
	}
	var input api.UpdateProjectInput
	if cmd.Flags().Changed("name") {
		name, _ := cmd.Flags().GetString("name")
		input.Name = &name
	}
	if cmd.Flags().Changed("description") {
		description, _ := cmd.Flags().GetString("description")
		input.Description = &description
	}
	project, err := client.UpdateProject(cmd.Context(), args[0], input)
	if err != nil {
		return err
	}
	return render(project)
}

func runProjectsDelete(cmd *cobra.Command, args []string) error {
	client, err := apiClient()
	if err != nil {
		return err
	}
	if err := client.DeleteProject(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted project %s\n", args[0])
	return nil
}
