package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskwire/taskwire/internal/api"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search cached projects and tasks offline",
	Long: `Search scans the local cache only and never contacts the API. It sees
whatever earlier list commands cached; run 'taskwire projects list' or
'taskwire tasks list' first to warm it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().String("filter", "", `Record filter expression, e.g. 'status=="open"' or 'priority>2'`)
	searchCmd.Flags().String("project", "", "Restrict task matches to one project id")
}

func runSearch(cmd *cobra.Command, args []string) error {
	rc, err := openCache()
	if err != nil {
		return err
	}
	query := ""
	if len(args) == 1 {
		query = args[0]
	}
	filter, _ := cmd.Flags().GetString("filter")
	project, _ := cmd.Flags().GetString("project")

	hits, err := api.Search(rc, api.SearchOptions{
		Query:     query,
		Path:      filter,
		ProjectID: project,
	})
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Fprintln(os.Stderr, "No matches in the local cache.")
		return nil
	}
	return render(hits)
}
