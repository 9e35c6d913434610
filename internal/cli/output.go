package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/taskwire/taskwire/internal/api"
	"github.com/taskwire/taskwire/internal/util/apierr"
)

// render writes v to stdout in the configured format. Tables go through the
// per-type table writers; json and yaml marshal v as-is.
func render(v any) error {
	switch cfg.Output {
	case "", "table":
		return renderTable(os.Stdout, v)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		_, err = os.Stdout.Write(data)
		return err
	default:
		return apierr.NewValidation("output", "unknown format %q (want table, json or yaml)", cfg.Output)
	}
}

func renderTable(w io.Writer, v any) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	switch val := v.(type) {
	case []api.Project:
		fmt.Fprintln(tw, "ID\tNAME\tTASKS\tDESCRIPTION")
		for _, p := range val {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", p.ID, p.Name, p.TaskCount, p.Description)
		}
	case *api.Project:
		fmt.Fprintf(tw, "ID:\t%s\n", val.ID)
		fmt.Fprintf(tw, "Name:\t%s\n", val.Name)
		if val.Description != "" {
			fmt.Fprintf(tw, "Description:\t%s\n", val.Description)
		}
		if val.CreatedAt != "" {
			fmt.Fprintf(tw, "Created:\t%s\n", val.CreatedAt)
		}
	case []api.Task:
		fmt.Fprintln(tw, "ID\tSTATUS\tPRI\tDUE\tTITLE")
		for _, task := range val {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", task.ID, task.Status, task.Priority, task.DueDate, task.Title)
		}
	case *api.Task:
		fmt.Fprintf(tw, "ID:\t%s\n", val.ID)
		fmt.Fprintf(tw, "Project:\t%s\n", val.ProjectID)
		fmt.Fprintf(tw, "Title:\t%s\n", val.Title)
		fmt.Fprintf(tw, "Status:\t%s\n", val.Status)
		if val.Notes != "" {
			fmt.Fprintf(tw, "Notes:\t%s\n", val.Notes)
		}
		if val.DueDate != "" {
			fmt.Fprintf(tw, "Due:\t%s\n", val.DueDate)
		}
	case []api.SearchHit:
		fmt.Fprintln(tw, "KIND\tID\tPROJECT\tSTATUS\tTITLE")
		for _, h := range val {
			title := h.Title
			if h.Stale {
				title += " (stale)"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", h.Kind, h.ID, h.ProjectID, h.Status, title)
		}
	default:
		// No table shape for this value; fall back to json.
		tw.Flush()
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return tw.Flush()
}

// noteStale tells the user on stderr when a read was served from an expired
// entry, without polluting stdout.
func noteStale(meta api.Meta) {
	if !meta.Stale {
		return
	}
	age := "unknown age"
	if meta.CachedAt > 0 {
		age = time.Since(time.UnixMilli(meta.CachedAt)).Round(time.Second).String() + " old"
	}
	fmt.Fprintf(os.Stderr, "warning: API unreachable, showing cached data (%s)\n", age)
}
