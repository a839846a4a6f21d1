package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/RepairWorkshop/internal/workshop"
)

var toolsJSON bool

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools and their unlock status",
	RunE:  runTools,
}

func init() {
	toolsCmd.Flags().BoolVar(&toolsJSON, "json", false, "Print JSON instead of a table")
}

func runTools(cmd *cobra.Command, args []string) error {
	st, err := openState(context.Background())
	if err != nil {
		return err
	}
	defer st.Close()

	tools := st.unlocks.Tools()
	if toolsJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(tools)
	}
	printTools(cmd.OutOrStdout(), st.cfg.DisplayName(), tools)
	return nil
}

func printTools(w io.Writer, name string, tools []workshop.ToolStatus) {
	fmt.Fprintf(w, "%s\n\n", name)

	repaired := 0
	for _, t := range tools {
		fmt.Fprintf(w, "  %-12s  %-11s  %-12s  %d/%d broken\n", t.ID, t.Status, t.Name, t.Broken, t.Elements)
		if t.Status == workshop.StatusRepaired {
			repaired++
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Progress: %d/%d tools repaired\n", repaired, len(tools))
}
