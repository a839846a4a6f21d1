package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/RepairWorkshop/internal/progress"
)

var progressJSON bool

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show repair statistics and achievements",
	RunE:  runProgress,
}

func init() {
	progressCmd.Flags().BoolVar(&progressJSON, "json", false, "Print JSON instead of text")
}

func runProgress(cmd *cobra.Command, args []string) error {
	st, err := openState(context.Background())
	if err != nil {
		return err
	}
	defer st.Close()

	p := st.recorder.Progress()
	achievements := st.recorder.Achievements()
	if progressJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Progress     progress.GameProgress  `json:"progress"`
			Achievements []progress.Achievement `json:"achievements"`
		}{p, achievements})
	}
	printProgress(cmd.OutOrStdout(), p, achievements)
	return nil
}

func printProgress(w io.Writer, p progress.GameProgress, achievements []progress.Achievement) {
	fmt.Fprintf(w, "Repairs:         %d (%d perfect)\n", p.TotalRepairs, p.PerfectRepairs)
	fmt.Fprintf(w, "Tools repaired:  %d\n", len(p.ToolsRepaired))
	fmt.Fprintf(w, "Play time:       %s\n", p.TotalPlayTime.Round(time.Second))
	if p.FastestRepair != nil {
		fmt.Fprintf(w, "Fastest repair:  %s\n", p.FastestRepair.Round(100*time.Millisecond))
	}
	if !p.LastPlayed.IsZero() {
		fmt.Fprintf(w, "Last played:     %s\n", p.LastPlayed.Local().Format(time.DateTime))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Achievements")
	for _, a := range achievements {
		mark := " "
		if a.Unlocked {
			mark = "x"
		}
		fmt.Fprintf(w, "  [%s] %-18s %s\n", mark, a.Title, a.Description)
	}
}
