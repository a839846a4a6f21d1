package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/RepairWorkshop/internal/events"
)

var resetConfirmed bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Erase progress and relock every tool but the first",
	RunE:  runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&resetConfirmed, "yes", false, "Confirm the reset")
}

func runReset(cmd *cobra.Command, args []string) error {
	if !resetConfirmed {
		return errNotConfirmed
	}

	ctx := context.Background()
	st, err := openState(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	events.SetSink(st.backend)
	defer events.SetSink(nil)

	if err := st.recorder.Reset(ctx); err != nil {
		return err
	}
	if err := st.unlocks.Reset(ctx); err != nil {
		return err
	}
	events.Emit("info", "operator.reset", "", map[string]interface{}{
		"source":      "cli",
		"workshop_id": st.cfg.Workshop.ID,
	})

	fmt.Fprintf(cmd.OutOrStdout(), "Reset %s\n", st.cfg.DisplayName())
	return nil
}
