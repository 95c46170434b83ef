package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cognify-labs/cognify/backend/pkg/common"
	"github.com/cognify-labs/cognify/backend/pkg/store"
	"github.com/cognify-labs/cognify/backend/pkg/store/sqlite"
	"github.com/cognify-labs/cognify/backend/pkg/stream"
)

var replayCmd = &cobra.Command{
	Use:   "replay <graph-id>",
	Short: "Print the events of a finished local graph",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		path, err := databasePath()
		if err != nil {
			return err
		}
		s, err := sqlite.Open(ctx, path)
		if err != nil {
			return err
		}
		defer s.Close()

		g, err := s.GetGraph(ctx, args[0])
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("graph %s not found in %s", args[0], path)
		}
		if err != nil {
			return err
		}
		if g.Status != common.StatusComplete {
			return fmt.Errorf("graph %s is %s, only complete graphs can be replayed", g.ID, g.Status)
		}

		return stream.SendSnapshot(newJSONLSink(cmd.OutOrStdout()), g.Snapshot)
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
}
