package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/ordinal/internal/ir"
)

// NewSwapCommand creates the swap command.
func NewSwapCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swap <collection> <id-a> <id-b>",
		Short: "Exchange the positions of two records in one group",
		Long: `Exchange the positions of two records of the same group.

No other record is renumbered. Records in different groups cannot be swapped.`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSwap(rootOpts, args[0], args[1], args[2], cmd)
		},
	}

	return cmd
}

func runSwap(opts *RootOptions, collection, idA, idB string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := newFormatter(opts, cmd)

	sess, err := openSession(ctx, opts, cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	coll, err := sess.collection(formatter, collection)
	if err != nil {
		return err
	}
	if err := coll.Swap(ctx, idA, idB); err != nil {
		return outputRecordError(formatter, recordErrorCode(err), err)
	}

	var recs []ir.Record
	for _, id := range []string{idA, idB} {
		rec, err := coll.Get(ctx, id)
		if err != nil {
			return outputRecordError(formatter, recordErrorCode(err), err)
		}
		recs = append(recs, rec)
	}
	sess.logger.Info("records swapped",
		"collection", collection,
		"a", idA, "a_position", *recs[0].Position,
		"b", idB, "b_position", *recs[1].Position)

	if formatter.Format == "json" {
		return outputRecords(formatter, recs)
	}
	return formatter.Success(fmt.Sprintf("swapped %s (now %d) and %s (now %d)",
		idA, *recs[0].Position, idB, *recs[1].Position))
}
