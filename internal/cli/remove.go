package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRemoveCommand creates the remove command.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "remove <collection> <id>",
		Aliases:       []string{"rm"},
		Short:         "Remove a record and close the gap it leaves",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemove(rootOpts, args[0], args[1], cmd)
		},
	}

	return cmd
}

func runRemove(opts *RootOptions, collection, id string, cmd *cobra.Command) error {
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
	if err := coll.Delete(ctx, id); err != nil {
		return outputRecordError(formatter, recordErrorCode(err), err)
	}
	sess.logger.Info("record removed", "collection", collection, "id", id)

	if formatter.Format == "json" {
		return formatter.Success(map[string]string{"collection": collection, "removed": id})
	}
	return formatter.Success(fmt.Sprintf("removed %s from %s", id, collection))
}
