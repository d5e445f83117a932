package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/ordinal/internal/store"
)

// MoveOptions holds flags for the move command.
type MoveOptions struct {
	*RootOptions
	Group []string
}

// NewMoveCommand creates the move command.
func NewMoveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MoveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "move <collection> <id> <position>",
		Short: "Move a record to a new position",
		Long: `Move a record to a new position, renumbering the records between
its old and new slots.

With --group the record also changes group: the gap it leaves in the old
group is closed and a slot is opened in the new one.

Use -- before a negative position so it is not read as a flag.

Examples:
  ordinal move tasks rec-0003 1
  ordinal move cards rec-0007 -- -1
  ordinal move cards rec-0007 2 --group list_id=4`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMove(opts, args[0], args[1], args[2], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Group, "group", nil, "new group column value as name=value (repeatable)")

	return cmd
}

func runMove(opts *MoveOptions, collection, id, posArg string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := newFormatter(opts.RootOptions, cmd)

	pos, err := parsePosition(posArg)
	if err != nil {
		return outputRecordError(formatter, ErrCodeInvalidArgument, err)
	}

	sess, err := openSession(ctx, opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	coll, err := sess.collection(formatter, collection)
	if err != nil {
		return err
	}
	group, err := parseGroup(coll.Spec(), opts.Group)
	if err != nil {
		return outputRecordError(formatter, ErrCodeInvalidArgument, err)
	}

	moved, err := coll.Update(ctx, id, store.Change{Position: &pos, Group: group})
	if err != nil {
		return outputRecordError(formatter, recordErrorCode(err), err)
	}
	sess.logger.Info("record moved",
		"collection", collection,
		"id", id,
		"group", moved.Group.String(),
		"position", *moved.Position)

	view := newRecordView(moved)
	if formatter.Format == "json" {
		return formatter.Success(view)
	}
	return formatter.Success(view.String())
}
