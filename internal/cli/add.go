package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/ordinal/internal/ir"
)

// AddOptions holds flags for the add command.
type AddOptions struct {
	*RootOptions
	ID       string
	Group    []string
	Position string
	Attrs    []string
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add <collection>",
		Short: "Add a record to a collection",
		Long: `Add a record to a collection.

Without --position the collection's next-position policy places the record.
With --position the record is inserted there and the records at or after it
move one step later. Positions below the collection's start count back from
the end of the group.

Examples:
  ordinal add tasks --attr title="Write docs"
  ordinal add cards --group list_id=3 --position 1
  ordinal add cards --group list_id=3 --position=-1`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ID, "id", "", "record ID (generated if empty)")
	cmd.Flags().StringArrayVar(&opts.Group, "group", nil, "group column value as name=value (repeatable)")
	cmd.Flags().StringVar(&opts.Position, "position", "", "raw position")
	cmd.Flags().StringArrayVar(&opts.Attrs, "attr", nil, "attribute as name=value (repeatable)")

	return cmd
}

func runAdd(opts *AddOptions, collection string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := newFormatter(opts.RootOptions, cmd)

	sess, err := openSession(ctx, opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	coll, err := sess.collection(formatter, collection)
	if err != nil {
		return err
	}

	rec := ir.Record{ID: opts.ID}
	if rec.Group, err = parseGroup(coll.Spec(), opts.Group); err != nil {
		return outputRecordError(formatter, ErrCodeInvalidArgument, err)
	}
	if rec.Attrs, err = parseAttrs(opts.Attrs); err != nil {
		return outputRecordError(formatter, ErrCodeInvalidArgument, err)
	}
	if opts.Position != "" {
		pos, err := parsePosition(opts.Position)
		if err != nil {
			return outputRecordError(formatter, ErrCodeInvalidArgument, err)
		}
		rec.Position = &pos
	}

	created, err := coll.Create(ctx, rec)
	if err != nil {
		return outputRecordError(formatter, recordErrorCode(err), err)
	}
	sess.logger.Info("record added",
		"collection", collection,
		"id", created.ID,
		"group", created.Group.String(),
		"position", *created.Position)

	view := newRecordView(created)
	if formatter.Format == "json" {
		return formatter.Success(view)
	}
	return formatter.Success(view.String())
}
