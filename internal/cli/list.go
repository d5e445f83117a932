package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/ordinal/internal/store"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Group      []string
	Descending bool
	Insertion  bool
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list <collection>",
		Short: "List records in position order",
		Long: `List the records of a collection in ascending position order.

Without --group every group is listed, grouped by their column values.

Examples:
  ordinal list tasks
  ordinal list cards --group list_id=3 --desc
  ordinal list cards --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Group, "group", nil, "group column value as name=value (repeatable)")
	cmd.Flags().BoolVar(&opts.Descending, "desc", false, "descending position order")
	cmd.Flags().BoolVar(&opts.Insertion, "default-order", false, "use the collection's default read order")
	cmd.MarkFlagsMutuallyExclusive("desc", "default-order")

	return cmd
}

func runList(opts *ListOptions, collection string, cmd *cobra.Command) error {
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
	group, err := parseGroup(coll.Spec(), opts.Group)
	if err != nil {
		return outputRecordError(formatter, ErrCodeInvalidArgument, err)
	}

	order := store.OrderAscending
	switch {
	case opts.Descending:
		order = store.OrderDescending
	case opts.Insertion:
		order = store.OrderDefault
	}

	recs, err := coll.List(ctx, group, order)
	if err != nil {
		return outputRecordError(formatter, recordErrorCode(err), err)
	}
	sess.logger.Debug("records listed",
		"collection", collection,
		"group", group.String(),
		"order", order.String(),
		"count", len(recs))

	return outputRecords(formatter, recs)
}
