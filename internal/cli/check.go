package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/ordinal/internal/store"
)

// ViolationView is the output form of a density violation.
type ViolationView struct {
	Collection string  `json:"collection"`
	Group      string  `json:"group"`
	Start      int64   `json:"start"`
	Positions  []int64 `json:"positions"`
}

// CheckResult holds the outcome of a density check.
type CheckResult struct {
	Dense       bool            `json:"dense"`
	Collections []string        `json:"collections"`
	Violations  []ViolationView `json:"violations,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [collection]",
		Short: "Verify that every group is densely numbered",
		Long: `Verify that the positions of every group form the sequence
start, start+1, ..., start+n-1 with no gaps or duplicates.

Exit codes:
  0 - All groups are dense
  1 - One or more groups violate density
  2 - Command error (unknown collection, database error, etc.)`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			collection := ""
			if len(args) == 1 {
				collection = args[0]
			}
			return runCheck(rootOpts, collection, cmd)
		},
	}

	return cmd
}

func runCheck(opts *RootOptions, collection string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := newFormatter(opts, cmd)

	sess, err := openSession(ctx, opts, cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	result := CheckResult{Collections: []string{}}
	var violations []store.Violation
	if collection != "" {
		coll, err := sess.collection(formatter, collection)
		if err != nil {
			return err
		}
		result.Collections = append(result.Collections, collection)
		if violations, err = coll.Check(ctx); err != nil {
			return outputRecordError(formatter, recordErrorCode(err), err)
		}
	} else {
		for _, spec := range sess.store.Collections() {
			result.Collections = append(result.Collections, spec.Name)
		}
		if violations, err = sess.store.Check(ctx); err != nil {
			return outputRecordError(formatter, recordErrorCode(err), err)
		}
	}

	result.Dense = len(violations) == 0
	for _, v := range violations {
		result.Violations = append(result.Violations, ViolationView{
			Collection: v.Collection,
			Group:      v.Group.String(),
			Start:      v.Start,
			Positions:  v.Positions,
		})
	}

	if formatter.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		w := formatter.Writer
		for _, v := range violations {
			fmt.Fprintf(w, "✗ %s\n", v.String())
		}
		if result.Dense {
			fmt.Fprintf(w, "✓ %d collection(s) dense\n", len(result.Collections))
		}
	}

	if !result.Dense {
		return NewExitError(ExitFailure, fmt.Sprintf("%d group(s) not dense", len(violations)))
	}
	return nil
}
