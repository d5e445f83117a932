package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/ordinal/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name    string   `json:"name"`
	Pass    bool     `json:"pass"`
	Steps   int      `json:"steps"`
	Records int      `json:"records"`
	Groups  int      `json:"groups"`
	Dense   bool     `json:"dense"`
	Golden  string   `json:"golden,omitempty"` // "match", "updated" or "mismatch"
	Errors  []string `json:"errors,omitempty"`

	trace []harness.TraceEvent
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <specs-dir> <scenarios-dir>",
		Short: "Run positioning scenarios",
		Long: `Run YAML positioning scenarios using the harness framework.

Each scenario runs against a fresh in-memory database. Spec paths in a
scenario are resolved against <specs-dir>. Step expectations and final
order assertions are checked, and when a golden file exists next to the
scenario (golden/<name>.golden) every step must store the same position
and every group must end in the same order as recorded there.

With --verbose the position trace of each scenario is printed.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  ordinal test ./specs ./scenarios
  ordinal test ./specs ./scenarios --filter "board-*"
  ordinal test ./specs ./scenarios --update
  ordinal test ./specs ./scenarios --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, specsDir, scenariosDir string, cmd *cobra.Command) error {
	for _, dir := range []struct{ kind, path string }{{"specs", specsDir}, {"scenarios", scenariosDir}} {
		if _, err := os.Stat(dir.path); os.IsNotExist(err) {
			return NewExitError(ExitCommandError, fmt.Sprintf("%s directory not found: %s", dir.kind, dir.path))
		}
	}

	scenarioFiles, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return fmt.Errorf("failed to find scenarios: %w", err)
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(scenarioFiles)),
		Total:     len(scenarioFiles),
	}
	if len(scenarioFiles) == 0 {
		if opts.Format == "json" {
			return outputTestJSON(cmd, result)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	for _, scenarioFile := range scenarioFiles {
		res := runScenario(scenarioFile, specsDir, opts, cmd)
		if opts.Format != "json" {
			writeScenarioText(cmd.OutOrStdout(), res, opts.Verbose)
		}
		result.Scenarios = append(result.Scenarios, res)
		if res.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		return outputTestJSON(cmd, result)
	}
	return outputTestText(cmd, result)
}

// findScenarioFiles finds all YAML scenario files in a directory.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// runScenario executes one scenario file, then checks its snapshot against
// the golden file (or rewrites it with --update).
func runScenario(scenarioFile string, specsDir string, opts *TestOptions, cmd *cobra.Command) ScenarioResult {
	res := ScenarioResult{Name: filepath.Base(scenarioFile)}

	scenario, err := harness.LoadScenarioWithBasePath(scenarioFile, specsDir)
	if err != nil {
		res.Errors = []string{fmt.Sprintf("load error: %v", err)}
		return res
	}
	res.Name = scenario.Name

	result, err := harness.Run(scenario, harness.WithLogger(opts.logger(cmd)))
	if err != nil {
		res.Errors = []string{fmt.Sprintf("execution error: %v", err)}
		return res
	}

	snapshot := harness.NewSnapshot(scenario.Name, result)
	res.trace = result.Trace
	res.Steps = len(result.Trace)
	res.Records = snapshot.Records()
	res.Groups = len(snapshot.Groups())
	res.Dense = len(snapshot.Gaps()) == 0
	res.Errors = append(res.Errors, result.Errors...)

	goldenPath := goldenFilePath(scenarioFile)
	switch {
	case opts.Update:
		if err := updateGoldenFile(scenario, result, goldenPath); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("golden update error: %v", err))
			return res
		}
		res.Golden = "updated"
	case fileExists(goldenPath):
		diffs, err := compareWithGolden(scenario, result, goldenPath)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("golden comparison error: %v", err))
			return res
		}
		if diffs != nil {
			res.Golden = "mismatch"
			res.Errors = append(res.Errors, diffs...)
		} else {
			res.Golden = "match"
		}
	}

	res.Pass = len(res.Errors) == 0
	return res
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

// updateGoldenFile writes the current snapshot as the golden file.
func updateGoldenFile(scenario *harness.Scenario, result *harness.Result, goldenPath string) error {
	if err := os.MkdirAll(filepath.Dir(goldenPath), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}

	data, err := harness.SnapshotJSON(scenario.Name, result)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := os.WriteFile(goldenPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// compareWithGolden returns nil when the snapshot matches the golden file
// byte for byte, otherwise the step and final-order differences.
func compareWithGolden(scenario *harness.Scenario, result *harness.Result, goldenPath string) ([]string, error) {
	goldenData, err := os.ReadFile(goldenPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read golden file: %w", err)
	}

	currentData, err := harness.SnapshotJSON(scenario.Name, result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal current snapshot: %w", err)
	}
	if bytes.Equal(goldenData, currentData) {
		return nil, nil
	}

	diffs := []string{"snapshot does not match golden file (run with --update to regenerate)"}
	golden, err := harness.ParseSnapshot(goldenData)
	if err != nil {
		return append(diffs, err.Error()), nil
	}
	return append(diffs, harness.DiffSnapshots(golden, harness.NewSnapshot(scenario.Name, result))...), nil
}

// writeScenarioText prints one scenario line, its failures and, when
// verbose, its position trace.
func writeScenarioText(w io.Writer, res ScenarioResult, verbose bool) {
	mark := "✓"
	if !res.Pass {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %s", mark, res.Name)
	if res.Steps > 0 {
		fmt.Fprintf(w, " (%d steps, %d records in %d group(s)", res.Steps, res.Records, res.Groups)
		if res.Golden != "" {
			fmt.Fprintf(w, ", golden %s", res.Golden)
		}
		fmt.Fprint(w, ")")
	}
	fmt.Fprintln(w)

	if verbose {
		for _, event := range res.trace {
			fmt.Fprintf(w, "  %s\n", event)
		}
	}
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(cmd *cobra.Command, result TestResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_TEST_FAILED",
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// outputTestText outputs the test summary as text.
func outputTestText(cmd *cobra.Command, result TestResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
