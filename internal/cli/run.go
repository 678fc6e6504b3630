package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/harun/seqkit/internal/scenario"
	"github.com/spf13/cobra"
)

var runFlags struct {
	work       time.Duration
	operations int
	sequencers int
	jsonOut    bool
}

var runCmd = &cobra.Command{
	Use:   "run <" + strings.Join(scenario.Names, "|") + ">",
	Short: "Run a sequencer scenario and print what it observed",
	Long: `Run one of the built-in scenarios:

  sequential  N operations on one sequencer complete in submission order
  parallel    one operation on each of M sequencers, all running at once
  abandon     the second of three callers gives up before its turn; observes ["#1", "#3"]
  failure     the middle operation fails; only its caller sees the error`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: scenario.Names,
	RunE:      runScenario,
}

func init() {
	runCmd.Flags().DurationVar(&runFlags.work, "work", 0, "duration of each simulated operation (default from config)")
	runCmd.Flags().IntVar(&runFlags.operations, "operations", 0, "operations per sequencer (default from config)")
	runCmd.Flags().IntVar(&runFlags.sequencers, "sequencers", 0, "sequencers in the parallel scenario (default from config)")
	runCmd.Flags().BoolVar(&runFlags.jsonOut, "json", false, "print the result as JSON")
	rootCmd.AddCommand(runCmd)
}

func runScenario(cmd *cobra.Command, args []string) error {
	rt, err := setup(cmd)
	if err != nil {
		return err
	}
	defer rt.shutdown()

	cfg := scenario.Config{
		Work:       rt.cfg.Scenario.Work(),
		Operations: rt.cfg.Scenario.Operations,
		Sequencers: rt.cfg.Scenario.Sequencers,
		Options:    rt.cfg.Sequencer.Options(),
	}
	if cmd.Flags().Changed("work") {
		cfg.Work = runFlags.work
	}
	if cmd.Flags().Changed("operations") {
		cfg.Operations = runFlags.operations
	}
	if cmd.Flags().Changed("sequencers") {
		cfg.Sequencers = runFlags.sequencers
	}
	if cfg.Operations <= 0 || cfg.Sequencers <= 0 {
		return fmt.Errorf("operations and sequencers must be positive")
	}

	result, err := scenario.Run(cmd.Context(), args[0], cfg)
	if err != nil {
		return err
	}

	if runFlags.jsonOut {
		return writeJSON(cmd.OutOrStdout(), result)
	}
	writeResult(cmd.OutOrStdout(), result)
	return nil
}

func formatObserved(observed []string) string {
	quoted := make([]string, len(observed))
	for i, o := range observed {
		quoted[i] = fmt.Sprintf("%q", o)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func writeResult(w io.Writer, result *scenario.Result) {
	fmt.Fprintf(w, "Scenario: %s\n", result.Name)
	fmt.Fprintf(w, "Run: %s\n", result.RunID)
	fmt.Fprintf(w, "Observed: %s\n", formatObserved(result.Observed))
	for _, o := range result.Outcomes {
		if o.Err != nil {
			fmt.Fprintf(w, "  %-4s error: %v\n", o.Label, o.Err)
			continue
		}
		fmt.Fprintf(w, "  %-4s value: %s\n", o.Label, o.Value)
	}
	fmt.Fprintf(w, "Elapsed: %s\n", result.Elapsed.Round(time.Millisecond))
}

type jsonOutcome struct {
	Label     string `json:"label"`
	Sequencer string `json:"sequencer"`
	Value     string `json:"value,omitempty"`
	Error     string `json:"error,omitempty"`
}

type jsonResult struct {
	Scenario  string        `json:"scenario"`
	RunID     string        `json:"run_id"`
	TraceID   string        `json:"trace_id"`
	Observed  []string      `json:"observed"`
	Outcomes  []jsonOutcome `json:"outcomes"`
	ElapsedMs int64         `json:"elapsed_ms"`
}

func writeJSON(w io.Writer, result *scenario.Result) error {
	out := jsonResult{
		Scenario:  result.Name,
		RunID:     result.RunID,
		TraceID:   result.TraceID,
		Observed:  result.Observed,
		ElapsedMs: result.Elapsed.Milliseconds(),
	}
	if out.Observed == nil {
		out.Observed = []string{}
	}
	for _, o := range result.Outcomes {
		jo := jsonOutcome{Label: o.Label, Sequencer: o.Sequencer, Value: o.Value}
		if o.Err != nil {
			jo.Error = o.Err.Error()
		}
		out.Outcomes = append(out.Outcomes, jo)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
