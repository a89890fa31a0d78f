package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewSubmitCmd создаёт команду отправки шагов в API.
func NewSubmitCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var async bool
	var opts optionFlags

	cmd := &cobra.Command{
		Use:   "submit FILE",
		Short: "Submit a step document to the API",
		Long: `Submit a step document to the API.

By default the API executes the run synchronously and the output document is printed.
With --async the run is queued and its ID is printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			steps, err := readSteps(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}

			raw, err := steps.MarshalJSON()
			if err != nil {
				return err
			}

			run, err := client.SubmitRun(cmd.Context(), SubmitRunRequest{
				Steps:   raw,
				Options: opts.options(cmd),
				Async:   async,
			})
			if err != nil {
				return err
			}

			if out.jsonMode {
				out.JSON(run)
				return nil
			}

			if async {
				out.Success(fmt.Sprintf("Run %s queued", run.ID))
				return nil
			}

			out.Success(fmt.Sprintf("Run %s %s", run.ID, run.Status))
			if len(run.Output) > 0 {
				return out.Document(run.Output)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&async, "async", false, "Queue the run instead of waiting for the output")
	opts.register(cmd)

	return cmd
}

// NewShowCmd создаёт команду просмотра run.
func NewShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show run details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if out.jsonMode {
				out.JSON(run)
				return nil
			}

			headers := []string{"FIELD", "VALUE"}
			rows := [][]string{
				{"ID", run.ID},
				{"Status", out.Status(run.Status)},
				{"Steps", strconv.Itoa(run.StepCount)},
				{"Groups", strconv.Itoa(run.GroupCount)},
				{"Created", run.CreatedAt},
			}
			if run.StartedAt != "" {
				rows = append(rows, []string{"Started", run.StartedAt})
			}
			if run.FinishedAt != "" {
				rows = append(rows, []string{"Finished", run.FinishedAt})
			}
			if run.Error != "" {
				rows = append(rows, []string{"Error", run.Error})
			}

			out.Table(headers, rows)

			if len(run.Output) > 0 {
				fmt.Fprintln(out.w)
				return out.Document(run.Output)
			}
			return nil
		},
	}
}

// NewListCmd создаёт команду списка runs.
func NewListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var status string
	var limit int
	var offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			runs, err := client.ListRuns(cmd.Context(), ListRunsOpts{
				Status: status,
				Limit:  limit,
				Offset: offset,
			})
			if err != nil {
				return err
			}

			headers := []string{"ID", "STATUS", "STEPS", "GROUPS", "CREATED"}
			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = []string{r.ID, out.Status(r.Status), strconv.Itoa(r.StepCount), strconv.Itoa(r.GroupCount), r.CreatedAt}
			}

			out.Print(headers, rows, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (PENDING, RUNNING, SUCCEEDED, FAILED)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of results to skip")

	return cmd
}
