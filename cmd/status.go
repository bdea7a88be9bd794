package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"drivemigrate/internal/model"

	"github.com/spf13/cobra"
)

var statusWatch bool

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Show the status of a transfer job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for {
			job, err := fetchJob(args[0])
			if err != nil {
				return err
			}

			printJob(job)

			if !statusWatch || job.Status.Terminal() {
				return nil
			}

			time.Sleep(time.Duration(cfg.PollIntervalSecs) * time.Second)
		}
	},
}

func fetchJob(id string) (model.Job, error) {
	resp, err := http.Get(daemonURL("/api/transfers/" + id))
	if err != nil {
		return model.Job{}, fmt.Errorf("daemon not running: %w", err)
	}

	defer func(body io.ReadCloser) {
		_ = body.Close()
	}(resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return model.Job{}, fmt.Errorf("job %s not found (it may have expired)", id)
	}
	if resp.StatusCode != http.StatusOK {
		return model.Job{}, fmt.Errorf("unexpected response: %s", resp.Status)
	}

	var job model.Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return model.Job{}, fmt.Errorf("failed to decode status response: %w", err)
	}

	return job, nil
}

func printJob(job model.Job) {
	fmt.Printf("%-10s %s → %s\n", job.Status, job.SourceAccount, job.DestAccount)
	fmt.Printf("  roots: %d  expanded: %d  transferred: %d  failed: %d  skipped: %d  bytes: %d\n",
		job.TotalCount, job.ExpandedCount,
		job.TransferredCount, job.FailedCount, job.SkippedCount, job.BytesTransferred)

	if job.Status.Terminal() {
		fmt.Printf("  duration: %s\n", time.Duration(job.DurationMs)*time.Millisecond)
	}

	for _, e := range job.ErrorLog {
		fmt.Printf("  ! %s: %s\n", e.ItemName, e.Message)
	}
}

func init() {
	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "Poll until the job finishes")
	rootCmd.AddCommand(statusCmd)
}
