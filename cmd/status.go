package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"
)

var serverURL string

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Query server status or specific job",
	Long: `Queries the server for job status information.
If no job-id is provided, lists all jobs.
If job-id is provided, shows detailed status for that job.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return listServerJobs(fmt.Sprintf("%s/api/v1/jobs", serverURL))
	}
	jobID := args[0]
	return getJobStatus(fmt.Sprintf("%s/api/v1/jobs/%s/status", serverURL, jobID), jobID)
}

func listServerJobs(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	var jobs []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	fmt.Printf("Found %d job(s):\n\n", len(jobs))
	for _, job := range jobs {
		fmt.Printf("Job ID: %s\n", job["id"])
		fmt.Printf("  State: %s\n", job["state"])
		if config, ok := job["config"].(map[string]interface{}); ok {
			fmt.Printf("  Goal: %s\n", config["goal"])
			fmt.Printf("  Experiment: %s\n", config["experimentPath"])
		}
		if ev, ok := job["evaluations"].(float64); ok && ev > 0 {
			fmt.Printf("  Value: %.6g -> %.6g\n", job["initialValue"], job["bestValue"])
		}
		fmt.Println()
	}
	return nil
}

func getJobStatus(url, jobID string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("job not found: %s", jobID)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	var status map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Job: %s\n", status["id"])
	fmt.Printf("State: %s\n", status["state"])
	fmt.Println()

	if config, ok := status["config"].(map[string]interface{}); ok {
		fmt.Println("Configuration:")
		fmt.Printf("  Experiment: %s\n", config["experimentPath"])
		fmt.Printf("  Goal: %s\n", config["goal"])
		fmt.Printf("  Iterations: %v\n", config["iters"])
		fmt.Printf("  Population: %v\n", config["popSize"])
		fmt.Println()
	}

	fmt.Println("Progress:")
	fmt.Printf("  Evaluations: %v\n", status["evaluations"])
	if iv, ok := status["initialValue"].(float64); ok && iv != 0 {
		fmt.Printf("  Initial Value: %.6g\n", iv)
	}
	if bv, ok := status["bestValue"].(float64); ok {
		fmt.Printf("  Best Value: %.6g\n", bv)
	}
	if eps, ok := status["eps"].(float64); ok && eps > 0 {
		fmt.Printf("  Evals/sec: %.1f\n", eps)
	}
	if settings, ok := status["bestSettings"].([]interface{}); ok && len(settings) > 0 {
		fmt.Println("  Settings:")
		for i, s := range settings {
			fmt.Printf("    Q%d: %.6f\n", i+1, s)
		}
	}
	if errMsg, ok := status["error"].(string); ok && errMsg != "" {
		fmt.Printf("  Error: %s\n", errMsg)
	}
	return nil
}
