package commands

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/hubwire/pkg/hub"
)

// rateLimitResponse is the body of GET /rate_limit.
type rateLimitResponse struct {
	Resources map[string]struct {
		Limit     int   `json:"limit"`
		Remaining int   `json:"remaining"`
		Used      int   `json:"used"`
		Reset     int64 `json:"reset"`
	} `json:"resources"`
}

// NewRateLimitCommand creates the rate-limit command.
func NewRateLimitCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "rate-limit",
		Aliases: []string{"rl"},
		Short:   "Show rate limit status",
		Long:    "Display the remaining quota of every rate limit resource",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			client, err := createClient(ctx)
			if err != nil {
				return err
			}

			req, err := client.NewRequest(http.MethodGet, "/rate_limit", nil)
			if err != nil {
				return fmt.Errorf("failed to build request: %w", err)
			}

			status, err := hub.Fetch(ctx, client, req, hub.DecodeJSON[rateLimitResponse])
			if err != nil {
				return fmt.Errorf("failed to get rate limits: %w", err)
			}

			snapshots := rateLimitSnapshots(status)

			return writeOutput(cmd.OutOrStdout(), snapshots, func(table *tablewriter.Table) error {
				table.Header("Resource", "Limit", "Remaining", "Used", "Resets")

				now := time.Now()

				for _, snapshot := range snapshots {
					err := table.Append([]string{
						snapshot.Resource,
						strconv.Itoa(snapshot.Limit),
						strconv.Itoa(snapshot.Remaining),
						strconv.Itoa(snapshot.Used),
						snapshot.ResetIn(now).Round(time.Second).String(),
					})
					if err != nil {
						return fmt.Errorf("failed to append row: %w", err)
					}
				}

				return nil
			})
		},
	}
}

// rateLimitSnapshots converts the response into snapshots sorted by resource.
func rateLimitSnapshots(status rateLimitResponse) []hub.RateLimitSnapshot {
	snapshots := make([]hub.RateLimitSnapshot, 0, len(status.Resources))

	for resource, quota := range status.Resources {
		snapshots = append(snapshots, hub.RateLimitSnapshot{
			Resource:  resource,
			Limit:     quota.Limit,
			Remaining: quota.Remaining,
			Used:      quota.Used,
			ResetAt:   time.Unix(quota.Reset, 0),
		})
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Resource < snapshots[j].Resource
	})

	return snapshots
}
