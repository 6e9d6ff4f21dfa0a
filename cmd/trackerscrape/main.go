// Command trackerscrape is a one-shot CLI wrapper around the
// trackerscrape library: scrape a set of info hashes against a set of
// trackers and print the results as a table.
package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	trackerscrape "github.com/driftwood-labs/trackerscrape"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		hashes   []string
		trackers []string
		timeout  time.Duration
		verbose  bool
	)

	cmd := &cobra.Command{
		Use:   "trackerscrape",
		Short: "Scrape BitTorrent trackers for seeder/leecher/download counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logrus.StandardLogger()
			if verbose {
				log.SetLevel(logrus.DebugLevel)
			}

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			result, err := trackerscrape.ScrapeInfoHashes(ctx, hashes, trackers, trackerscrape.WithLogger(log))
			if err != nil {
				return err
			}

			printResult(cmd, result)

			if allEmpty(result) {
				return fmt.Errorf("every tracker failed for every hash")
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&hashes, "hash", nil, "40-character hex info hash (repeatable)")
	cmd.Flags().StringArrayVar(&trackers, "tracker", nil, "tracker URL, http(s):// or udp:// (repeatable)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "overall deadline for the scrape call")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	_ = cmd.MarkFlagRequired("hash")
	_ = cmd.MarkFlagRequired("tracker")

	return cmd
}

func printResult(cmd *cobra.Command, result trackerscrape.ScrapeResult) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "HASH\tTRACKER\tSEEDERS\tPEERS\tCOMPLETE")
	for hash, stats := range result {
		if len(stats) == 0 {
			fmt.Fprintf(w, "%s\t-\t-\t-\t-\n", hash)
			continue
		}
		for _, s := range stats {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n", hash, s.TrackerURL, s.Seeders, s.Peers, s.Complete)
		}
	}
	w.Flush()
}

func allEmpty(result trackerscrape.ScrapeResult) bool {
	for _, stats := range result {
		if len(stats) > 0 {
			return false
		}
	}
	return true
}
