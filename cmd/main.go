package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"golang-algo-trader/internal/scheduler/calendar"
	"golang-algo-trader/internal/scheduler/config"
	"golang-algo-trader/pkg/logger"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "algo-trader",
	Short: "A CLI for the algorithm trading services",
	Long: `algo-trader runs user trading algorithms on a schedule and executes their signals.
The scheduling-service and execution-service binaries run the background loops; this
command offers operator helpers.`,
}

var marketCmd = &cobra.Command{
	Use:   "market",
	Short: "Show the configured market calendars and whether each market is open now",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cal, err := calendar.New(cfg.Market, logger.NewNop())
		if err != nil {
			return err
		}

		now := time.Now()
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "REGION\tTIMEZONE\tHOURS\tBROKER\tLOCAL TIME\tOPEN")
		for _, name := range cal.Regions() {
			r := cal.Region(name)
			fmt.Fprintf(w, "%s\t%s\t%s-%s\t%s\t%s\t%t\n",
				r.Name, r.Location, r.Open, r.Close, r.Broker,
				now.In(r.Location).Format("Mon 15:04"), r.IsOpen(now))
		}
		return w.Flush()
	},
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config-scheduler.yaml", "Path to the configuration file")
	rootCmd.AddCommand(marketCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Whoops. There was an error while executing your CLI '%s'", err)
		os.Exit(1)
	}
}
