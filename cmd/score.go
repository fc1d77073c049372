package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/feaslabs/feasly/app"
)

var (
	scoreTitle   string
	scoreSummary string
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a single idea through the full pipeline and print the aggregate",
	RunE:  scoreOnce,
}

func init() {
	scoreCmd.Flags().StringVar(&scoreTitle, "title", "", "idea title")
	scoreCmd.Flags().StringVar(&scoreSummary, "summary", "", "idea summary")
	_ = scoreCmd.MarkFlagRequired("title")
	_ = scoreCmd.MarkFlagRequired("summary")
	rootCmd.AddCommand(scoreCmd)
}

func scoreOnce(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := svc.Run(runCtx); err != nil {
			fmt.Fprintf(os.Stderr, "service: %v\n", err)
		}
	}()

	// Give the loops a moment to subscribe before submitting.
	deadline := time.Now().Add(2 * time.Second)
	for !svc.Gateway().Ready() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	agg, err := svc.Gateway().Score(ctx, "", scoreTitle, scoreSummary, nil)
	if err != nil {
		return fmt.Errorf("score: %w", err)
	}
	out, err := json.MarshalIndent(agg, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
