package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/claim-processor/internal/config"
	"github.com/jonathan/claim-processor/internal/gateway"
	"github.com/jonathan/claim-processor/internal/llm"
	"github.com/jonathan/claim-processor/internal/observability"
	"github.com/jonathan/claim-processor/internal/pipeline"
	"github.com/jonathan/claim-processor/internal/store"
	"github.com/jonathan/claim-processor/internal/types"
)

var (
	processClaimID     string
	processDescription string
	processConfigPath  string
	processVerbose     bool
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process a single claim",
	Long:  `Run the full analysis pipeline for one claim and print the decision. Progress is streamed as stages start and finish.`,
	RunE:  runProcess,
}

func init() {
	processCmd.Flags().StringVar(&processClaimID, "claim-id", "", "Claim identifier")
	processCmd.Flags().StringVar(&processDescription, "description", "", "Claim description text")
	processCmd.Flags().StringVar(&processConfigPath, "config", "", "Path to JSON config file")
	processCmd.Flags().BoolVar(&processVerbose, "verbose", false, "Print detailed run output")
	rootCmd.AddCommand(processCmd)
}

func runProcess(_ *cobra.Command, _ []string) error {
	cfg := config.Config{
		ClaimID:     processClaimID,
		Description: processDescription,
		APIKey:      os.Getenv("GEMINI_API_KEY"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
	}
	if processConfigPath != "" {
		fileCfg, err := config.LoadConfig(processConfigPath)
		if err != nil {
			return err
		}
		if err := fileCfg.Validate(); err != nil {
			return err
		}
		cfg = cfg.MergeWithDefaults(*fileCfg)
	}

	if cfg.ClaimID == "" {
		return fmt.Errorf("--claim-id is required")
	}
	if cfg.Description == "" {
		return fmt.Errorf("--description is required")
	}
	if cfg.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	ctx := context.Background()

	var st store.Store
	if cfg.DatabaseURL != "" {
		pg, err := store.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		st = pg
	} else {
		st = store.NewMemory()
	}
	defer st.Close()

	client, err := llm.NewClient(ctx, llm.DefaultConfig(), cfg.APIKey)
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}
	defer func() { _ = client.Close() }()

	gw := gateway.New(client)
	if cfg.StageTimeout > 0 {
		gw = gw.WithTimeout(time.Duration(cfg.StageTimeout) * time.Second)
	}

	coordinator := pipeline.New(gw, st)
	events, err := coordinator.RunStream(ctx, cfg.ClaimID, cfg.Description)
	if err != nil {
		return err
	}

	printer := observability.NewPrinter(os.Stdout)
	var final *types.ClaimRun
	for ev := range events {
		if processVerbose || cfg.Verbose {
			printer.PrintEvent(ev)
		}
		if ev.Run != nil {
			final = ev.Run
		}
	}
	if final == nil {
		return fmt.Errorf("run ended without a result")
	}

	printer.PrintRun(final)
	if final.OverallStatus != types.RunStatusCompleted {
		return fmt.Errorf("claim processing did not complete")
	}
	return nil
}
