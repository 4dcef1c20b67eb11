package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ragbench/internal/rag"
	"ragbench/internal/settings"
)

var (
	flagModel        string
	flagTopK         int
	flagChunkSize    int
	flagChunkOverlap int
	flagTemperature  float64
	flagMaxTokens    int
	flagStyle        string
	flagDepth        string
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Inspect and reconcile pipeline settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the last confirmed settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(logger)
		if err != nil {
			return err
		}
		defer a.Close()
		printSettings(a.reconciler.Current())
		return nil
	},
}

var settingsApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Propose a settings change to the backend",
	Long: `Builds a draft from the current settings, overlays --style/--depth
presets and any explicit field flags, and proposes it. The backend's echoed
copy (which may normalize or clamp fields) becomes the new confirmed value.`,
	RunE: runSettingsApply,
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Propose the client baseline settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(logger)
		if err != nil {
			return err
		}
		defer a.Close()
		confirmed, err := a.reconciler.Propose(context.Background(), a.reconciler.ResetToDefault())
		if err != nil {
			return err
		}
		fmt.Println(color.New(color.FgGreen, color.Bold).Sprint("Settings reset."))
		printSettings(confirmed)
		return nil
	},
}

func init() {
	settingsApplyCmd.Flags().StringVar(&flagModel, "model", "", "generation model identifier")
	settingsApplyCmd.Flags().IntVar(&flagTopK, "top-k", 0, "retrieved chunks per answer")
	settingsApplyCmd.Flags().IntVar(&flagChunkSize, "chunk-size", 0, "target chunk length")
	settingsApplyCmd.Flags().IntVar(&flagChunkOverlap, "chunk-overlap", 0, "overlap between chunks")
	settingsApplyCmd.Flags().Float64Var(&flagTemperature, "temperature", 0, "sampling temperature")
	settingsApplyCmd.Flags().IntVar(&flagMaxTokens, "max-tokens", 0, "answer token budget")
	settingsApplyCmd.Flags().StringVar(&flagStyle, "style", "", "answer style preset: factual|balanced|creative")
	settingsApplyCmd.Flags().StringVar(&flagDepth, "depth", "", "retrieval depth preset: fast|balanced|thorough")

	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsApplyCmd)
	settingsCmd.AddCommand(settingsResetCmd)
}

func runSettingsApply(cmd *cobra.Command, args []string) error {
	a, err := newApp(logger)
	if err != nil {
		return err
	}
	defer a.Close()

	draft := a.reconciler.Current()

	// Presets first, explicit field flags override.
	if flagStyle != "" || flagDepth != "" {
		style := settings.StyleFor(draft.Temperature)
		depth := settings.DepthFor(draft.TopK)
		if flagStyle != "" {
			style = settings.StylePreset(flagStyle)
		}
		if flagDepth != "" {
			depth = settings.DepthPreset(flagDepth)
		}
		draft = settings.ApplyPresets(draft, style, depth)
	}
	if cmd.Flags().Changed("model") {
		draft.LLMModel = flagModel
	}
	if cmd.Flags().Changed("top-k") {
		draft.TopK = flagTopK
	}
	if cmd.Flags().Changed("chunk-size") {
		draft.ChunkSize = flagChunkSize
	}
	if cmd.Flags().Changed("chunk-overlap") {
		draft.ChunkOverlap = flagChunkOverlap
	}
	if cmd.Flags().Changed("temperature") {
		draft.Temperature = flagTemperature
	}
	if cmd.Flags().Changed("max-tokens") {
		draft.MaxTokens = flagMaxTokens
	}

	confirmed, err := a.reconciler.Propose(context.Background(), draft)
	if err != nil {
		return err
	}
	fmt.Println(color.New(color.FgGreen, color.Bold).Sprint("Settings confirmed by backend."))
	printSettings(confirmed)
	return nil
}

func printSettings(s rag.Settings) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Printf("%s %s\n", bold("Model:        "), s.LLMModel)
	fmt.Printf("%s %d\n", bold("Top K:        "), s.TopK)
	fmt.Printf("%s %d\n", bold("Chunk size:   "), s.ChunkSize)
	fmt.Printf("%s %d\n", bold("Chunk overlap:"), s.ChunkOverlap)
	fmt.Printf("%s %.2f\n", bold("Temperature:  "), s.Temperature)
	fmt.Printf("%s %d\n", bold("Max tokens:   "), s.MaxTokens)
}
