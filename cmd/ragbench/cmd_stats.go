package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var showUploads bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Fetch and print index statistics",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&showUploads, "uploads", false, "also list locally known uploads")
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := newApp(logger)
	if err != nil {
		return err
	}
	defer a.Close()

	snapshot, err := a.aggregator.Refresh(context.Background())
	if err != nil {
		return err
	}

	bold := color.New(color.Bold).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()
	fmt.Printf("%s %d\n", bold("Documents:"), snapshot.DocumentCount)
	fmt.Printf("%s %d\n", bold("Chunks:   "), snapshot.ChunkCount)
	if !snapshot.LastIndexedAt.IsZero() {
		fmt.Printf("%s %s\n", bold("Indexed:  "), snapshot.LastIndexedAt.Local().Format("2006-01-02 15:04:05"))
	}

	if showUploads {
		docs := a.registry.All()
		if len(docs) == 0 {
			fmt.Println(faint("No documents uploaded from this client."))
			return nil
		}
		fmt.Printf("\n%s\n", bold("Uploads:"))
		for _, doc := range docs {
			fmt.Printf("  %s  %s", doc.UploadedAt.Local().Format("2006-01-02 15:04"), doc.Filename)
			if doc.Pages > 0 {
				fmt.Printf("  (%d pages)", doc.Pages)
			}
			fmt.Println()
		}
	}
	return nil
}
