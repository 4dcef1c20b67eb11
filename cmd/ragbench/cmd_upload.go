package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var processImages bool

var uploadCmd = &cobra.Command{
	Use:   "upload [files...]",
	Short: "Upload PDF documents to the backend store",
	Long: `Uploads one or more PDF files for indexing. With --process-images the
backend also generates descriptions for embedded images (slow).`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().BoolVar(&processImages, "process-images", false,
		"generate AI descriptions for PDF images (slow)")
}

func runUpload(cmd *cobra.Command, args []string) error {
	a, err := newApp(logger)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.uploadFiles(context.Background(), args, processImages)
	if err != nil {
		return err
	}

	boldGreen := color.New(color.FgGreen, color.Bold).SprintFunc()
	fmt.Printf("%s %d file(s) uploaded, %d chunks now in store\n",
		boldGreen("OK:"), result.UploadedFiles, result.TotalChunks)
	if result.SavedTo != "" {
		fmt.Printf("Saved to: %s\n", result.SavedTo)
	}
	for _, doc := range result.Documents {
		name := doc.Filename
		if name == "" {
			name = doc.DocumentID
		}
		fmt.Printf("  - %s", name)
		if doc.Pages > 0 {
			fmt.Printf(" (%d pages)", doc.Pages)
		}
		if doc.ChunkCount > 0 {
			fmt.Printf(" [%d chunks]", doc.ChunkCount)
		}
		fmt.Println()
	}
	return nil
}
