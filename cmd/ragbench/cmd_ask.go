package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ragbench/internal/rag"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question and print the answer with its sources",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := newApp(logger)
	if err != nil {
		return err
	}
	defer a.Close()

	question := strings.Join(args, " ")
	id, ok := a.turns.Submit(context.Background(), question)
	if !ok {
		return fmt.Errorf("question is empty")
	}
	a.turns.Wait()

	turn, _ := a.turns.Get(id)
	printTurn(turn)

	if a.archive != nil {
		_ = a.archive.Record("cli", turn)
	}
	if turn.Status == rag.StatusError {
		return fmt.Errorf("query failed: %s", turn.ErrorMessage)
	}
	return nil
}

func printTurn(turn rag.Turn) {
	boldCyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	boldRed := color.New(color.FgRed, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()

	fmt.Printf("%s %s\n\n", boldCyan("Q:"), turn.Question)
	if turn.Status == rag.StatusError {
		fmt.Printf("%s %s\n", boldRed("Error:"), turn.ErrorMessage)
		return
	}
	fmt.Println(turn.Answer)

	if len(turn.Sources) == 0 {
		fmt.Printf("\n%s\n", faint("No sources returned."))
		return
	}
	fmt.Printf("\n%s\n", boldCyan(fmt.Sprintf("Sources (%d):", len(turn.Sources))))
	for _, src := range turn.Sources {
		line := fmt.Sprintf("  #%d  score=%.3f  doc=%s  chunk=%s", src.Rank, src.Score, src.DocumentID, src.ChunkID)
		if src.PageID != nil {
			line += fmt.Sprintf("  page=%d", *src.PageID)
		}
		if src.IsChildChunk {
			line += "  [child]"
		}
		fmt.Println(green(line))
		snippet := src.Snippet
		if len(snippet) > 160 {
			snippet = snippet[:160] + "..."
		}
		if snippet != "" {
			fmt.Printf("      %s\n", faint(snippet))
		}
		if src.DocumentURL != "" {
			fmt.Printf("      %s\n", faint(src.DocumentURL))
		}
	}
}
