package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ragbench/internal/rag"
)

var (
	historyLimit   int
	historySession string
	listSessions   bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived turns from past sessions",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum turns to show")
	historyCmd.Flags().StringVar(&historySession, "session", "", "restrict to one session id")
	historyCmd.Flags().BoolVar(&listSessions, "sessions", false, "list sessions instead of turns")
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := newApp(logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.archive == nil {
		return fmt.Errorf("turn archive unavailable")
	}

	faint := color.New(color.Faint).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	if listSessions {
		sessions, err := a.archive.Sessions(historyLimit)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Println(faint("No archived sessions."))
			return nil
		}
		for _, s := range sessions {
			fmt.Printf("%s  %d turn(s)  last %s\n",
				bold(s.SessionID), s.Turns, s.LastAt.Local().Format("2006-01-02 15:04"))
		}
		return nil
	}

	turns, err := a.archive.Recent(historySession, historyLimit)
	if err != nil {
		return err
	}
	if len(turns) == 0 {
		fmt.Println(faint("No archived turns."))
		return nil
	}
	for _, turn := range turns {
		fmt.Printf("%s %s\n", faint(turn.CreatedAt.Local().Format("2006-01-02 15:04")), bold(turn.Question))
		if turn.Status == rag.StatusError {
			fmt.Printf("  %s %s\n", color.New(color.FgRed).Sprint("error:"), turn.ErrorMessage)
			continue
		}
		answer := turn.Answer
		if len(answer) > 200 {
			answer = answer[:200] + "..."
		}
		fmt.Printf("  %s\n", answer)
		if len(turn.Sources) > 0 {
			fmt.Printf("  %s\n", faint(fmt.Sprintf("%d source(s)", len(turn.Sources))))
		}
	}
	return nil
}
