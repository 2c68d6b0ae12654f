package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sync"
	"text/tabwriter"

	"finze/internal/cli"
	"finze/internal/core"
	"finze/internal/services"
)

func main() {
	userID := flag.String("user", "", "user whose collections are watched")
	asJSON := flag.Bool("json", false, "print one JSON snapshot per line")
	flag.Parse()

	cfg, logger := cli.Bootstrap("finze-watch")
	if *userID == "" {
		fmt.Fprintln(os.Stderr, "usage: finze-watch -user <id> [-json]")
		os.Exit(2)
	}

	be := cli.MustInitBackend(context.Background(), logger, cfg)
	defer func() {
		if err := be.Close(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	var mu sync.Mutex
	show := func(s core.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		var err error
		if *asJSON {
			err = json.NewEncoder(os.Stdout).Encode(s)
		} else {
			err = render(os.Stdout, s)
		}
		if err != nil {
			logger.Error("Failed to print snapshot", "error", err)
		}
	}

	watchCtx, stop := context.WithCancel(context.Background())
	session := services.NewDashboard(*userID, show).Bind(watchCtx, be.Source, be.Store)
	logger.Info("Watching collections", "user_id", *userID, "backend", cfg.DataBackend, "subscriptions", session.Len())

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(context.Context) {
		session.Close()
		stop()
	})

	cli.WaitForShutdown(ctx, done)
}

func render(w io.Writer, s core.Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "== %s  %s ==\n", s.UserID, s.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(tw, "Month %s\tincome %s\texpenses %s\tbalance %s\n",
		s.Monthly.Month, s.Monthly.TotalIncome, s.Monthly.TotalExpenses, s.Monthly.Balance)

	for _, c := range s.ByCategory {
		fmt.Fprintf(tw, "  %s\t%s\n", c.Name, c.Amount)
	}
	for _, b := range s.Budgets {
		fmt.Fprintf(tw, "Budget %s\t%s / %s\t%.1f%%\t%s\n", b.Budget.Category, b.Spent, b.Budget.Amount, b.Percentage, b.Band)
	}
	for _, g := range s.Goals {
		fmt.Fprintf(tw, "Goal %s\t%.1f%%\t%d days left\n", g.Goal.Name, g.DisplayPercentage, g.RemainingDays)
	}
	for _, r := range s.Recurrences {
		fmt.Fprintf(tw, "Due %s\t%s\t%s\t%d days\n", r.Recurrence.Title, r.Recurrence.Amount, r.Recurrence.NextDue.Format("2006-01-02"), r.DaysUntil)
	}
	fmt.Fprintf(tw, "Unread suggestions\t%d\n\n", s.UnreadSuggestions)
	return tw.Flush()
}
