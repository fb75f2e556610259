package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/snarg/mockprep/internal/config"
	"github.com/snarg/mockprep/internal/database"
	"github.com/snarg/mockprep/internal/interview"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	ratingStyle = lipgloss.NewStyle().Bold(true)
	goodStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	poorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	boxStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)
)

func newReportCmd(gf *globalFlags) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "report <interview-id>",
		Short: "Print the feedback report for an interview",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(gf.overrides())
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("report needs DATABASE_URL or --database-url")
			}
			log := newLogger(cfg.LogLevel)

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			db, err := database.Connect(ctx, cfg.DatabaseURL, log.With().Str("component", "database").Logger())
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer db.Close()

			report, err := loadReport(ctx, db, args[0])
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			renderReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the report as JSON")

	return cmd
}

// loadReport builds the report for any interview, regardless of owner.
func loadReport(ctx context.Context, db *database.DB, id string) (*interview.Report, error) {
	iv, err := db.GetInterview(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("interview %s: %w", id, err)
	}
	answers, err := db.ListAnswers(ctx, iv.UserID, iv.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	return interview.BuildReport(iv, answers), nil
}

func renderReport(w io.Writer, r *interview.Report) {
	iv := r.Interview
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s (%d yrs)", iv.Position, iv.Experience)))
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Tech stack:"), iv.TechStack)
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Created:   "), iv.CreatedAt.Format(time.RFC1123))
	fmt.Fprintln(w)

	if !r.HasFeedback {
		fmt.Fprintln(w, labelStyle.Render("No answers recorded yet."))
		return
	}

	fmt.Fprintf(w, "%s %s\n\n", labelStyle.Render("Overall rating:"), ratingStyle.Render(r.OverallRating+"/10"))

	for i, a := range r.Answers {
		var b strings.Builder
		fmt.Fprintf(&b, "%s %s\n", ratingStyle.Render(fmt.Sprintf("Q%d.", i+1)), a.Question)
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Rating:"), styleRating(a.Rating))
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Your answer:"), a.UserAns)
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Expected:"), a.CorrectAns)
		fmt.Fprintf(&b, "%s %s", labelStyle.Render("Feedback:"), a.Feedback)
		if a.RecordingKey != nil {
			fmt.Fprintf(&b, "\n%s %s", labelStyle.Render("Recording:"), *a.RecordingKey)
		}
		fmt.Fprintln(w, boxStyle.Render(b.String()))
	}
}

func styleRating(rating int) string {
	s := fmt.Sprintf("%d/10", rating)
	switch {
	case rating >= 7:
		return goodStyle.Render(s)
	case rating < 4:
		return poorStyle.Render(s)
	}
	return s
}
