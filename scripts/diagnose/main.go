package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/noah-isme/study-companion-api/internal/models"
	"github.com/noah-isme/study-companion-api/internal/repository"
	"github.com/noah-isme/study-companion-api/pkg/config"
	"github.com/noah-isme/study-companion-api/pkg/database"
	"github.com/noah-isme/study-companion-api/pkg/mongodb"
)

type report struct {
	Profile     *models.Profile
	Assignments []models.AssignmentStatusCount
	Sessions    []models.SessionStatusCount
	Unprocessed []models.CalendarEvent
}

func main() {
	var (
		email   string
		timeout time.Duration
		limit   int
	)
	flag.StringVar(&email, "email", "", "Student email to inspect")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "Overall timeout")
	flag.IntVar(&limit, "limit", 10, "Unprocessed events to list")
	flag.Parse()

	email = strings.TrimSpace(email)
	if email == "" {
		log.Fatal("-email is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	rep, err := collect(ctx, cfg, email)
	if err != nil {
		log.Fatalf("diagnose %s: %v", email, err)
	}
	printReport(os.Stdout, rep, limit)
}

func collect(ctx context.Context, cfg *config.Config, email string) (*report, error) {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	defer db.Close()

	client, err := mongodb.NewClient(ctx, cfg.Mongo)
	if err != nil {
		return nil, fmt.Errorf("mongo: %w", err)
	}
	defer client.Disconnect(context.Background()) //nolint:errcheck

	profile, err := repository.NewProfileRepository(db).FindByEmail(ctx, email)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, fmt.Errorf("no profile registered for %s", email)
		}
		return nil, fmt.Errorf("profile: %w", err)
	}
	rep := &report{Profile: profile}

	if rep.Assignments, err = repository.NewAssignmentRepository(db).CountByStatus(ctx, profile.ID); err != nil {
		return nil, fmt.Errorf("assignments: %w", err)
	}
	if rep.Sessions, err = repository.NewStudySessionRepository(db).CountByStatus(ctx, profile.ID); err != nil {
		return nil, fmt.Errorf("study sessions: %w", err)
	}
	events := repository.NewCalendarEventRepository(mongodb.Collection(client, cfg.Mongo))
	if rep.Unprocessed, err = events.ListUnprocessed(ctx); err != nil {
		return nil, fmt.Errorf("calendar events: %w", err)
	}
	return rep, nil
}

func printReport(out io.Writer, rep *report, limit int) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	p := rep.Profile
	fmt.Fprintf(w, "Profile\t%s (%s)\n", p.Email, p.ID)
	if p.PreferredStudyHour != nil {
		fmt.Fprintf(w, "Preferred hour\t%02d:00\n", *p.PreferredStudyHour)
	}

	fmt.Fprintln(w, "\nAssignments\t")
	total := 0
	for _, row := range rep.Assignments {
		fmt.Fprintf(w, "  %s\t%d\n", row.Status, row.Count)
		total += row.Count
	}
	fmt.Fprintf(w, "  total\t%d\n", total)

	fmt.Fprintln(w, "\nStudy sessions\t")
	total = 0
	for _, row := range rep.Sessions {
		fmt.Fprintf(w, "  %s\t%d\n", row.Status, row.Count)
		total += row.Count
	}
	fmt.Fprintf(w, "  total\t%d\n", total)

	fmt.Fprintf(w, "\nUnprocessed assignment events\t%d\n", len(rep.Unprocessed))
	for i, evt := range rep.Unprocessed {
		if i == limit {
			fmt.Fprintf(w, "  ...\t%d more\n", len(rep.Unprocessed)-limit)
			break
		}
		fmt.Fprintf(w, "  %s\t%s\n", evt.Datetime.Format(time.RFC3339), evt.Details)
	}
}
