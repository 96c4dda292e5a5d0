package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"actms/internal/cache"
	"actms/internal/fraud"
	"actms/internal/nlp"
	"actms/models"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a self-test of the database, the models, the chat and the upload directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.log.Sync()
		return runChecks(cmd.Context(), e, cmd.OutOrStdout())
	},
}

type check struct {
	name string
	run  func(ctx context.Context) (string, error)
}

func runChecks(ctx context.Context, e *env, out io.Writer) error {
	conn, store, err := e.openStorage(ctx)
	if err != nil {
		fmt.Fprintf(out, "FAIL database: %v\n", err)
		return err
	}
	defer conn.Close()

	checks := []check{
		{"database", func(ctx context.Context) (string, error) {
			if err := store.Ping(ctx); err != nil {
				return "", err
			}
			n, err := store.CountTenders(ctx)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s reachable, %d tenders", e.cfg.Database.Driver, n), nil
		}},
		{"nlp", func(context.Context) (string, error) {
			r := nlp.Analyze("We will complete the construction project within budget and on schedule. " +
				"Our experienced team has delivered similar infrastructure projects for the municipality.")
			if r.Error != "" {
				return "", errors.New(r.Error)
			}
			return fmt.Sprintf("quality score %.2f", r.QualityScore), nil
		}},
		{"fraud model", func(ctx context.Context) (string, error) {
			d := fraud.NewDetector(store, fraudOptions(e), e.log)
			if err := d.Initialize(ctx); err != nil {
				return "", err
			}
			a, err := d.Score(ctx, models.ScoringRow{
				CompanyName:    "Self Test Ltd",
				BidAmount:      decimal.NewFromInt(95000),
				ProposalText:   "Standard delivery of the requested works.",
				NLPScore:       0.6,
				CreatedAt:      time.Now(),
				TenderBudget:   decimal.NewFromInt(100000),
				TenderDeadline: time.Now().Add(30 * 24 * time.Hour),
			})
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("sample bid scored %.3f (threshold %.3f)", a.AnomalyScore, a.Threshold), nil
		}},
		{"chat", func(ctx context.Context) (string, error) {
			svc, err := newChatService(ctx, e, store, cache.NewMemory())
			if err != nil {
				return "", err
			}
			r := svc.Reply(ctx, "How do I submit a bid?")
			return fmt.Sprintf("provider %s, reply from %s", svc.ProviderName(), r.Source), nil
		}},
		{"uploads", func(context.Context) (string, error) {
			if err := os.MkdirAll(e.cfg.Uploads.Dir, 0o755); err != nil {
				return "", err
			}
			tmp, err := os.CreateTemp(e.cfg.Uploads.Dir, ".check-*")
			if err != nil {
				return "", err
			}
			tmp.Close()
			os.Remove(tmp.Name())
			abs, _ := filepath.Abs(e.cfg.Uploads.Dir)
			return abs + " writable", nil
		}},
	}

	failed := 0
	for _, c := range checks {
		msg, err := c.run(ctx)
		if err != nil {
			failed++
			fmt.Fprintf(out, "FAIL %-12s %v\n", c.name, err)
			continue
		}
		fmt.Fprintf(out, "ok   %-12s %s\n", c.name, msg)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d checks failed", failed, len(checks))
	}
	return nil
}

func fraudOptions(e *env) fraud.Options {
	return fraud.Options{
		ModelDir:        e.cfg.Fraud.ModelDir,
		Contamination:   e.cfg.Fraud.Contamination,
		Trees:           e.cfg.Fraud.Trees,
		MaxSamples:      e.cfg.Fraud.MaxSamples,
		MinTrainingBids: e.cfg.Fraud.MinTrainingBids,
		Seed:            e.cfg.Fraud.Seed,
	}
}
