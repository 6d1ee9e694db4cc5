package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vilaw/backend/internal/app"
	"github.com/vilaw/backend/internal/engine"
	"github.com/vilaw/backend/internal/evaluation"
	"github.com/vilaw/backend/internal/intent"
	"github.com/vilaw/backend/internal/knowledge"
	"github.com/vilaw/backend/internal/lexicon"
	"github.com/vilaw/backend/internal/seed"
	"github.com/vilaw/backend/pkg/config"
	"github.com/vilaw/backend/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var lexiconFile string

	root := &cobra.Command{
		Use:          "vilawctl",
		Short:        "vilawctl - inspect and operate the ViLaw engine",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&lexiconFile, "lexicon", "", "YAML lexicon overriding the built-in terms")

	loadLexicon := func() (*lexicon.Lexicon, error) {
		if lexiconFile == "" {
			return lexicon.Default(), nil
		}
		return lexicon.LoadFile(lexiconFile)
	}

	root.AddCommand(
		newClassifyCmd(loadLexicon),
		newRankCmd(loadLexicon),
		newAskCmd(loadLexicon),
		newCycleCmd(),
	)
	return root
}

func newClassifyCmd(loadLexicon func() (*lexicon.Lexicon, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <text>",
		Short: "Print the intent of a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lex, err := loadLexicon()
			if err != nil {
				return err
			}
			result := intent.NewClassifier(lex).Classify(strings.Join(args, " "))
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
}

func newRankCmd(loadLexicon func() (*lexicon.Lexicon, error)) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "rank <text>",
		Short: "Rank the bundled corpus and knowledge base against a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := offlineEngine(loadLexicon, limit, 1)
			if err != nil {
				return err
			}
			ranked, err := eng.Rank(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(ranked) == 0 {
				fmt.Fprintln(out, "no relevant documents")
				return nil
			}
			for i, d := range ranked {
				fmt.Fprintf(out, "%d. %-12s %.3f  %s\n", i+1, d.ID, d.RelevanceScore, d.Title)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "maximum number of results")
	return cmd
}

func newAskCmd(loadLexicon func() (*lexicon.Lexicon, error)) *cobra.Command {
	var seedValue int64

	cmd := &cobra.Command{
		Use:   "ask <text>",
		Short: "Answer a question from the bundled corpus",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := offlineEngine(loadLexicon, 0, seedValue)
			if err != nil {
				return err
			}
			resp := eng.Handle(cmd.Context(), engine.Request{Input: strings.Join(args, " "), UserID: "cli"})

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "[%s/%s %.1f]\n\n%s\n", resp.Intent.Type, resp.Intent.Subcategory, resp.Confidence, resp.Content)
			if len(resp.Suggestions) > 0 {
				fmt.Fprintln(out)
				for _, s := range resp.Suggestions {
					fmt.Fprintf(out, "→ %s\n", s)
				}
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&seedValue, "seed", 1, "seed for greeting selection")
	return cmd
}

func newCycleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cycle",
		Short: "Run one learning cycle against the configured database and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := logger.Init(cfg.Logging.Level, "console", "stderr"); err != nil {
				return err
			}
			defer logger.Sync()

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			a, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			m, err := a.Learning.RunCycle(ctx)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), evaluation.GenerateReport(m))
			return nil
		},
	}
}

// offlineEngine serves the bundled seed data from memory, without touching the
// database.
func offlineEngine(loadLexicon func() (*lexicon.Lexicon, error), limit int, seedValue int64) (*engine.Engine, error) {
	lex, err := loadLexicon()
	if err != nil {
		return nil, err
	}
	docs, err := seed.Documents()
	if err != nil {
		return nil, err
	}
	entries, err := seed.Knowledge(time.Now())
	if err != nil {
		return nil, err
	}

	store := knowledge.NewStore(knowledge.DefaultCapacity)
	store.Replace(entries)

	return engine.New(engine.Config{
		Classifier: intent.NewClassifier(lex),
		Documents:  engine.StaticDocuments(docs),
		Knowledge:  store,
		RankLimit:  limit,
		Rand:       rand.New(rand.NewSource(seedValue)),
	}), nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
