package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/cv-matcher/internal/document"
	"github.com/spigell/cv-matcher/internal/filtering"
	"github.com/spigell/cv-matcher/internal/logger"
	"github.com/spigell/cv-matcher/internal/matching"
	"github.com/spigell/cv-matcher/internal/report"
	"github.com/spigell/cv-matcher/internal/retrieval"
)

const (
	PromptReport              = "Show full report"
	PromptShortlist           = "Show shortlist"
	PromptAsk                 = "Ask a question about the documents"
	PromptResultsToFile       = "Dump results to file"
	PromptAppendToExcludeFile = "Append shortlist to exclude file"
	PromptExit                = "Exit"
)

var errExit = errors.New("exit requested")

var matchCmd = &cobra.Command{
	Use:   "match [files...]",
	Short: "Score CVs against a job description",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runMatch(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().String("job", "", "job description text")
	matchCmd.Flags().String("job-file", "", "file with the job description (text or pdf)")
	matchCmd.Flags().Bool("lexical", false, "score by keyword overlap only, without embeddings")
	matchCmd.Flags().Bool("assess", false, "ask the llm to assess every document")
	matchCmd.Flags().StringP("output", "o", "table", "output format: table, json or yaml")
	matchCmd.Flags().BoolP("no-prompt", "y", false, "print results and exit without interactive actions")
	matchCmd.Flags().Bool("shortlist", false, "print the filtered shortlist instead of the full report")
	matchCmd.Flags().StringP("exclude-file", "e", "", "yaml file with documents to leave out of the shortlist")
	matchCmd.Flags().StringSlice("disable-filter", nil, "shortlist filters to skip (with_text, minimum_score)")

	viper.BindPFlag("ai.assess", matchCmd.Flags().Lookup("assess"))
	viper.BindPFlag("shortlist.exclude-file", matchCmd.Flags().Lookup("exclude-file"))
}

type matchSession struct {
	cfg       *Config
	logger    *zap.Logger
	providers *providers
	docs      *document.Documents
	results   []matching.Result
	format    report.Format
	disabled  []string

	out          io.Writer
	readQuestion func() (string, error)
}

func runMatch(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the cv-matcher", zap.String("version", version))

	format, err := report.ParseFormat(cmd.Flag("output").Value.String())
	if err != nil {
		logger.Fatal("parsing flags", zap.Error(err))
	}

	job, err := readJob(ctx, cmd.Flag("job").Value.String(), cmd.Flag("job-file").Value.String(), logger)
	if err != nil {
		logger.Fatal("reading the job description", zap.Error(err))
	}

	docs, err := document.Load(ctx, args, logger)
	if err != nil {
		logger.Fatal("loading documents", zap.Error(err))
	}

	p, err := newProviders(config, logger)
	if err != nil {
		logger.Fatal("building providers", zap.Error(err))
	}

	lexical, _ := cmd.Flags().GetBool("lexical")
	opts := matching.Options{
		Semantic: config.Scoring.Semantic && !lexical,
		Assess:   config.AI.Assess,
	}

	engine, err := p.matchEngine(ctx, opts)
	if err != nil {
		logger.Fatal("building the match engine", zap.Error(err))
	}

	results, err := engine.Match(ctx, docs.Items, job, opts)
	if err != nil {
		logger.Fatal("matching documents", zap.Error(err))
	}

	session := &matchSession{
		cfg:       config,
		logger:    logger,
		providers: p,
		docs:      docs,
		results:   results,
		format:    format,
		out:       os.Stdout,
	}
	session.readQuestion = promptQuestion
	session.disabled, _ = cmd.Flags().GetStringSlice("disable-filter")

	action := PromptReport
	if shortlist, _ := cmd.Flags().GetBool("shortlist"); shortlist {
		action = PromptShortlist
	}

	if err := session.handleAction(ctx, action); err != nil {
		logger.Fatal("exiting", zap.Error(err))
	}

	if noPrompt, _ := cmd.Flags().GetBool("no-prompt"); noPrompt {
		return
	}

	for {
		items := []string{PromptReport, PromptShortlist, PromptAsk, PromptResultsToFile}
		if strings.TrimSpace(config.Shortlist.ExcludeFile) != "" {
			items = append(items, PromptAppendToExcludeFile)
		}

		prompt := promptui.Select{
			Label: "What next?",
			Items: append(items, PromptExit),
		}

		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := session.handleAction(ctx, action); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func (s *matchSession) handleAction(ctx context.Context, action string) error {
	switch action {
	case PromptReport:
		return report.Write(s.out, s.format, report.Rows(s.results))
	case PromptShortlist:
		shortlist, err := s.shortlist(ctx)
		if err != nil {
			return err
		}
		s.logger.Info("current shortlist", zap.Int("count", shortlist.Len()))
		return report.Write(s.out, s.format, report.Rows(shortlist.Items))
	case PromptAsk:
		return s.ask(ctx)
	case PromptResultsToFile:
		filename, err := report.DumpToTmpFile(report.Rows(s.results))
		if err != nil {
			return fmt.Errorf("dump results to file: %w", err)
		}
		s.logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	case PromptAppendToExcludeFile:
		return s.appendToExcludeFile(ctx)
	case PromptExit:
		s.logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func (s *matchSession) shortlist(ctx context.Context) (*filtering.Shortlist, error) {
	steps := filtering.Default()
	for _, name := range s.disabled {
		filtering.DisableByName(steps, name, "disabled by flag")
	}

	for _, status := range filtering.Describe(steps) {
		s.logger.Debug("shortlist filter",
			zap.String("name", status.Name),
			zap.Bool("enabled", status.Enabled),
			zap.String("reason", status.Reason),
			zap.Any("details", status.Details),
		)
	}

	return filtering.Run(ctx, &s.cfg.Shortlist, filtering.Deps{Logger: s.logger}, steps, filtering.NewShortlist(s.results))
}

func (s *matchSession) appendToExcludeFile(ctx context.Context) error {
	shortlist, err := s.shortlist(ctx)
	if err != nil {
		return err
	}

	path := s.cfg.Shortlist.ExcludeFile
	excluded, err := filtering.LoadExcluded(path)
	if err != nil {
		return fmt.Errorf("reading exclude file: %w", err)
	}

	excluded.Append(shortlist.ToExcluded())
	if err := excluded.ToFile(path); err != nil {
		return fmt.Errorf("writing exclude file: %w", err)
	}

	s.logger.Info("appended to exclude file", zap.String("filename", path), zap.Int("documents", shortlist.Len()))
	return nil
}

// ask answers one question. An interrupted prompt or an empty question
// returns to the menu.
func (s *matchSession) ask(ctx context.Context) error {
	question, err := s.readQuestion()
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		s.logger.Warn("question cancelled", zap.Error(err))
		return nil
	}
	if err != nil {
		return err
	}

	engine, err := s.providers.retrievalEngine(ctx)
	if err != nil {
		return fmt.Errorf("building the retrieval engine: %w", err)
	}

	res, err := engine.Answer(ctx, s.docs.Items, question, 0)
	if errors.Is(err, retrieval.ErrEmptyQuery) {
		s.logger.Warn("question skipped", zap.Error(err))
		return nil
	}
	if err != nil {
		return fmt.Errorf("answering: %w", err)
	}

	return report.WriteAnswer(s.out, s.format, res)
}

func promptQuestion() (string, error) {
	prompt := promptui.Prompt{Label: "Question"}
	return prompt.Run()
}

// readJob returns the job description from text or a file. Exactly one of
// them must be set.
func readJob(ctx context.Context, text, path string, logger *zap.Logger) (string, error) {
	text = strings.TrimSpace(text)
	path = strings.TrimSpace(path)

	switch {
	case text != "" && path != "":
		return "", errors.New("use either --job or --job-file, not both")
	case text != "":
		return text, nil
	case path == "":
		return "", errors.New("a job description is required (--job or --job-file)")
	}

	docs, err := document.Load(ctx, []string{path}, logger)
	if err != nil {
		return "", err
	}
	if !docs.Items[0].HasText() {
		return "", fmt.Errorf("job file %s: %w", path, document.ErrExtractionEmpty)
	}
	return docs.Items[0].Text, nil
}
