package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/cv-matcher/internal/document"
	"github.com/spigell/cv-matcher/internal/logger"
	"github.com/spigell/cv-matcher/internal/report"
)

var askCmd = &cobra.Command{
	Use:   "ask [files...]",
	Short: "Answer a question using the content of the documents",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runAsk(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringP("question", "q", "", "the question to answer")
	askCmd.Flags().Int("k", 0, "number of passages to retrieve (default from config)")
	askCmd.Flags().StringP("output", "o", "table", "output format: table, json or yaml")
	askCmd.Flags().StringSliceP("document", "D", nil, "ask only these documents (ids are file names)")

	askCmd.MarkFlagRequired("question")
}

func runAsk(cmd *cobra.Command, args []string) {
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

	format, err := report.ParseFormat(cmd.Flag("output").Value.String())
	if err != nil {
		logger.Fatal("parsing flags", zap.Error(err))
	}

	docs, err := document.Load(ctx, args, logger)
	if err != nil {
		logger.Fatal("loading documents", zap.Error(err))
	}

	if ids, _ := cmd.Flags().GetStringSlice("document"); len(ids) > 0 {
		if docs, err = docs.Select(ids); err != nil {
			logger.Fatal("selecting documents", zap.Error(err))
		}
	}

	p, err := newProviders(config, logger)
	if err != nil {
		logger.Fatal("building providers", zap.Error(err))
	}

	engine, err := p.retrievalEngine(ctx)
	if err != nil {
		logger.Fatal("building the retrieval engine", zap.Error(err))
	}

	k, _ := cmd.Flags().GetInt("k")
	question, _ := cmd.Flags().GetString("question")

	res, err := engine.Answer(ctx, docs.Items, question, k)
	if err != nil {
		logger.Fatal("answering", zap.Error(err))
	}

	if err := report.WriteAnswer(os.Stdout, format, res); err != nil {
		logger.Fatal("writing the answer", zap.Error(err))
	}
}
