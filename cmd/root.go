package cmd

import (
	"errors"
	"io/fs"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/cv-matcher/internal/chunker"
	"github.com/spigell/cv-matcher/internal/filtering"
	"github.com/spigell/cv-matcher/internal/keywords"
	"github.com/spigell/cv-matcher/internal/matching"
	"github.com/spigell/cv-matcher/internal/retrieval"
	"github.com/spigell/cv-matcher/internal/scorer"
)

const (
	app       = "cv-matcher"
	envPrefix = "CV_MATCHER"
)

type Config struct {
	Chunking    ChunkingConfig   `mapstructure:"chunking"`
	Keywords    KeywordsConfig   `mapstructure:"keywords"`
	Scoring     ScoringConfig    `mapstructure:"scoring"`
	Retrieval   retrieval.Config `mapstructure:"retrieval"`
	Concurrency int              `mapstructure:"concurrency"`
	AI          AIConfig         `mapstructure:"ai"`
	Shortlist   filtering.Config `mapstructure:"shortlist"`
}

type ChunkingConfig struct {
	MaxSize int     `mapstructure:"max-size"`
	Overlap float64 `mapstructure:"overlap"`
}

type KeywordsConfig struct {
	TopK           int      `mapstructure:"top-k"`
	MinLength      int      `mapstructure:"min-length"`
	Stopwords      []string `mapstructure:"stopwords"`
	ExtraStopwords []string `mapstructure:"extra-stopwords"`
}

type ScoringConfig struct {
	Semantic  bool    `mapstructure:"semantic"`
	Lo        float64 `mapstructure:"lo"`
	Hi        float64 `mapstructure:"hi"`
	MaxWeight float64 `mapstructure:"max-weight"`
}

type AIConfig struct {
	// Provider embeds text: hashing, gemini or openai.
	Provider string `mapstructure:"provider"`
	// LLM generates text for summaries and assessments: gemini or openai.
	LLM string `mapstructure:"llm"`
	// Summarizer is extractive or llm.
	Summarizer    string        `mapstructure:"summarizer"`
	Assess        bool          `mapstructure:"assess"`
	MaxInputChars int           `mapstructure:"max-input-chars"`
	MaxLogLength  int           `mapstructure:"max-log-length"`
	Gemini        GeminiConfig  `mapstructure:"gemini"`
	OpenAI        OpenAIConfig  `mapstructure:"openai"`
	Hashing       HashingConfig `mapstructure:"hashing"`
}

type GeminiConfig struct {
	APIKey         string `mapstructure:"api-key"`
	APIKeyFile     string `mapstructure:"api-key-file"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding-model"`
	MaxRetries     int    `mapstructure:"max-retries"`
}

type OpenAIConfig struct {
	APIKey         string `mapstructure:"api-key"`
	APIKeyFile     string `mapstructure:"api-key-file"`
	BaseURL        string `mapstructure:"base-url"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding-model"`
}

type HashingConfig struct {
	Dimensions int `mapstructure:"dimensions"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "cv-matcher scores CVs against a job description and answers questions about them",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is cv-matcher.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("chunking.max-size", chunker.DefaultMaxSize)
	v.SetDefault("chunking.overlap", chunker.DefaultOverlapFraction)

	v.SetDefault("keywords.top-k", matching.DefaultTopK)
	v.SetDefault("keywords.min-length", 2)
	v.SetDefault("keywords.stopwords", []string{keywords.English, keywords.Russian, keywords.German})
	v.SetDefault("keywords.extra-stopwords", []string{})

	v.SetDefault("scoring.semantic", true)
	v.SetDefault("scoring.lo", scorer.DefaultLo)
	v.SetDefault("scoring.hi", scorer.DefaultHi)
	v.SetDefault("scoring.max-weight", scorer.DefaultMaxWeight)

	v.SetDefault("retrieval.k", retrieval.DefaultK)
	v.SetDefault("retrieval.min-similarity", retrieval.DefaultMinSimilarity)
	v.SetDefault("retrieval.max-context-chars", retrieval.DefaultMaxContextChars)

	v.SetDefault("concurrency", 4)

	v.SetDefault("ai.provider", "hashing")
	v.SetDefault("ai.llm", "gemini")
	v.SetDefault("ai.summarizer", "extractive")
	v.SetDefault("ai.assess", false)
	v.SetDefault("ai.max-input-chars", 12000)
	v.SetDefault("ai.max-log-length", 200)
	v.SetDefault("ai.gemini.api-key", "")
	v.SetDefault("ai.gemini.api-key-file", "")
	v.SetDefault("ai.gemini.model", "")
	v.SetDefault("ai.gemini.embedding-model", "")
	v.SetDefault("ai.gemini.max-retries", 3)
	v.SetDefault("ai.openai.api-key", "")
	v.SetDefault("ai.openai.api-key-file", "")
	v.SetDefault("ai.openai.base-url", "")
	v.SetDefault("ai.openai.model", "")
	v.SetDefault("ai.openai.embedding-model", "")
	v.SetDefault("ai.hashing.dimensions", 512)

	v.SetDefault("shortlist.minimum-score", 0)
	v.SetDefault("shortlist.exclude-file", "")
	v.SetDefault("shortlist.top", 0)
}

func initConfig() {
	// A local .env may carry api keys; it is optional.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env file: %v", err)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// Without an explicit --config the file is optional.
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	return decodeConfig(viper.GetViper())
}

func decodeConfig(v *viper.Viper) (*Config, error) {
	var config *Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if config == nil {
		return nil, errors.New("config is empty")
	}

	if config.Retrieval.Concurrency == 0 {
		config.Retrieval.Concurrency = config.Concurrency
	}

	return config, nil
}
