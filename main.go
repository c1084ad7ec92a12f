package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"scribe/app"
	"scribe/audio"
	"scribe/settings"
	"scribe/speech"
	"scribe/store"
)

var logger *log.Logger

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(patientsCmd)
	rootCmd.AddCommand(resetCmd)

	rootCmd.PersistentFlags().
		String("data-dir", "", "Directory for stored documents (default ~/.scribe)")
	rootCmd.PersistentFlags().
		String("store", "file", "Document store backend: file or sqlite")
	rootCmd.PersistentFlags().
		String("speech-key", "", "Azure Speech subscription key")
	rootCmd.PersistentFlags().
		String("speech-region", "", "Azure Speech region, e.g. eastus")
	rootCmd.PersistentFlags().
		String("openai-endpoint", "", "Azure OpenAI endpoint URL")
	rootCmd.PersistentFlags().String("openai-key", "", "Azure OpenAI API key")
	rootCmd.PersistentFlags().
		String("openai-deployment", "", "Azure OpenAI deployment name")
	rootCmd.PersistentFlags().
		String("openai-api-version", "2024-02-15-preview", "Azure OpenAI API version")
	rootCmd.PersistentFlags().
		String("recognizer", "azure", "Speech backend: azure or deepgram")
	rootCmd.PersistentFlags().
		String("mic-device", "default", "Capture device passed to ffmpeg")

	viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	viper.BindPFlag("store", rootCmd.PersistentFlags().Lookup("store"))
	viper.BindPFlag(
		"speech_key",
		rootCmd.PersistentFlags().Lookup("speech-key"),
	)
	viper.BindPFlag(
		"speech_region",
		rootCmd.PersistentFlags().Lookup("speech-region"),
	)
	viper.BindPFlag(
		"openai_endpoint",
		rootCmd.PersistentFlags().Lookup("openai-endpoint"),
	)
	viper.BindPFlag(
		"openai_key",
		rootCmd.PersistentFlags().Lookup("openai-key"),
	)
	viper.BindPFlag(
		"openai_deployment",
		rootCmd.PersistentFlags().Lookup("openai-deployment"),
	)
	viper.BindPFlag(
		"openai_api_version",
		rootCmd.PersistentFlags().Lookup("openai-api-version"),
	)
	viper.BindPFlag(
		"recognizer",
		rootCmd.PersistentFlags().Lookup("recognizer"),
	)
	viper.BindPFlag(
		"mic_device",
		rootCmd.PersistentFlags().Lookup("mic-device"),
	)
}

func initConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Missing config file is fine; flags and env cover everything.
	_ = viper.ReadInConfig()

	logger = log.New(os.Stderr)
}

var rootCmd = &cobra.Command{
	Use:   "scribe",
	Short: "Scribe turns clinician dictation into structured medical notes",
	Long:  `Scribe records clinician dictation, transcribes it continuously, and generates structured medical notes with an LLM. Notes are saved per patient as visit records.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func createLogger() *log.Logger {
	logger.SetLevel(log.DebugLevel)

	styles := log.DefaultStyles()
	styles.Prefix = styles.Prefix.Bold(false).
		Transform(func(s string) string {
			return strings.TrimSuffix(s, ":")
		})
	styles.Levels[log.InfoLevel] = styles.Levels[log.InfoLevel].
		MaxWidth(6).
		MarginRight(1).
		Bold(false)
	styles.Levels[log.ErrorLevel] = styles.Levels[log.ErrorLevel].
		MaxWidth(6).
		MarginRight(1).
		Bold(false)
	styles.Key = styles.Key.MarginLeft(1).
		Bold(false).
		Foreground(lipgloss.Color("#ff8800"))
	logger.SetStyles(styles)

	return logger
}

func dataDir() (string, error) {
	if dir := viper.GetString("data_dir"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".scribe"), nil
}

// openDocs builds the configured document store, wrapped so a broken
// backend degrades to in-memory instead of blocking the session.
func openDocs(mainLogger *log.Logger) (store.Store, error) {
	dir, err := dataDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	var backend store.Store
	switch viper.GetString("store") {
	case "sqlite":
		backend, err = store.NewSQLiteStore(filepath.Join(dir, "scribe.db"))
	case "file", "":
		backend, err = store.NewFileStore(dir)
	default:
		return nil, fmt.Errorf(
			"unknown store backend %q (want file or sqlite)",
			viper.GetString("store"),
		)
	}
	if err != nil {
		return nil, err
	}
	return store.NewFallback(backend, mainLogger), nil
}

func flagSettings() settings.API {
	return settings.API{
		SpeechKey:        viper.GetString("speech_key"),
		SpeechRegion:     viper.GetString("speech_region"),
		OpenAIEndpoint:   viper.GetString("openai_endpoint"),
		OpenAIKey:        viper.GetString("openai_key"),
		OpenAIDeployment: viper.GetString("openai_deployment"),
		OpenAIAPIVersion: viper.GetString("openai_api_version"),
		Recognizer:       viper.GetString("recognizer"),
	}
}

func captureConfig() audio.Config {
	return audio.Config{InputDevice: viper.GetString("mic_device")}
}

// engineFor maps a recognizer name to its backend. Consulted at every
// recording start so a saved settings change takes effect on the next
// session.
func engineFor(engineLogger *log.Logger) func(recognizer string) speech.Engine {
	azure := speech.NewAzureEngine(engineLogger)
	deepgram := speech.NewDeepgramEngine(engineLogger)
	return func(recognizer string) speech.Engine {
		if recognizer == "" {
			recognizer = viper.GetString("recognizer")
		}
		if recognizer == "deepgram" {
			return deepgram
		}
		return azure
	}
}

// newApp assembles the full application. Settings stored in the
// document store win; flags and environment seed the store on first
// run so a fresh install works without touching the settings form.
func newApp() (*app.App, error) {
	mainLogger := createLogger().With().WithPrefix("main")

	docs, err := openDocs(mainLogger.With().WithPrefix("data"))
	if err != nil {
		return nil, err
	}

	prefs, err := settings.NewStore(docs)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	api := prefs.API()
	if !api.SpeechConfigured() && !api.OpenAIConfigured() {
		if seed := flagSettings(); seed.SpeechConfigured() ||
			seed.OpenAIConfigured() {
			if err := prefs.SaveAPI(seed); err != nil {
				return nil, fmt.Errorf("seed settings: %w", err)
			}
		}
	}

	return app.New(app.Options{
		Logger:        mainLogger,
		Docs:          docs,
		EngineFor:     engineFor(logger.With().WithPrefix("hear")),
		Capture:       audio.NewFFmpegCapture(),
		CaptureConfig: captureConfig(),
	})
}
