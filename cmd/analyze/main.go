// Command analyze runs one or more photos through the vision analyzer and
// prints the risk report, without starting the bot or the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/raine/survival-bro/internal/config"
	"github.com/raine/survival-bro/internal/llm"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	provider := flag.String("provider", "gemini", "vision provider: gemini, openai or both")
	verbose := flag.Bool("v", false, "log llm calls")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-provider gemini|openai|both] <image-path>...\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment variables:\n")
		fmt.Fprintf(os.Stderr, "  GEMINI_API_KEY - Required for Gemini\n")
		fmt.Fprintf(os.Stderr, "  OPENAI_API_KEY - Required for OpenAI\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if !*verbose {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}
	config.LoadEnvFile()

	var analyzers []llm.Analyzer
	switch *provider {
	case config.ProviderGemini:
		analyzers = append(analyzers, llm.NewGeminiAnalyzer(llm.WithGeminiModel(os.Getenv("GEMINI_MODEL"))))
	case config.ProviderOpenAI:
		analyzers = append(analyzers, newOpenAI())
	case "both":
		analyzers = append(analyzers, llm.NewGeminiAnalyzer(llm.WithGeminiModel(os.Getenv("GEMINI_MODEL"))), newOpenAI())
	default:
		fmt.Fprintf(os.Stderr, "Unknown provider: %s (use gemini, openai, or both)\n", *provider)
		os.Exit(1)
	}

	ctx := context.Background()
	exitCode := 0

	for i, path := range flag.Args() {
		if i > 0 {
			fmt.Println("\n" + strings.Repeat("=", 50) + "\n")
		}
		fmt.Printf("%s\n\n", path)

		imageData, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read image: %v\n", err)
			exitCode = 1
			continue
		}
		encoded := llm.EncodeDataURL(imageData, http.DetectContentType(imageData))

		for j, analyzer := range analyzers {
			if j > 0 {
				fmt.Println("\n" + strings.Repeat("-", 50) + "\n")
			}
			fmt.Printf("=== %s ===\n", strings.ToUpper(llm.ModelName(analyzer)))

			result, err := analyzer.Analyze(ctx, encoded)
			if err != nil {
				fmt.Printf("Error analyzing image (%s): %v\n", llm.ErrorKind(err), err)
				if llm.ErrorKind(err) == llm.KindConfiguration {
					os.Exit(2)
				}
				exitCode = 1
				continue
			}
			printResult(result)
		}
	}

	os.Exit(exitCode)
}

func newOpenAI() llm.Analyzer {
	return llm.NewOpenAIAnalyzer(
		llm.WithOpenAIModel(os.Getenv("OPENAI_MODEL")),
		llm.WithOpenAIBaseURL(os.Getenv("OPENAI_BASE_URL")),
	)
}

func printResult(result *llm.AnalysisResult) {
	fmt.Printf("Risk:    %s\n", result.RiskLevel)
	fmt.Printf("Summary: %s\n", result.Summary)
	fmt.Printf("Action:  %s\n", result.ActionNeeded)
	printList("Risk spots", result.RiskSpots)
	printList("Scripts", result.Scripts)
	printList("Excuses", result.Excuses)
}

func printList(title string, items []string) {
	fmt.Printf("\n%s:\n", title)
	for _, item := range items {
		fmt.Printf("  - %s\n", item)
	}
}
