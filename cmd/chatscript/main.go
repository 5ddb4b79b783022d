// Command chatscript is the chatscript engine CLI.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/tokenring-ai/chatscript/pkg/chatscript"
)

func main() {
	var (
		evalStr    = flag.String("e", "", "Evaluate chatscript string")
		file       = flag.String("f", "", "Execute chatscript file")
		dbPath     = flag.String("db", "", "SQLite script store path")
		configPath = flag.String("config", "chatscript.yaml", "YAML config file path")
		providerF  = flag.String("provider", "", "LLM provider: anthropic, ollama, openrouter, or none")
		model      = flag.String("model", "", "LLM model name")
		ollamaURL  = flag.String("ollama", "", "Ollama API URL")
		noLLM      = flag.Bool("no-llm", false, "Disable LLM functions")
		runName    = flag.String("run", "", "Run a stored script by name")
		input      = flag.String("input", "", "Input bound as $input for -run")
	)

	flag.Parse()

	explicitConfig := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicitConfig = true
		}
	})

	cfg, err := loadConfig(*configPath, explicitConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *providerF == "" {
		*providerF = cfg.Provider
	}
	if *model == "" {
		*model = cfg.Model
	}
	if *ollamaURL == "" {
		*ollamaURL = cfg.OllamaURL
	}
	if *dbPath == "" {
		*dbPath = cfg.DB
	}
	timeout := 5 * time.Minute
	if cfg.TimeoutMS > 0 {
		timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	}

	opts := []chatscript.Option{}

	if *dbPath != "" {
		opts = append(opts, chatscript.WithSQLiteStore(*dbPath))
	}

	if !*noLLM {
		switch *providerF {
		case "anthropic":
			opts = append(opts, chatscript.WithAnthropic(*model, timeout))
		case "ollama", "":
			opts = append(opts, chatscript.WithOllama(*ollamaURL, *model, timeout))
		case "openrouter":
			opts = append(opts, chatscript.WithOpenRouter(*model, timeout))
		case "none":
		default:
			fmt.Fprintf(os.Stderr, "Unknown provider: %s\n", *providerF)
			os.Exit(1)
		}
	}

	// Create the stdin reader once so buffered bytes survive across
	// /prompt and /confirm calls.
	stdinReader := bufio.NewReader(os.Stdin)
	opts = append(opts, chatscript.WithHumanInputFuncs(
		func(ctx context.Context, message string) (string, error) {
			if message != "" {
				fmt.Print(message + " ")
			}
			line, err := stdinReader.ReadString('\n')
			if err != nil {
				return "", err
			}
			return strings.TrimRight(line, "\r\n"), nil
		},
		func(ctx context.Context, message string) (bool, error) {
			fmt.Print(message + " [y/N] ")
			line, err := stdinReader.ReadString('\n')
			if err != nil {
				return false, err
			}
			answer := strings.ToLower(strings.TrimSpace(line))
			return answer == "y" || answer == "yes", nil
		},
	))

	runtime, err := chatscript.New(opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer runtime.Close()

	// Ctrl+C cancels the in-flight run at its next suspension point.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var result string

	switch {
	case *runName != "":
		result, err = runtime.Run(ctx, *runName, *input)

	case *evalStr != "":
		result, err = runtime.Eval(ctx, *evalStr)

	case *file != "":
		result, err = runtime.EvalFile(ctx, *file)

	case !term.IsTerminal(int(os.Stdin.Fd())):
		var src []byte
		src, err = io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading stdin: %v\n", err)
			os.Exit(1)
		}
		result, err = runtime.Eval(ctx, string(src))

	default:
		runREPL(ctx, runtime)
		return
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if result != "" {
		fmt.Println(result)
	}
}
