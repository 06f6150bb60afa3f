package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/justyntemme/readium-t/internal/api"
	"github.com/justyntemme/readium-t/internal/config"
	"github.com/justyntemme/readium-t/internal/logging"
	"github.com/justyntemme/readium-t/internal/reader"
	"github.com/justyntemme/readium-t/internal/reader/annotations"
	"github.com/justyntemme/readium-t/internal/reader/engine/pdfengine"
	"github.com/justyntemme/readium-t/internal/reader/progress"
	"github.com/justyntemme/readium-t/internal/reader/schedule"
	"github.com/justyntemme/readium-t/internal/reader/textlayer"
	"github.com/justyntemme/readium-t/internal/translate"
	"github.com/justyntemme/readium-t/internal/ui"
)

// flushTimeout bounds the final progress write after the TUI exits
const flushTimeout = 5 * time.Second

func main() {
	// Define flags
	uploadFiles := flag.String("upload", "", "Upload PDF file(s) to the server (comma-separated or glob pattern)")
	flag.StringVar(uploadFiles, "u", "", "Upload PDF file(s) (shorthand)")
	serverURL := flag.String("url", "", "Server URL (e.g., http://myserver:8080)")
	flag.StringVar(serverURL, "s", "", "Server URL (shorthand)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error or silent")
	showHelp := flag.Bool("help", false, "Show help message")
	flag.BoolVar(showHelp, "h", false, "Show help (shorthand)")
	debug := flag.Bool("debug", false, "Show debug information")

	flag.Parse()

	if *showHelp {
		printUsage()
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Override server URL if provided via flag
	if *serverURL != "" {
		cfg.ServerURL = *serverURL
		// Save to config for future use
		if err := cfg.Save(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not save server URL to config: %v\n", err)
		}
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	// Debug mode
	if *debug {
		fmt.Printf("Config dir: %s\n", filepath.Dir(cfg.LogPath()))
		fmt.Printf("Log file: %s\n", cfg.LogPath())
		fmt.Printf("Server URL: %s\n", cfg.ServerURL)
		fmt.Printf("Translation: %s", cfg.TranslationProvider)
		if cfg.TranslationProvider == config.ProviderOllama {
			fmt.Printf(" (%s at %s)", cfg.OllamaModel, cfg.OllamaHost)
		}
		fmt.Println()
		fmt.Printf("Target language: %s\n", cfg.TargetLanguage)
		fmt.Printf("Recently read: %d book(s)\n", len(cfg.RecentlyRead))
		os.Exit(0)
	}

	logFile, err := logging.OpenFile(cfg.LogPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not open log file: %v\n", err)
	} else {
		defer logFile.Close()
		if err := logging.Setup(cfg.LogLevel, logFile); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	client := api.NewClient(cfg.ServerURL)

	// Handle upload mode
	if *uploadFiles != "" {
		if err := handleUpload(client, *uploadFiles); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Also check for positional arguments (files to upload)
	if flag.NArg() > 0 {
		files := strings.Join(flag.Args(), ",")
		if err := handleUpload(client, files); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	svc, err := buildServices(cfg, client)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Run TUI mode
	app := ui.NewApp(cfg, client, svc)
	p := tea.NewProgram(app,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithReportFocus(),
	)
	_, runErr := p.Run()

	app.Close()
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	if err := svc.Progress.Wait(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: reading progress may not be saved: %v\n", err)
	}
	cancel()

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", runErr)
		os.Exit(1)
	}
}

// buildServices assembles the components shared by every opened book
func buildServices(cfg *config.Config, client *api.Client) (reader.Services, error) {
	translator, err := translate.New(cfg, client)
	if err != nil {
		return reader.Services{}, fmt.Errorf("translation provider: %w", err)
	}
	sched := schedule.Real{}

	return reader.Services{
		Files:          client,
		Opener:         pdfengine.New(),
		Annotations:    annotations.NewStore(client),
		Syncer:         annotations.NewSyncer(),
		Translations:   client,
		Translator:     translator,
		Progress:       progress.New(client, sched, nil),
		Analyzer:       textlayer.NewAnalyzer(),
		Hint:           textlayer.NewHint(),
		Scheduler:      sched,
		TargetLanguage: cfg.TargetLanguage,
		Clipboard:      clipboard.WriteAll,
		Narrow:         func() bool { return cfg.NarrowViewport },
	}, nil
}

func printUsage() {
	fmt.Println("readium-t - Terminal PDF reader with annotations and translations")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  readium-t                     Start the TUI application")
	fmt.Println("  readium-t [files...]          Upload PDF files to server")
	fmt.Println("  readium-t -u <files>          Upload PDF files (comma-separated)")
	fmt.Println("  readium-t -u '*.pdf'          Upload files matching glob pattern")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -s, --url <url>        Set server URL (saved to config)")
	fmt.Println("  -u, --upload <files>   Upload PDF file(s) to the server")
	fmt.Println("  --log-level <level>    Log level for this run")
	fmt.Println("  --debug                Print configuration and exit")
	fmt.Println("  -h, --help             Show this help message")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  readium-t --url http://myserver:8080")
	fmt.Println("  readium-t paper.pdf")
	fmt.Println("  readium-t -u 'papers/*.pdf'")
	fmt.Println()
	fmt.Printf("Environment: %s overrides the log level\n", logging.EnvLevel)
}

// expandFiles resolves comma-separated paths and glob patterns to PDF files
func expandFiles(filesArg string) ([]string, error) {
	var files []string
	for _, pattern := range strings.Split(filesArg, ",") {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}

		// Try glob expansion
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}

		if len(matches) == 0 {
			// Check if it's a direct file path
			if _, err := os.Stat(pattern); err == nil {
				files = append(files, pattern)
			} else {
				return nil, fmt.Errorf("no files found matching %q", pattern)
			}
		} else {
			files = append(files, matches...)
		}
	}

	var pdfs []string
	for _, f := range files {
		if strings.EqualFold(filepath.Ext(f), ".pdf") {
			pdfs = append(pdfs, f)
		}
	}
	if len(pdfs) == 0 {
		return nil, fmt.Errorf("no PDF files found")
	}
	return pdfs, nil
}

func handleUpload(client *api.Client, filesArg string) error {
	files, err := expandFiles(filesArg)
	if err != nil {
		return err
	}

	fmt.Printf("Uploading %d file(s) to %s...\n", len(files), client.BaseURL())

	successCount := 0
	for _, filePath := range files {
		size := "?"
		if info, err := os.Stat(filePath); err == nil {
			size = humanize.Bytes(uint64(info.Size()))
		}
		fmt.Printf("  Uploading %s (%s)... ", filepath.Base(filePath), size)

		last := -1
		book, err := client.UploadBook(context.Background(), filePath, func(percent int) {
			if percent/25 != last/25 {
				last = percent
				fmt.Printf("%d%% ", percent)
			}
		})
		if err != nil {
			fmt.Printf("FAILED: %v\n", err)
			continue
		}

		fmt.Printf("OK\n")
		fmt.Printf("    Title: %s\n", book.Title)
		fmt.Printf("    Author: %s\n", book.AuthorName())
		if book.Pages != nil {
			fmt.Printf("    Pages: %s\n", humanize.Comma(int64(*book.Pages)))
		}
		successCount++
	}

	fmt.Printf("\nUploaded %d/%d files successfully.\n", successCount, len(files))

	if successCount < len(files) {
		return fmt.Errorf("some uploads failed")
	}

	return nil
}
