package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/term"

	"metagent/pkg/analyzer"
	"metagent/pkg/automation"
	"metagent/pkg/chat"
	"metagent/pkg/config"
	"metagent/pkg/conversation"
	"metagent/pkg/eventlog"
	"metagent/pkg/generation"
	"metagent/pkg/llm"
	"metagent/pkg/logx"
	"metagent/pkg/metrics"
	"metagent/pkg/pageintel"
	"metagent/pkg/persistence"
	"metagent/pkg/project"
	"metagent/pkg/utils"
)

// Version information - set by goreleaser via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// localUserID identifies the single console user.
const localUserID int64 = 1

func main() {
	var (
		configPath  = flag.String("config", "", "Path to JSON config file")
		workDir     = flag.String("workdir", "", "Working directory for generated scrapers (overrides config)")
		debug       = flag.Bool("debug", false, "Enable debug logging")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("metagent %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
		os.Exit(0)
	}

	logx.SetDebug(*debug, nil)

	os.Exit(run(*configPath, *workDir))
}

// run contains the main application logic and returns an exit code, so
// defers execute before the process exits.
func run(configPath, workDir string) int {
	logger := logx.NewLogger("main")

	if err := config.LoadConfig(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get config: %v\n", err)
		return 1
	}
	if workDir != "" {
		cfg.Automation.WorkDir = workDir
	}

	if err := handleSecretsDecryption("."); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to handle secrets: %v\n", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	controller, cleanup, err := buildController(&cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		return 1
	}
	defer cleanup()

	if cfg.Metrics.Enabled {
		startMetricsServer(cfg.Metrics.ListenAddr, logger)
	}

	logger.Info("metagent %s ready (provider=%s, tool=%s, workdir=%s)",
		version, cfg.LLM.Provider, cfg.Automation.Binary, cfg.Automation.WorkDir)

	if err := consoleLoop(ctx, controller); err != nil {
		fmt.Fprintf(os.Stderr, "metagent failed: %v\n", err)
		return 1
	}
	return 0
}

// buildController wires the full pipeline from configuration. The returned
// cleanup closes everything that holds a file handle.
func buildController(cfg *config.Config) (*conversation.Controller, func(), error) {
	client, err := llm.NewClientFromConfig(cfg.LLM)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	profile, err := buildProfile(cfg.Automation)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build tool profile: %w", err)
	}

	events, err := eventlog.NewWriter(cfg.EventLog.Dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open event log: %w", err)
	}

	var records *persistence.Store
	if cfg.Records.Enabled {
		records, err = persistence.Open(cfg.Records.DBPath)
		if err != nil {
			_ = events.Close()
			return nil, nil, fmt.Errorf("failed to open records database: %w", err)
		}
	}

	var recorder metrics.Recorder = metrics.Nop()
	if cfg.Metrics.Enabled {
		recorder = metrics.NewPrometheusRecorder()
	}

	var stats *metrics.QueryService
	if cfg.Metrics.PrometheusURL != "" {
		stats, err = metrics.NewQueryService(cfg.Metrics.PrometheusURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create metrics query service: %w", err)
		}
	}

	counter, err := utils.NewTokenCounter(cfg.LLM.Model)
	if err != nil {
		// Token capping degrades to entry-count capping alone.
		counter = nil
	}

	transport := chat.NewConsoleTransport()
	factory := func(sink automation.ProgressSink) *automation.Driver {
		return automation.NewDriver(profile, cfg.Automation.WorkDir, sink, events)
	}

	controller := conversation.NewController(conversation.Deps{
		Store:     project.NewStore(),
		Analyzer:  analyzer.New(client, counter, cfg.Analyzer),
		Pages:     pageintel.NewCache(pageintel.NewLLMAnalyzer(client)),
		Generator: generation.NewOrchestrator(factory, cfg.Automation.WorkDir, transport, cfg.Generation),
		Transport: transport,
		Config:    cfg.Analyzer,
		Recorder:  recorder,
		Records:   records,
		Stats:     stats,
	})

	cleanup := func() {
		_ = events.Close()
		if records != nil {
			_ = records.Close()
		}
	}
	return controller, cleanup, nil
}

func buildProfile(auto *config.AutomationConfig) (*automation.ToolProfile, error) {
	if auto.ProfilePath != "" {
		return automation.LoadProfile(auto.ProfilePath)
	}
	return automation.ProfileFromConfig(auto)
}

// handleSecretsDecryption loads API keys from the encrypted secrets file if
// one exists. Keys from the environment still take effect when it doesn't.
func handleSecretsDecryption(projectDir string) error {
	if !config.SecretsFileExists(projectDir) {
		return nil
	}

	fmt.Print("Secrets file found. Enter password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	secrets, err := config.DecryptSecretsFile(projectDir, string(password))
	if err != nil {
		return fmt.Errorf("failed to decrypt secrets: %w", err)
	}
	config.SetDecryptedSecrets(secrets)
	return nil
}

func startMetricsServer(addr string, logger *logx.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics endpoint listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed: %v", err)
		}
	}()
}

// consoleLoop is the local chat front end: each stdin line is one turn.
// Slash commands dispatch to the command handler, "confirm" stands in for
// the inline confirmation button, and everything else is a message.
func consoleLoop(ctx context.Context, controller *conversation.Controller) error {
	fmt.Println("Type your message (/help for commands, \"confirm\" to approve a summary, ctrl-d to quit).")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lines := make(chan string)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nShutting down.")
			return nil
		case line, ok := <-lines:
			if !ok {
				return scanner.Err()
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			var err error
			switch {
			case strings.HasPrefix(line, "/"):
				err = controller.HandleCommand(ctx, localUserID, line)
			case strings.EqualFold(line, "confirm") || strings.EqualFold(line, "yes"):
				err = controller.Confirm(ctx, localUserID, "")
			default:
				err = controller.HandleMessage(ctx, localUserID, line)
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "turn failed: %v\n", err)
			}
		}
	}
}
