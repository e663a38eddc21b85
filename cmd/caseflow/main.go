// Package main is the CaseFlow CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nyaya/caseflow/internal/config"
	"github.com/nyaya/caseflow/internal/diary"
	"github.com/nyaya/caseflow/internal/models"
	"github.com/nyaya/caseflow/internal/ocr"
	"github.com/nyaya/caseflow/internal/parser"
	"github.com/nyaya/caseflow/internal/pipeline"
	"github.com/nyaya/caseflow/internal/report"
	"github.com/nyaya/caseflow/internal/rules"
	"github.com/nyaya/caseflow/internal/search"
	"github.com/nyaya/caseflow/internal/server"
	"github.com/nyaya/caseflow/internal/storage"
	"github.com/nyaya/caseflow/internal/watcher"
	"github.com/nyaya/caseflow/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/caseflow/config.yaml"

// loadConfig loads config from path. When path is the default, the
// CASEFLOW_CONFIG environment variable and then a config.yaml in the current
// directory take precedence (for development), so running from the project
// dir picks up the project config.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if override := utils.FirstNonEmpty(os.Getenv("CASEFLOW_CONFIG"), cwdConfigPath()); override != "" {
			cfg, loadErr := config.Load(override)
			if loadErr != nil {
				return nil, "", loadErr
			}
			return cfg, override, nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// cwdConfigPath returns the config.yaml in the current directory, or "" when
// there is none.
func cwdConfigPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	candidate := filepath.Join(cwd, "config.yaml")
	if _, err := os.Stat(candidate); err != nil {
		return ""
	}
	return candidate
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "run":
		runPipeline()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("caseflow version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var watchSvc *watcher.Watcher
	if cfg.Watch.Enabled {
		watchOpts := []watcher.WatcherOption{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc = watcher.NewWatcher(components.Layout, components.Storage, watchOpts...)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start upload watcher", zap.Error(err))
		}
	}

	srv := server.NewServer(
		components.Storage,
		components.Layout,
		components.Coordinator,
		components.Index,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if watchSvc != nil {
		watchSvc.Stop()
	}
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// runPipeline runs all four stages for a directory of documents without the
// HTTP server: it creates a case, copies the documents into its uploads
// directory, and runs parse, checklist, diary, and report in order.
func runPipeline() {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	name := fs.String("name", "cli case", "case name")
	officerID := fs.String("officer", "cli", "officer id to own the case")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: caseflow run [flags] <documents-directory>")
		os.Exit(1)
	}
	srcDir := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	ctx := context.Background()
	cs := &models.Case{
		ID:        uuid.NewString(),
		OfficerID: *officerID,
		Name:      *name,
		Stage:     models.StageCreated,
		CreatedAt: time.Now().UTC(),
	}
	if err := components.Storage.CreateCase(ctx, cs); err != nil {
		fmt.Printf("Failed to create case: %v\n", err)
		os.Exit(1)
	}
	if err := components.Layout.EnsureCaseDirs(cs.ID); err != nil {
		fmt.Printf("Failed to create case directories: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Case created: %s\n", cs.ID)

	for _, t := range models.AllDocumentTypes {
		src := filepath.Join(srcDir, t.UploadName())
		if _, err := os.Stat(src); err != nil {
			if !t.Required() {
				fmt.Printf("  %s not found, skipping optional document\n", t.UploadName())
				continue
			}
			fmt.Printf("Required document %s not found in %s\n", t.UploadName(), srcDir)
			os.Exit(1)
		}
		if err := copyFile(src, components.Layout.UploadPath(cs.ID, t)); err != nil {
			fmt.Printf("Failed to copy %s: %v\n", t.UploadName(), err)
			os.Exit(1)
		}
		fmt.Printf("  copied %s\n", t.UploadName())
	}

	parseResult, err := components.Coordinator.RunParse(ctx, cs.ID)
	if err != nil {
		fmt.Printf("Parse stage failed: %v\n", err)
		os.Exit(1)
	}
	for _, d := range parseResult.Documents {
		fmt.Printf("  %s: %s\n", d.Type, d.Status)
	}

	checklistResult, err := components.Coordinator.RunChecklist(ctx, cs.ID)
	if err != nil {
		fmt.Printf("Checklist stage failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Checklist generated: %d items\n", len(checklistResult.Items))

	diaryResult, err := components.Coordinator.RunDiary(ctx, cs.ID)
	if err != nil {
		fmt.Printf("Diary stage failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Case diary generated: %d page(s)\n", diaryResult.Pages)

	reportResult, err := components.Coordinator.RunReport(ctx, cs.ID)
	if err != nil {
		fmt.Printf("Report stage failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Report generated: %v\n", reportResult.Artifacts)
	for _, f := range reportResult.Flags {
		fmt.Printf("  flag: %s\n", f)
	}
	fmt.Printf("Outputs under: %s\n", components.Layout.CaseDir(cs.ID))
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage)")
	token := fs.String("token", "", "bearer token for the server API")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status map[string]any
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL, *token)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = res
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewLogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger, cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()
		ctx := context.Background()
		caseCount, err := components.Storage.CountCases(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count cases failed: %v\n", err)
			os.Exit(1)
		}
		itemCount, err := components.Storage.CountChecklistItems(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count checklist items failed: %v\n", err)
			os.Exit(1)
		}
		status = map[string]any{
			"cases":           caseCount,
			"checklist_items": itemCount,
		}
		if diskBytes, err := storage.DiskUsageBytes(cfg.Storage.DatabasePath, cfg.Storage.DataDir, cfg.Storage.SearchIndexPath); err == nil {
			status["disk_usage_bytes"] = diskBytes
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		for _, key := range []string{"cases", "checklist_items", "indexed_artifacts", "disk_usage_bytes"} {
			if v, ok := status[key]; ok {
				fmt.Printf("%-18s %v\n", key+":", v)
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func statusViaHTTP(serverURL, token string) (map[string]any, error) {
	req, err := http.NewRequest(http.MethodGet, serverURL+"/api/v1/status", nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

// Components holds initialized services.
type Components struct {
	Storage     storage.Storage
	Layout      *storage.Layout
	Index       *search.Index
	Coordinator *pipeline.Coordinator
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Index != nil {
		_ = c.Index.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	layout := storage.NewLayout(cfg.Storage.DataDir)

	var index *search.Index
	if cfg.Storage.SearchIndexPath != "" {
		index, err = search.NewIndex(cfg.Storage.SearchIndexPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize search index: %w", err)
		}
	}

	ruleTable, err := rules.LoadRules(cfg.Pipeline.RulesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load sop rules: %w", err)
	}

	debugLogger := func() *zap.Logger {
		if debug {
			return logger
		}
		return nil
	}()

	ocrOpts := []ocr.ClientOption{}
	parserOpts := []parser.ServiceOption{}
	evalOpts := []rules.EvaluatorOption{}
	diaryOpts := []diary.AssemblerOption{}
	reportOpts := []report.CompilerOption{}
	if debugLogger != nil {
		ocrOpts = append(ocrOpts, ocr.WithLogger(debugLogger))
		parserOpts = append(parserOpts, parser.WithLogger(debugLogger))
		evalOpts = append(evalOpts, rules.WithLogger(debugLogger))
		diaryOpts = append(diaryOpts, diary.WithLogger(debugLogger))
		reportOpts = append(reportOpts, report.WithLogger(debugLogger))
	}

	textSource := ocr.NewClient(
		cfg.OCR.Endpoint,
		cfg.OCR.APIKey,
		time.Duration(cfg.OCR.TimeoutSeconds)*time.Second,
		ocrOpts...,
	)
	parseSvc := parser.NewService(layout, textSource, parserOpts...)
	evaluator := rules.NewEvaluator(ruleTable, evalOpts...)
	assembler := diary.NewAssembler(cfg.Pipeline.PageCharLimit, diaryOpts...)
	compiler := report.NewCompiler(reportOpts...)

	coordOpts := []pipeline.CoordinatorOption{pipeline.WithLogger(logger)}
	if index != nil {
		coordOpts = append(coordOpts, pipeline.WithSearchIndex(index))
	}
	coord := pipeline.NewCoordinator(store, layout, parseSvc, evaluator, assembler, compiler, coordOpts...)

	return &Components{
		Storage:     store,
		Layout:      layout,
		Index:       index,
		Coordinator: coord,
	}, nil
}

func printUsage() {
	fmt.Println(`caseflow - Investigation case pipeline server

Usage:
  caseflow server [flags]         Start the HTTP server
  caseflow run [flags] <dir>      Run the full pipeline over a directory of documents
  caseflow status [flags]         Show case/storage status
  caseflow version                Show version
  caseflow help                   Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/caseflow/config.yaml;
                     CASEFLOW_CONFIG and ./config.yaml override the default)
  --debug            Enable debug logging

Run Flags:
  --config string    Config file path
  --name string      Case name (default: "cli case")
  --officer string   Officer id to own the case (default: "cli")

Status Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct storage.
  --token string     Bearer token for the server API
  --output string    Output format: text or json (default: text)

Examples:
  caseflow server
  caseflow run ./case_documents
  caseflow status --token dev-token
  caseflow status --server "" --output json`)
}
