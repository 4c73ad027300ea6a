package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/api"
	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/batch"
	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/config"
	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/convert"
	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/history"
	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/models"
	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/session"
	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/storage"
	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/tools"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	exePath, err := os.Executable()
	if err != nil {
		fmt.Printf("Failed to get executable path: %v\n", err)
		os.Exit(1)
	}
	exeDir := filepath.Dir(exePath)

	configPath := filepath.Join(exeDir, "ConvertAllHub.config")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Printf("Failed to create directories: %v\n", err)
		os.Exit(1)
	}

	// Storage for uploaded inputs and converted outputs.
	fileStore, err := storage.NewLocalStore(cfg.Storage.UploadsDirectory)
	if err != nil {
		fmt.Printf("Failed to initialize storage: %v\n", err)
		os.Exit(1)
	}

	// Session state and tool registry.
	state := session.NewState()
	if cfg.Security.DefaultTier == string(models.TierPro) {
		state.SetUserTier(models.TierPro)
	}

	registry := tools.NewRegistry()
	if cfg.Storage.ToolCatalog != "" {
		if err := registry.LoadCatalog(cfg.Storage.ToolCatalog); err != nil {
			fmt.Printf("Warning: failed to load tool catalog: %v\n", err)
		} else {
			fmt.Printf("Tool catalog loaded from %s\n", cfg.Storage.ToolCatalog)
		}
	}

	// Conversion executors: local work runs in-process, everything else
	// is delegated to the conversion backend.
	remote := convert.NewRemoteExecutor(cfg.Processing.BackendURL, nil)
	if cfg.Processing.BackendPollIntervalMs > 0 {
		remote.SetPollInterval(time.Duration(cfg.Processing.BackendPollIntervalMs) * time.Millisecond)
	}
	dispatcher := &convert.Dispatcher{
		Local:  convert.NewLocalExecutor(fileStore),
		Remote: remote,
	}

	batchMgr := batch.NewManager(state, fileStore, dispatcher, cfg.Storage.ArchiveDirectory)
	if cfg.Processing.BatchConcurrency > 0 {
		batchMgr.SetConcurrency(cfg.Processing.BatchConcurrency)
	}

	// Conversion history is optional; the API degrades without it.
	var historyStore *history.Store
	if cfg.Storage.HistoryDatabase != "" {
		historyStore, err = history.Open(cfg.Storage.HistoryDatabase)
		if err != nil {
			fmt.Printf("Warning: history disabled: %v\n", err)
			historyStore = nil
		} else {
			defer historyStore.Close()
		}
	}

	tasks := api.NewTaskManager(state)

	// Background cleanup of finished tasks and aged batch archives.
	go func() {
		interval := time.Duration(cfg.Processing.CleanupIntervalMinutes) * time.Minute
		retention := time.Duration(cfg.Processing.TaskRetentionMinutes) * time.Minute
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			tasks.CleanupOldTasks(retention)
			batchMgr.CleanupOldJobs(retention)
		}
	}()

	handlers := api.NewHandlers(&api.Dependencies{
		Registry:          registry,
		State:             state,
		Store:             fileStore,
		Dispatcher:        dispatcher,
		BatchMgr:          batchMgr,
		History:           historyStore,
		Tasks:             tasks,
		Version:           Version,
		DefaultQuality:    cfg.Processing.DefaultQuality,
		AllowFileDeletion: cfg.Security.AllowFileDeletion,
	})

	e := echo.New()
	e.HideBanner = true

	api.SetupMiddleware(e)

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !cfg.Security.EnableRequestLog {
				return true
			}
			path := c.Request().URL.Path
			return strings.HasSuffix(path, "/status") ||
				strings.HasSuffix(path, "/progress") ||
				path == "/api/health"
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	if cfg.Server.EnableCORS {
		origins := strings.Split(cfg.Server.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}

	api.RegisterRoutes(e, handlers)

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           ConvertAllHub Conversion Server                 ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.Storage.DataDirectory)
	fmt.Printf("║  Backend:   %-46s║\n", cfg.Processing.BackendURL)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	e.Logger.Fatal(e.StartServer(s))
}
