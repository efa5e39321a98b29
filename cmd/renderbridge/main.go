// renderbridge - HTML-to-image notification bridge for chat platforms
// License: MIT
//
// Copyright (c) 2026 renderbridge contributors

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/akinokuni/renderbridge/pkg/config"
	"github.com/akinokuni/renderbridge/pkg/dispatch"
	"github.com/akinokuni/renderbridge/pkg/logger"
	"github.com/akinokuni/renderbridge/pkg/platform"
	"github.com/akinokuni/renderbridge/pkg/qrcode"
	"github.com/akinokuni/renderbridge/pkg/render"
	"github.com/akinokuni/renderbridge/pkg/schedule"
	"github.com/akinokuni/renderbridge/pkg/server"
	"github.com/akinokuni/renderbridge/pkg/template"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printHelp()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "onboard":
		onboard()
	case "serve":
		serveCmd()
	case "status":
		statusCmd()
	case "version":
		fmt.Printf("renderbridge v%s\n", version)
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printHelp()
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Printf("renderbridge - HTML notification renderer v%s\n\n", version)
	fmt.Println("Usage: renderbridge <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  onboard     Write a default configuration file")
	fmt.Println("  serve       Start the render endpoint and platform clients")
	fmt.Println("  status      Show configuration status")
	fmt.Println("  version     Show version information")
}

func getConfigPath() string {
	if p := os.Getenv("RENDERBRIDGE_CONFIG"); p != "" {
		return p
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".renderbridge", "config.json")
}

func loadConfig() (*config.Config, error) {
	return config.LoadConfig(getConfigPath())
}

func onboard() {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config already exists at %s\n", configPath)
		fmt.Print("Overwrite? (y/n): ")
		var response string
		fmt.Scanln(&response)
		if response != "y" {
			fmt.Println("Aborted.")
			return
		}
	}

	cfg := config.DefaultConfig()
	if err := config.SaveConfig(configPath, cfg); err != nil {
		fmt.Printf("Error saving config: %v\n", err)
		os.Exit(1)
	}

	os.MkdirAll(cfg.Templates.Dir, 0755)

	fmt.Println("renderbridge is ready!")
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Set server.auth_token in", configPath)
	fmt.Println("  2. Drop HTML templates into", cfg.Templates.Dir)
	fmt.Println("  3. Start: renderbridge serve")
}

func serveCmd() {
	for _, arg := range os.Args[2:] {
		if arg == "--debug" || arg == "-d" {
			logger.SetLevel(logger.DEBUG)
			fmt.Println("Debug mode enabled")
			break
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Server.AuthToken == "" {
		fmt.Println("Warning: server.auth_token is not set, endpoint is unauthenticated")
	}

	store := template.NewStore(cfg.Templates)
	store.Load()
	fmt.Printf("Templates loaded: %d\n", store.Count())

	pipeline := render.NewPipeline(store, qrcode.NewFetcher(cfg.QRCode), buildStrategies(cfg.Render)...)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	registry := platform.NewRegistry(cfg.Platforms)
	registry.StartAll(rootCtx)
	dispatcher := dispatch.NewDispatcher(registry, cfg.Delivery)

	reloader, err := schedule.NewReloader(cfg.Templates.ReloadCron, store.Load)
	if err != nil {
		fmt.Printf("Error in templates.reload_cron: %v\n", err)
		os.Exit(1)
	}
	if err := reloader.Start(); err != nil {
		fmt.Printf("Error starting reload scheduler: %v\n", err)
	}

	srv := server.New(cfg.Server, store, pipeline, dispatcher, version)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	fmt.Printf("Endpoint listening on %s:%d%s\n", cfg.Server.Host, cfg.Server.Port, cfg.Server.APIPath)
	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	select {
	case <-sigChan:
		fmt.Println("\nShutting down...")
	case err := <-errChan:
		if err != nil {
			fmt.Printf("Server error: %v\n", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		fmt.Printf("Error stopping server: %v\n", err)
	}
	reloader.Stop()
	registry.StopAll(ctx)
	rootCancel()
	fmt.Println("Stopped")
}

func buildStrategies(cfg config.RenderConfig) []render.Strategy {
	var strategies []render.Strategy
	if cfg.APIURL != "" {
		strategies = append(strategies, render.NewNetworkStrategy(cfg))
	}
	strategies = append(strategies, render.NewLocalStrategy(cfg))
	return strategies
}

func statusCmd() {
	configPath := getConfigPath()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		return
	}

	fmt.Println("renderbridge Status")
	fmt.Println()

	mark := func(ok bool) string {
		if ok {
			return "ok"
		}
		return "not set"
	}

	if _, err := os.Stat(configPath); err == nil {
		fmt.Println("Config:", configPath)
	} else {
		fmt.Println("Config:", configPath, "(missing, defaults in effect)")
	}
	fmt.Println("Auth token:", mark(cfg.Server.AuthToken != ""))
	fmt.Printf("Endpoint: %s:%d%s\n", cfg.Server.Host, cfg.Server.Port, cfg.Server.APIPath)
	fmt.Println("Templates dir:", cfg.Templates.Dir)
	fmt.Println("Render API:", mark(cfg.Render.APIURL != ""))
	fmt.Println("Local renderer:", cfg.Render.LocalCommand)
	fmt.Println("OneBot:", mark(cfg.Platforms.OneBot.Enabled))
	fmt.Println("Telegram:", mark(cfg.Platforms.Telegram.Enabled))
	fmt.Println("Discord:", mark(cfg.Platforms.Discord.Enabled))
}
