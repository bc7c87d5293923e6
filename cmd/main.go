package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Riboost-Studio/chalan/internal/model"
	"github.com/Riboost-Studio/chalan/internal/services"
	"github.com/Riboost-Studio/chalan/internal/store"
	"github.com/Riboost-Studio/chalan/internal/utils"
)

const appVersion = "1.0.0"

func usage() {
	fmt.Fprintf(os.Stderr, `Chalan %s - sale print orchestration

Usage:
  chalan [-config file] print <sale.json>
  chalan [-config file] import-config <school-id> <printer-config.json>
  chalan [-config file] devices
  chalan [-config file] doctor
`, appVersion)
	flag.PrintDefaults()
}

// --- Main ---

func main() {
	configFile := flag.String("config", "", "engine config file (TOML)")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	ctx := context.Background()
	ctx = context.WithValue(ctx, model.ContextAppName, "Chalan")
	ctx = context.WithValue(ctx, model.ContextAppVersion, appVersion)
	if *configFile != "" {
		ctx = context.WithValue(ctx, model.ContextConfigFile, *configFile)
	}

	// 1. Load configuration
	config, used, err := utils.LoadConfig(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Config error:", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(config.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Logger error:", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger.Debug("configuration loaded", zap.String("file", used), zap.String("agent", config.Agent.URL))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	args := flag.Args()
	switch args[0] {
	case "print":
		if len(args) != 2 {
			usage()
			os.Exit(2)
		}
		err = runPrint(ctx, config, logger, args[1])
	case "import-config":
		if len(args) != 3 {
			usage()
			os.Exit(2)
		}
		err = runImportConfig(ctx, config, args[1], args[2])
	case "devices":
		err = runDevices(ctx, config, logger)
	case "doctor":
		err = utils.ReportSystem(os.Stdout, utils.DetectSystem(config.Browser.ChromePath))
		utils.ReportAgent(os.Stdout, config.Agent.URL)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error("command failed", zap.String("command", args[0]), zap.Error(err))
		os.Exit(1)
	}
}

func newConnectionManager(config model.Config, logger *zap.Logger) *services.ConnectionManager {
	opts := services.ConnectionOptions{
		URL:              config.Agent.URL,
		HandshakeTimeout: config.Agent.HandshakeTimeout.Duration,
		Logger:           logger,
	}
	if config.Agent.CertificateFile != "" {
		signed, err := services.LoadSignedStrategy(config.Agent.CertificateFile, config.Agent.PrivateKeyFile)
		if err != nil {
			logger.Warn("signing credentials unusable, agent will ask for manual approval", zap.Error(err))
		} else {
			opts.Signing = signed
		}
	}
	return services.NewConnectionManager(opts)
}

func newDocumentPrinter(config model.Config, logger *zap.Logger) services.DocumentPrinter {
	if config.Browser.Mode == "chrome" {
		if ok, path := utils.FindChrome(config.Browser.ChromePath); ok {
			return services.NewChromePrinter(config.Browser.OutputDir, path, logger)
		}
		logger.Warn("chrome not found, writing html documents only")
	}
	return services.NewFilePrinter(config.Browser.OutputDir)
}

func runPrint(ctx context.Context, config model.Config, logger *zap.Logger, salePath string) error {
	data, err := os.ReadFile(salePath)
	if err != nil {
		return err
	}
	var sale model.SaleData
	if err := json.Unmarshal(data, &sale); err != nil {
		return fmt.Errorf("failed to parse sale: %w", err)
	}
	if sale.IssuedAt.IsZero() {
		sale.IssuedAt = time.Now()
	}

	configs, err := store.Open(config.Storage.Driver, config.Storage.Path)
	if err != nil {
		return err
	}
	defer configs.Close()

	requestID := uuid.NewString()
	ctx = context.WithValue(ctx, model.ContextRequestID, requestID)
	logger = logger.With(zap.String("request", requestID))

	conn := newConnectionManager(config, logger)
	defer conn.Close()

	printer := newDocumentPrinter(config, logger)
	orchestrator := services.NewOrchestrator(
		configs,
		conn,
		services.NewHardwareBackend(conn, logger),
		services.NewBrowserBackend(printer, logger),
		services.OrchestratorOptions{
			HardwareTimeout:  config.Printing.HardwareTimeout.Duration,
			SendTimeout:      config.Printing.SendTimeout.Duration,
			ComandaStagger:   config.Printing.ComandaStagger.Duration,
			CopyDelay:        config.Printing.CopyDelay.Duration,
			MaxComandaCopies: config.Printing.MaxComandaCopies,
		},
		logger,
	)

	report := orchestrator.Print(ctx, sale)

	// PDFs render in the background; give them a chance before exiting.
	if cp, ok := printer.(*services.ChromePrinter); ok {
		waitCtx, cancel := context.WithTimeout(ctx, cp.Timeout)
		defer cancel()
		cp.Wait(waitCtx)
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runImportConfig(ctx context.Context, config model.Config, schoolID, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	cfg := model.DefaultPrinterConfig(schoolID)
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse printer config: %w", err)
	}
	cfg.SchoolID = schoolID
	cfg.IsActive = true

	configs, err := store.Open(config.Storage.Driver, config.Storage.Path)
	if err != nil {
		return err
	}
	defer configs.Close()

	if err := configs.SaveConfig(ctx, *cfg); err != nil {
		return err
	}
	fmt.Printf("Printer config for %s saved (%s).\n", schoolID, config.Storage.Path)
	return nil
}

func runDevices(ctx context.Context, config model.Config, logger *zap.Logger) error {
	conn := newConnectionManager(config, logger)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, config.Agent.HandshakeTimeout.Duration+5*time.Second)
	defer cancel()
	if err := conn.EnsureConnected(ctx); err != nil {
		return err
	}
	devices, err := conn.ListDevices(ctx)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Println("No printers reported by the agent.")
		return nil
	}
	for _, d := range devices {
		fmt.Println(d)
	}
	return nil
}
