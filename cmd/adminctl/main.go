package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/signalrelay/internal/adminctl"
	"github.com/dmitrijs2005/signalrelay/internal/logging"
	"github.com/dmitrijs2005/signalrelay/internal/server/config"
	"github.com/dmitrijs2005/signalrelay/internal/server/mailer"
	"github.com/dmitrijs2005/signalrelay/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/signalrelay/internal/server/services"
)

func main() {

	ctx := context.Background()
	cfg, err := config.LoadToolConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := logging.New(logging.Options{Format: cfg.LogFormat, Level: "warn", File: cfg.LogFile})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}

	rm, err := repomanager.New(ctx, cfg)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	defer rm.Close()

	if err := rm.RunMigrations(ctx); err != nil {
		log.Fatalf("migrations error: %v", err)
	}

	audit := services.NewAuditService(rm, logger)
	accounts := services.NewAccountService(rm, audit, mailer.NewNotifier(mailer.DisabledSender{}, cfg.BaseURL), logger, cfg)

	tool := adminctl.New(accounts, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword, os.Stdout)
	if err := tool.Run(ctx, os.Args[1:]); err != nil {
		log.Printf("%v", err)
		rm.Close()
		os.Exit(1)
	}

}
