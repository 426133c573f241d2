package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"collabroom/client/rlog"
	"collabroom/internal"
	"collabroom/internal/input"
	"collabroom/internal/repository"
	"collabroom/internal/service"
	"collabroom/internal/ws"
)

func main() {
	cfg, err := internal.LoadConfig(".")
	if err != nil {
		fmt.Printf("Cannot load configuration... %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := rlog.NewRegistry("server", os.Stdout, cfg.EnableLogging)
	go registry.Run(ctx)

	db, err := repository.OpenDatabase(cfg.DBName)
	if err != nil {
		fmt.Printf("Cannot open database... %v\n", err)
		os.Exit(1)
	}

	userRepo := repository.NewSQLiteUserRepository(db)
	sessionRepo := repository.NewSQLiteSessionRepository(db)
	roomRepo := repository.NewSQLiteRoomRepository(db)
	membershipRepo := repository.NewSQLiteMembershipRepository(db)
	fileRepo := repository.NewSQLiteFileRepository(db)
	messageRepo := repository.NewSQLiteMessageRepository(db)

	authService := service.NewLocalAuthService(
		userRepo, sessionRepo, cfg.SecretKey,
		time.Duration(cfg.AccessTokenTTL)*time.Second,
		time.Duration(cfg.RefreshTokenTTL)*time.Second,
		registry.RegisterSubsystem("auth"),
	)
	roomService := service.NewLocalRoomService(roomRepo, membershipRepo, registry.RegisterSubsystem("room"))
	fileService := service.NewLocalFileService(fileRepo, registry.RegisterSubsystem("file"))
	messageService := service.NewLocalMessageService(messageRepo, registry.RegisterSubsystem("message"))
	executionService := service.NewRemoteExecutionService(cfg.ExecutorAddr, registry.RegisterSubsystem("execution"))

	hub := ws.NewHub(roomService, messageService, registry.RegisterSubsystem("hub"))
	go hub.Run()

	manager := input.NewInputManager()
	manager.SetLogger(registry.RegisterSubsystem("input"))
	manager.SetServices(authService, roomService, fileService, messageService, executionService)
	manager.SetHub(hub)

	if err := manager.Run(ctx, cfg); err != nil {
		fmt.Printf("Server stopped with error... %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Shutting off...\n")
}
