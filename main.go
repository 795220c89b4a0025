package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"hostwatch/internal/config"
	"hostwatch/internal/logging"
	"hostwatch/internal/routes"
	"hostwatch/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const hostCacheTTL = 2 * time.Second

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}

	log := logging.New(cfg.Log.Level, cfg.Log.Format)
	if log.GetLevel() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := services.OpenAlertStore(cfg.Store.Path, logging.Component(log, "store"))
	if err != nil {
		log.WithError(err).Fatal("failed to open alert store")
	}

	evaluator, err := services.NewThresholdEvaluator(*cfg.Thresholds.CPU, *cfg.Thresholds.Memory)
	if err != nil {
		log.WithError(err).Fatal("invalid thresholds")
	}
	history := services.NewMetricHistory(cfg.Collector.HistoryCapacity)

	auth := services.NewSessionAuthenticator(services.SessionOptions{
		TTL:        cfg.Auth.SessionTTLDuration(),
		BcryptCost: cfg.Auth.BcryptCost,
	}, logging.Component(log, "auth"))
	if err := registerAdmin(auth, cfg.Auth, log); err != nil {
		log.WithError(err).Fatal("failed to register admin user")
	}

	secret, err := services.LoadOrCreateSecret(cfg.Auth.SecretFile, logging.Component(log, "auth"))
	if err != nil {
		log.WithError(err).Fatal("failed to load stream secret")
	}
	tickets, err := services.NewStreamTicketIssuer(secret, cfg.Auth.StreamTicketTTLDuration())
	if err != nil {
		log.WithError(err).Fatal("failed to create stream ticket issuer")
	}

	hub := services.NewWebSocketHub(logging.Component(log, "ws"))
	telemetry := services.NewTelemetry(history, auth, evaluator)

	loop := services.NewCollectionLoop(
		services.NewHostSampler(cfg.Collector.CPUWindowDuration()),
		history, evaluator, store,
		services.CollectorOptions{
			Interval:     cfg.Collector.IntervalDuration(),
			ErrorBackoff: cfg.Collector.ErrorBackoffDuration(),
		},
		logging.Component(log, "collector"),
	)
	loop.Subscribe(hub)
	loop.Subscribe(telemetry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)
	go auth.RunSweeper(ctx, cfg.Auth.SweepIntervalDuration())
	if err := loop.Start(ctx); err != nil {
		log.WithError(err).Fatal("failed to start collection loop")
	}

	r := routes.NewRouter(routes.Dependencies{
		Auth:      auth,
		Tickets:   tickets,
		History:   history,
		Evaluator: evaluator,
		Store:     store,
		Loop:      loop,
		Hub:       hub,
		HostCache: services.NewHostStatusCache(hostCacheTTL),
		Telemetry: telemetry,
		Log:       log,
	}, routes.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedIPs:     cfg.Server.AllowedIPs,
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
		RequestLog:     true,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.Server.Listen).Info("hostwatch listening")
		var err error
		if cfg.Server.TLSCert != "" {
			err = srv.ListenAndServeTLS(cfg.Server.TLSCert, cfg.Server.TLSKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown did not complete")
	}

	loop.Stop()
	cancel()
	<-hub.Done()

	if err := store.Close(); err != nil {
		log.WithError(err).Warn("failed to close alert store")
	}
	log.Info("stopped")
}

// registerAdmin creates the configured admin account. With no password
// configured, one is read from or generated into AdminPasswordFile; only the
// file path is logged.
func registerAdmin(auth *services.SessionAuthenticator, cfg config.AuthConfig, log logrus.FieldLogger) error {
	password := cfg.AdminPassword
	source := "config"
	if password == "" {
		path, err := adminPasswordPath(cfg.AdminPasswordFile)
		if err != nil {
			return err
		}
		password, err = loadOrCreatePassword(path)
		if err != nil {
			return err
		}
		source = path
	}

	id, err := auth.Register(cfg.AdminUsername, password)
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"username":        cfg.AdminUsername,
		"user_id":         id,
		"password_source": source,
	}).Info("admin user registered")
	return nil
}

func adminPasswordPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("no admin password configured and no home directory: %w", err)
	}
	return filepath.Join(homeDir, ".hostwatch-admin-password"), nil
}

// loadOrCreatePassword reuses the password in path, or writes a new random one
// readable only by the owner.
func loadOrCreatePassword(path string) (string, error) {
	if data, err := os.ReadFile(path); err == nil {
		if password := strings.TrimSpace(string(data)); password != "" {
			return password, nil
		}
	}

	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate admin password: %w", err)
	}
	password := hex.EncodeToString(b)

	if err := os.WriteFile(path, []byte(password+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("failed to write admin password to %s: %w", path, err)
	}
	return password, nil
}
