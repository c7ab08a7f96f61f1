package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/flycamp/arcade/internal/api"
	"github.com/flycamp/arcade/internal/bus"
	"github.com/flycamp/arcade/internal/controller"
	"github.com/flycamp/arcade/internal/ledger"
	"github.com/flycamp/arcade/internal/server"
	"github.com/flycamp/arcade/internal/trace"
)

func main() {
	natsURL := flag.String("nats", "nats://localhost:4222", "NATS broker URL")
	httpAddr := flag.String("http-addr", ":8080", "HTTP shim listen address")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics listen address")
	dbPath := flag.String("db", "./data/ledger", "score ledger path")
	devices := flag.String("devices", "node1,node2,node3,node4,node5", "comma-separated target node ids")
	carDevices := flag.String("car-devices", "", "comma-separated car device ids (empty disables the car check)")
	metaPath := flag.String("meta", "./game_meta.json", "session metadata handoff file")
	tokenPath := flag.String("token", "./rfid_token.txt", "player token handoff file")
	donePath := flag.String("done-flag", "./game_done.flag", "session completion marker file")
	gestureCmd := flag.String("gesture-cmd", "", "gesture controller helper executable")
	joystickCmd := flag.String("joystick-cmd", "", "joystick controller helper executable")
	debug := flag.Bool("debug", false, "debug logging")
	flag.Parse()

	logger, err := buildLogger(*debug)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	shutdownTrace, err := trace.Init(context.Background())
	if err != nil {
		logger.Fatal("tracing init", zap.Error(err))
	}

	store, err := ledger.Open(*dbPath)
	if err != nil {
		logger.Fatal("failed to open ledger", zap.Error(err))
	}
	defer store.Close()

	busClient, err := bus.Connect(*natsURL, "arcaded", logger)
	if err != nil {
		logger.Fatal("failed to connect to broker", zap.Error(err))
	}
	defer busClient.Close()

	srv := server.New(busClient, store, logger, server.Config{
		Devices:     splitList(*devices),
		CarDevices:  splitList(*carDevices),
		MetaPath:    *metaPath,
		TokenPath:   *tokenPath,
		DonePath:    *donePath,
		GestureCmd:  controller.CommandSpec{Path: *gestureCmd},
		JoystickCmd: controller.CommandSpec{Path: *joystickCmd},
	})

	httpServer := &http.Server{
		Addr:    *httpAddr,
		Handler: api.NewHTTPHandler(srv, logger),
	}
	go func() {
		logger.Info("HTTP shim listening", zap.String("addr", *httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http listen", zap.Error(err))
		}
	}()

	metricsServer := &http.Server{Addr: *metricsAddr}
	go func() {
		mux := http.NewServeMux()
		api.RegisterMetrics(mux)
		metricsServer.Handler = mux
		logger.Info("metrics listening", zap.String("addr", *metricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("metrics listen", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutdown initiated")
	if srv.Abort() {
		logger.Info("running session aborted")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.Warn("metrics shutdown", zap.Error(err))
	}
	if err := shutdownTrace(ctx); err != nil {
		logger.Warn("trace shutdown", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func buildLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
