package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gin-gonic/gin"
	flags "github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/klauspost/compress/gzhttp"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := ParseConfig(os.Args[1:])
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		log.Fatal(err)
	}

	logger := NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	networks := NewNetworkRegistry(os.Getenv)

	readers, closeReaders := dialChainReaders(logger, networks)
	defer closeReaders()

	explorer := NewExplorerClient(logger, ExplorerConfig{
		Timeout:   cfg.Explorer.Timeout,
		RetryMax:  cfg.Explorer.RetryMax,
		RateLimit: cfg.Explorer.RateLimit,
		Networks:  networks.Names(),
	})

	gin.SetMode(gin.ReleaseMode)
	server := NewServer(logger, networks, explorer, NewProxyDetector(readers), cfg.MaxProxyHops)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: gzhttp.GzipHandler(server.Router()),
	}

	go func() {
		logger.Info("Server starting", "addr", cfg.ListenAddr, "networks", len(networks.Names()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ListenAndServe failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	s := <-quit
	logger.Warn("Caught UNIX signal", "signal", s)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
	}
}

// dialChainReaders connects to the RPC node of every network that has one
// configured. Networks whose RPC URL cannot be dialed are skipped.
func dialChainReaders(logger *slog.Logger, networks *NetworkRegistry) (map[string]ChainReader, func()) {
	readers := make(map[string]ChainReader)
	var clients []*ethclient.Client
	for _, name := range networks.Names() {
		network, _ := networks.Lookup(name)
		if network.RPCURL == "" {
			continue
		}
		client, err := ethclient.Dial(network.RPCURL)
		if err != nil {
			logger.Warn("Failed to connect to Ethereum node, on-chain proxy detection disabled",
				"network", name,
				"error", err,
			)
			continue
		}
		readers[name] = client
		clients = append(clients, client)
	}
	return readers, func() {
		for _, client := range clients {
			client.Close()
		}
	}
}
