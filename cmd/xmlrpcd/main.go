package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/xmlrpc/internal/config"
	"github.com/danmuck/xmlrpc/internal/observability"
	"github.com/danmuck/xmlrpc/internal/server"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "server config path (defaults when empty)")
	addr := flag.String("addr", "", "listen address override")
	flag.Parse()

	observability.InitLogger("xmlrpcd")

	cfg := config.DefaultServerConfig()
	if *configPath != "" {
		loaded, err := config.LoadServerConfig(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load server config")
		}
		cfg = loaded
		log.Info().Str("path", *configPath).Msg("loaded server config")
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	registry := server.NewRegistry()
	registerMethods(registry)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg, registry)
	log.Info().Strs("methods", registry.Methods()).Msg("xmlrpcd started")
	if err := srv.Serve(ctx); err != nil {
		log.Fatal().Err(err).Msg("xmlrpcd stopped")
	}
}
