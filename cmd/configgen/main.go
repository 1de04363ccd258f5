package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danmuck/xmlrpc/internal/config"
	"github.com/danmuck/xmlrpc/internal/logging"
	"github.com/rs/zerolog/log"
)

var defaultPaths = map[string]string{
	config.KindServer: "cmd/xmlrpcd/config.toml",
	config.KindClient: "cmd/xmlrpcctl/config.toml",
}

func main() {
	logging.ConfigureRuntime()

	kind := flag.String("kind", config.KindServer, "config kind: server|client")
	output := flag.String("output", "", "template destination (defaults to the kind's cmd dir, - for stdout)")
	check := flag.String("validate", "", "validate this config file instead of writing a template")
	force := flag.Bool("force", false, "overwrite an existing config file")
	flag.Parse()

	fallback, ok := defaultPaths[*kind]
	if !ok {
		log.Fatal().Str("kind", *kind).Msg("unknown config kind")
	}

	if *check != "" {
		if err := config.Validate(*check, *kind); err != nil {
			log.Fatal().Err(err).Str("path", *check).Msg("config invalid")
		}
		log.Info().Str("kind", *kind).Str("path", *check).Msg("config valid")
		return
	}

	target := *output
	if target == "-" {
		doc, err := config.Template(*kind)
		if err != nil {
			log.Fatal().Err(err).Msg("render template")
		}
		fmt.Fprint(os.Stdout, doc)
		return
	}
	if target == "" {
		target = fallback
	}
	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal().Err(err).Str("path", target).Msg("write template")
	}
	log.Info().Str("kind", *kind).Str("path", target).Msg("wrote config template")
}
