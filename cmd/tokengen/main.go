// Command tokengen prints a bearer token identifying an owner, for use with
// POST /shorten and GET /analytics/overall.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/roniherschmann/linkpulse/internal/auth"
	"github.com/roniherschmann/linkpulse/internal/config"
)

func main() {
	owner := flag.String("owner", "", "owner reference to embed as the token subject")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime, 0 for no expiry")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET is not set")
	}
	if *owner == "" {
		flag.Usage()
		os.Exit(2)
	}

	tok, err := auth.NewTokens(cfg.JWTSecret, *ttl).Issue(*owner)
	if err != nil {
		log.Fatal().Err(err).Msg("issue token")
	}
	fmt.Println(tok)
}
