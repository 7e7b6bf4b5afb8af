// Command magstand runs the magazine content cache and sync engine.
// All configuration comes from environment variables; a local .env file is
// loaded when present.
package main

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/nkemjika/magstand"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("load .env: %v", err)
	}

	cfg := magstand.Config{
		Addr:          envOr("ADDR", ":8080"),
		DatabasePath:  envOr("DATABASE_PATH", "data/magazine.db"),
		ContentAPIURL: mustEnv("CONTENT_API_URL"),
		SiteURL:       mustEnv("SITE_URL"),
		SessionSecret: mustEnv("SESSION_SECRET"),
		CookieSecure:  strings.EqualFold(os.Getenv("COOKIE_SECURE"), "true"),
	}

	app := magstand.New(cfg)
	defer app.Close()

	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("required environment variable %s is not set", key)
	}
	return v
}
