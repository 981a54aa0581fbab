package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/mwren/petalpress"
)

func main() {
	configPath := flag.String("config", "petalpress.yaml", "path to the site config file")
	flag.Parse()

	// A missing .env is fine; production sets real environment variables.
	_ = godotenv.Load()

	cfg, err := petalpress.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	app := petalpress.New(cfg)
	defer app.Close()

	if err := app.Start(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
