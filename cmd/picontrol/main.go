package main

import (
	"embed"
	"errors"
	"io/fs"
	"log"

	"github.com/joho/godotenv"
)

//go:embed templates/*
var templateFS embed.FS

func main() {
	// A missing .env is fine; the environment may already be set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("failed to load .env file: %v", err)
	}

	if err := Execute(); err != nil {
		log.Fatal(err)
	}
}
