package main

import (
	"log"

	"github.com/relaydeck/relaydeck/core/console"
	"github.com/relaydeck/relaydeck/core/infra/buildinfo"
	"github.com/relaydeck/relaydeck/core/infra/config"
)

func main() {
	log.Println("relaydeck console starting...")
	buildinfo.Log("relaydeck-console")
	cfg := config.Load()
	if err := console.Run(cfg); err != nil {
		log.Fatalf("console error: %v", err)
	}
}
