package main

import (
	"context"
	"log"
	"os"

	"github.com/avelats/polycat/internal/buildinfo"
	"github.com/avelats/polycat/internal/server"
	"github.com/avelats/polycat/internal/server/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := server.NewApp(ctx, cfg)

	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)

}
