package main

import (
	"github.com/gin-gonic/gin"

	"ChainAcademy/internal/app"
	"ChainAcademy/internal/config"
)

func main() {
	cfg := config.MustLoad()
	if cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	app.Run(cfg)
}
