package main

import (
	"github.com/shopcore/fulfillment/internal/app"
	"github.com/shopcore/fulfillment/internal/config"
)

func main() {
	config.MustInit()
	app.MustNewApp().Run()
}
