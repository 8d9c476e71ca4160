package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/kart-io/ragserve/cmd/ragserve/app"
)

func main() {
	app.NewApp().Run()
}
