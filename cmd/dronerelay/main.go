package main

import (
	"github.com/autopeer-io/dronerelay/cmd/dronerelay/app"
)

func main() {
	app.NewApp().Run()
}
