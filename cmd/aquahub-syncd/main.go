package main

import "github.com/aquahub-io/aquahub/cmd/aquahub-syncd/app"

func main() {
	app.NewApp().Run()
}
