package main

import (
	"os"

	"github.com/deusflow/autopost/internal/app"
)

func main() {
	os.Exit(app.Execute())
}
