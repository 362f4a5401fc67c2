package main

import (
	"os"

	"github.com/romariotrain/course-platform/internal/app"
)

func main() {
	os.Exit(app.Run("uploads", run))
}
