package main

import (
	"log"
	"os"

	"github.com/MrSnakeDoc/untold/internal/app"
)

func main() {
	a, err := app.New(os.Args[1:])
	if err != nil {
		log.Fatalf("❌ untold failed to start: %v", err)
	}
	if err := a.Run(); err != nil {
		log.Fatalf("❌ untold stopped with error: %v", err)
	}
}
