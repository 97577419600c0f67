package main

import (
	"log"

	approuters "github.com/pomsfgend/Messenger-sub000/internal/app_routers"
	"github.com/pomsfgend/Messenger-sub000/internal/configuration"
)

func main() {
	container, err := configuration.BuildContainer()
	if err != nil {
		log.Fatalf("Failed to build container: %v", err)
	}

	// Ensure cleanup on shutdown
	defer container.Close()

	// Setup routers
	approuters.StartServer(container)
}
