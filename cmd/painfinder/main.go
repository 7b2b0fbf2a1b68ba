package main

import (
	"painfinder/cmd/handlers"
	"painfinder/internal/logger"
)

func main() {
	logger.Init()
	handlers.Execute()
}
