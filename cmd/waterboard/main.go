package main

import (
	"fmt"
	"os"

	"github.com/civicwater/waterboard/internal/cli"
	"github.com/gin-gonic/gin"
)

var version = "dev"

func main() {
	// Embedded mode builds the router in-process; keep gin's route dump quiet
	gin.SetMode(gin.ReleaseMode)

	if err := cli.NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
