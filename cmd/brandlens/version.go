package main

import (
	"fmt"

	"github.com/brandlens/brandlens/internal/common"
)

func printVersion() {
	fmt.Printf("Brandlens version %s\n", common.GetFullVersion())
}
