package main

import (
	"fmt"
	"os"

	"github.com/blockedby/tg-warehouse/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("No files to check.")
		os.Exit(0)
	}

	os.Exit(run(os.Args[1:]))
}

func run(paths []string) int {
	failed := false
	for _, path := range paths {
		channels, err := config.ReadChannelsFile(path)
		if err != nil {
			fmt.Printf("❌ %v\n", err)
			failed = true
			continue
		}
		if len(channels) == 0 {
			fmt.Printf("❌ %s lists no channels\n", path)
			failed = true
			continue
		}
		fmt.Printf("✅ %s is valid (%d channels)\n", path, len(channels))
		for _, ch := range channels {
			fmt.Printf("   %s\n", ch)
		}
	}

	if failed {
		return 1
	}
	return 0
}
