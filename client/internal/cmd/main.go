package main

import (
	"log"
	"paperstack/client/pkg/cmd"
)

func main() {
	rootCmd, err := cmd.New()
	if err != nil {
		log.Fatal(err)
	}

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
