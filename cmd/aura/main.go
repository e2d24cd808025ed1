// Package main is the AURA CLI entry point: one function — submit an
// utterance, receive a Response — exposed as a small cobra command tree
// (spec §6 "UI / CLI entry"). Grounded on the teacher's cmd/nerd/main.go
// rootCmd/init() wiring style, narrowed to AURA's flatter command surface.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
