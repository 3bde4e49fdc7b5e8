package main

import (
	"embed"
	"fmt"
	"os"
)

//go:embed static/* templates/*
var content embed.FS

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}
