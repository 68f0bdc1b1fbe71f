package main

import "github.com/contentshield/contentshield/internal/cmd"

func main() {
	cmd.Main()
}
