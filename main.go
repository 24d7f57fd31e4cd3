package main

import "github.com/Digital-Shane/episode-tidy/internal/cmd"

func main() {
	cmd.Execute()
}
