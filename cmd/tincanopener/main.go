package main

import "github.com/BlacK-CHi/tincanOpener/internal/app/cmd"

func main() {
	cmd.Execute()
}
