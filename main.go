package main

import "github.com/BryanTheLai/stackrag/cmd"

func main() {
	cmd.Execute()
}
