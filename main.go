package main

import "github.com/cmdlink/cmdlink/cmd"

func main() {
	cmd.Execute()
}
