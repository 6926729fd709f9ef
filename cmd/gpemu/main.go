package main

import "github.com/bitjungle/gpemulator/cmd/gpemu/cmd"

func main() {
	cmd.Execute()
}
