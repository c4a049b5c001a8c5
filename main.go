package main

import "github.com/kesrev/rmanfetch/cmd"

func main() {
	cmd.Execute()
}
