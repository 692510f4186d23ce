package main

import "popcorn/cmd"

func main() {
	cmd.Execute()
}
