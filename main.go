package main

import "fwsync/cmd"

func main() {
	cmd.Run()
}
