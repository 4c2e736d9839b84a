package main

import "facecapture/cmd"

func main() {
	cmd.Execute()
}
