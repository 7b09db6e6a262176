package main

import "audiomanifest/cmd"

func main() {
	cmd.Execute()
}
