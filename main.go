package main

import "tubescribe/cmd"

func main() {
	cmd.Execute()
}
