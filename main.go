package main

import "cmrset-tools/cmd"

func main() {
	cmd.Execute()
}
