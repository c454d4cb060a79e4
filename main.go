package main

import "github.com/klauver/snatch/cmd"

func main() {
	cmd.Execute()
}
