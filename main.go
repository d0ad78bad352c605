package main

import "github.com/camden-git/mediasysfaces/cmd"

func main() {
	cmd.Execute()
}
