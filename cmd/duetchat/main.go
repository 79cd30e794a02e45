package main

import "github.com/duetapp/duetchat/cmd/duetchat/cmd"

func main() {
	cmd.Execute()
}
