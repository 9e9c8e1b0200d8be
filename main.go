package main

import "github.com/hostwell/mailgate/cmd"

func main() {
	cmd.Execute()
}
