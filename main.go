package main

import "github.com/leadcrm/leadgate/cmd"

func main() {
	cmd.Execute()
}
