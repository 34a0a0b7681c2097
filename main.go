package main

import "github.com/briefdesk/briefedit/cmd"

func main() {
	cmd.Execute()
}
