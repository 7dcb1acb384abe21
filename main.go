package main

import "fsbench/cmd"

func main() {
	cmd.Execute()
}
