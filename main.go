/*
	Copyright 2023 Markus Papenbrock
*/

package main

import "github.com/mpapenbr/nebula-racers-go/cmd"

func main() {
	cmd.Execute()
}
