/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package main

import (
	"github.com/allbin/go-modemlink/cmd"
	"github.com/allbin/go-modemlink/platform"
)

func main() {
	platform.Init()
	cmd.Execute()
}
