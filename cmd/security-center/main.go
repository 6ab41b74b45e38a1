package main

import "github.com/firefly/security-center/cmd/security-center/cmd"

func main() {
	cmd.Execute()
}
