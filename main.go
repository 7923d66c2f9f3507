package main

import "github.com/chapool/wallet-core/cmd"

func main() {
	cmd.Execute()
}
