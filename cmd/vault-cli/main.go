package main

import "github.com/oshokin/deadman-vault/cmd/vault-cli/cmd"

func main() {
	cmd.Execute()
}
