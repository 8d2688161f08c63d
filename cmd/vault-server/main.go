package main

import "github.com/oshokin/deadman-vault/cmd/vault-server/cmd"

func main() {
	cmd.Execute()
}
