package main

import "github.com/oshokin/deadman-vault/cmd/vault-heartbeat/cmd"

func main() {
	cmd.Execute()
}
