package main

import "github.com/AmirrezaFarnamTaheri/noteece-vault/cli/cmd"

func main() {
	cmd.Execute()
}
