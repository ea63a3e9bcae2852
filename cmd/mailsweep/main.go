package main

import "github.com/vietddude/mailsweep/internal/cli"

func main() {
	cli.Execute()
}
