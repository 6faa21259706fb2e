package main

import "github.com/WarPigBRZ/BelugaDB/internal/cli"

func main() {
	cli.Execute()
}
