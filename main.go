package main

import "reviewbench/internal/app"

func main() {
	app.Main()
}
