package main

import (
	"github.com/tech-arch1tect/treez/app"
)

func main() {
	app.New(nil).Run()
}
