package main

import (
	"log"

	"github.com/omeasupport/dispatch-service/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
