package main

import (
	"log"

	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
