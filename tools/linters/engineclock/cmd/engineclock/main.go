package main

import (
	"golang.org/x/tools/go/analysis/singlechecker"

	"github.com/rezkam/weekplan/tools/linters/engineclock"
)

func main() {
	singlechecker.Main(engineclock.Analyzer)
}
