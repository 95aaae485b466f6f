package engineclock_test

import (
	"testing"

	"golang.org/x/tools/go/analysis/analysistest"

	"github.com/rezkam/weekplan/tools/linters/engineclock"
)

func TestAnalyzer(t *testing.T) {
	testdata := analysistest.TestData()
	analysistest.Run(t, testdata, engineclock.Analyzer, "a")
}
