package main

import (
	"testing"

	"github.com/lab-group/labdash/internal/app"
	_ "github.com/lab-group/labdash/internal/testing/guard"
)

func TestMainReturnsInTestMode(t *testing.T) {
	app.RefreshTestMode()
	if !app.InTestMode() {
		t.Fatal("expected test mode to be active")
	}
	main()
}
