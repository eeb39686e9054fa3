package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/maanisingh/Accounting-software-sub001/internal/app"
	_ "github.com/maanisingh/Accounting-software-sub001/internal/testing/guard"
)

func TestMainSkipsInTestMode(t *testing.T) {
	app.RefreshTestMode()
	assert.True(t, app.InTestMode())
	assert.NotPanics(t, main)
}
