package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetCommands(t *testing.T) {
	categories := map[string]string{}
	for _, cmd := range getCommands("test") {
		categories[cmd.Name] = cmd.Category
	}

	assert.Equal(t, map[string]string{
		"server":                "service",
		"migrate":               "service",
		"clean-audit-events":    "service",
		"scan-env":              "service",
		"create-root-key":       "keys",
		"create-operator-token": "keys",
	}, categories)
}
