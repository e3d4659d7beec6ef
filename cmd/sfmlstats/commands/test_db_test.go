package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskPassword(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"postgresql://sfml:s3cret@db:5432/stats", "postgresql://sfml:xxxxx@db:5432/stats"},
		{"postgresql://sfml@db/stats", "postgresql://sfml@db/stats"},
		{"postgresql://db/stats", "postgresql://db/stats"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, maskPassword(tt.in), tt.in)
	}
}

func TestCollectCmd_ValidArgs(t *testing.T) {
	assert.ElementsMatch(t, []string{"morning", "evening", "historical", "repair"}, collectCmd.ValidArgs)
}
