package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionString(t *testing.T) {
	tests := []struct {
		name    string
		version string
		commit  string
		want    string
	}{
		{name: "empty defaults to dev", version: "", commit: "", want: "dev"},
		{name: "unknown commit ignored", version: "0.4.0", commit: "unknown", want: "0.4.0"},
		{name: "commit appended", version: "v0.4.0", commit: "9f3e21c", want: "v0.4.0+9f3e21c"},
		{name: "commit already in version", version: "v0.4.0-3-g9f3e21c", commit: "9f3e21c", want: "v0.4.0-3-g9f3e21c"},
		{name: "trims whitespace", version: " 0.4 ", commit: " a1 ", want: "0.4+a1"},
	}

	origVersion, origCommit := version, commit
	t.Cleanup(func() {
		version, commit = origVersion, origCommit
	})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version = tt.version
			commit = tt.commit
			assert.Equal(t, tt.want, versionString())
		})
	}
}

func TestExitStatus(t *testing.T) {
	code, msg := exitStatus(nil)
	assert.Equal(t, 0, code)
	assert.Empty(t, msg)

	code, msg = exitStatus(errors.New("load config: boom"))
	assert.Equal(t, 1, code)
	assert.Equal(t, "load config: boom", msg)
}
