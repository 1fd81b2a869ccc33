package capability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"read_file", CategoryRead},
		{"List_Issues", CategoryRead},
		{"create_pull_request", CategoryWrite},
		{"delete_repository", CategoryWrite},
		{"send_message", CategorySend},
		{"run_shell", CategoryCompute},
		{"execute_query", CategoryCompute},
		{"reader", CategoryUnknown},
		{"", CategoryUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Categorize(tt.name))
		})
	}
}

func TestPrefixAnalyzer(t *testing.T) {
	tests := []struct {
		tool      string
		read      bool
		write     bool
		reasoning string
	}{
		{"get_weather", true, false, "name starts with a read verb"},
		{"update_ticket", false, true, "name starts with a write verb"},
		{"upload_file", false, true, "sends data to an external destination"},
		{"exec_command", true, true, "executes code"},
		{"magic", true, true, "unrecognized tool name"},
	}
	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			res, err := PrefixAnalyzer{}.Analyze(context.Background(), Request{ToolName: tt.tool})
			require.NoError(t, err)
			assert.Equal(t, tt.read, res.CanRead)
			assert.Equal(t, tt.write, res.CanWrite)
			if tt.read {
				assert.Equal(t, tt.reasoning, res.Reasoning.Read)
			} else {
				assert.Equal(t, tt.reasoning, res.Reasoning.Write)
			}
		})
	}
}
