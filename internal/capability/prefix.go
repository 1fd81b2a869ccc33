package capability

import (
	"context"
	"strings"
)

// Tool name categories recognized by PrefixAnalyzer.
const (
	CategoryRead    = "read"
	CategoryWrite   = "write"
	CategorySend    = "send"
	CategoryCompute = "compute"
	CategoryUnknown = "unknown"
)

type prefixRule struct {
	prefix   string
	category string
}

var defaultPrefixRules = []prefixRule{
	{"read_", CategoryRead},
	{"get_", CategoryRead},
	{"query_", CategoryRead},
	{"list_", CategoryRead},
	{"fetch_", CategoryRead},
	{"search_", CategoryRead},
	{"find_", CategoryRead},
	{"lookup_", CategoryRead},
	{"describe_", CategoryRead},

	{"write_", CategoryWrite},
	{"update_", CategoryWrite},
	{"set_", CategoryWrite},
	{"create_", CategoryWrite},
	{"delete_", CategoryWrite},
	{"remove_", CategoryWrite},
	{"put_", CategoryWrite},
	{"insert_", CategoryWrite},
	{"edit_", CategoryWrite},
	{"move_", CategoryWrite},

	{"send_", CategorySend},
	{"post_", CategorySend},
	{"upload_", CategorySend},
	{"http_", CategorySend},
	{"email_", CategorySend},
	{"notify_", CategorySend},
	{"publish_", CategorySend},
	{"push_", CategorySend},

	{"run_", CategoryCompute},
	{"exec_", CategoryCompute},
	{"eval_", CategoryCompute},
	{"execute_", CategoryCompute},
	{"invoke_", CategoryCompute},
	{"call_", CategoryCompute},
}

// Categorize buckets a tool name by its verb prefix. Names matching no
// prefix are CategoryUnknown.
func Categorize(toolName string) string {
	lower := strings.ToLower(toolName)
	for _, r := range defaultPrefixRules {
		if strings.HasPrefix(lower, r.prefix) {
			return r.category
		}
	}
	return CategoryUnknown
}

// PrefixAnalyzer is an offline Analyzer that judges a tool from its name
// alone. Unknown names get both capabilities, so it errs on the side of
// reporting access.
type PrefixAnalyzer struct{}

func (PrefixAnalyzer) Analyze(_ context.Context, req Request) (Result, error) {
	switch cat := Categorize(req.ToolName); cat {
	case CategoryRead:
		return Result{
			CanRead:   true,
			Reasoning: Reasoning{Read: "name starts with a read verb", Write: "no write verb in name"},
		}, nil
	case CategoryWrite:
		return Result{
			CanWrite:  true,
			Reasoning: Reasoning{Read: "no read verb in name", Write: "name starts with a write verb"},
		}, nil
	case CategorySend:
		return Result{
			CanWrite:  true,
			Reasoning: Reasoning{Read: "no read verb in name", Write: "sends data to an external destination"},
		}, nil
	case CategoryCompute:
		return Result{
			CanRead:   true,
			CanWrite:  true,
			Reasoning: Reasoning{Read: "executes code", Write: "executes code"},
		}, nil
	default:
		return Result{
			CanRead:   true,
			CanWrite:  true,
			Reasoning: Reasoning{Read: "unrecognized tool name", Write: "unrecognized tool name"},
		}, nil
	}
}
