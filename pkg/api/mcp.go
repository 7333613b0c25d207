package api

import (
	"fmt"
	"strings"

	"github.com/hazyhaar/medrecon/pkg/kit"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterMCPTools registers the engine operations as MCP tools.
func RegisterMCPTools(srv *server.MCPServer, e *Engine) {
	registerImport(srv, e)
	registerScan(srv, e)
	registerPropose(srv, e)
	registerExecute(srv, e)
}

func registerImport(srv *server.MCPServer, e *Engine) {
	tool := mcp.NewTool("import_csv",
		mcp.WithDescription("Import a CSV patient export, resolving each row to an existing or new patient record. Returns the import counters."),
		mcp.WithString("format", mcp.Required(), mcp.Description("Import format: "+strings.Join(formatIDs(), ", "))),
		mcp.WithString("patients_file", mcp.Required(), mcp.Description("Path to the patients CSV file")),
		mcp.WithString("visits_file", mcp.Description("Path to the companion appointments CSV (paired-export only)")),
	)

	kit.RegisterMCPTool(srv, tool, importEndpoint(e), func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		args := req.GetArguments()
		format, _ := args["format"].(string)
		patients, _ := args["patients_file"].(string)
		visits, _ := args["visits_file"].(string)
		return &kit.MCPDecodeResult{Request: &importReq{
			Format:       format,
			PatientsFile: patients,
			VisitsFile:   visits,
		}}, nil
	})
}

func registerScan(srv *server.MCPServer, e *Engine) {
	tool := mcp.NewTool("scan_duplicates",
		mcp.WithDescription("Scan the whole patient store for probable duplicate records and return the clusters, largest first."),
	)

	kit.RegisterMCPTool(srv, tool, scanEndpoint(e), func(_ mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	})
}

func registerPropose(srv *server.MCPServer, e *Engine) {
	tool := mcp.NewTool("propose_merge",
		mcp.WithDescription("Score a duplicate cluster: pick the merge target, auto-resolve agreeing fields, and list the fields that need an explicit decision."),
		mcp.WithString("member_ids", mcp.Required(), mcp.Description("Comma-separated patient ids of the cluster")),
	)

	kit.RegisterMCPTool(srv, tool, proposeEndpoint(e), func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		args := req.GetArguments()
		idsStr, _ := args["member_ids"].(string)
		ids := splitTrim(idsStr)
		if len(ids) < 2 {
			return nil, fmt.Errorf("member_ids needs at least 2 ids")
		}
		return &kit.MCPDecodeResult{Request: &proposeReq{MemberIDs: ids}}, nil
	})
}

func registerExecute(srv *server.MCPServer, e *Engine) {
	tool := mcp.NewTool("execute_merge",
		mcp.WithDescription("Execute a decided merge: reparent visits, apply the final payload to the target, delete the absorbed sources."),
		mcp.WithString("target_id", mcp.Required(), mcp.Description("Patient id that survives the merge")),
		mcp.WithString("source_ids", mcp.Required(), mcp.Description("Comma-separated patient ids to absorb")),
		mcp.WithObject("payload", mcp.Description("Final field payload: field key -> chosen value")),
		mcp.WithString("group_key", mcp.Description("Cluster key from scan_duplicates; defaults to target_id")),
	)

	kit.RegisterMCPTool(srv, tool, executeEndpoint(e), func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		args := req.GetArguments()
		target, _ := args["target_id"].(string)
		groupKey, _ := args["group_key"].(string)
		sources := splitTrim(argString(args, "source_ids"))

		payload := map[string]string{}
		if raw, ok := args["payload"].(map[string]any); ok {
			for k, v := range raw {
				if s, ok := v.(string); ok {
					payload[k] = s
				}
			}
		}
		return &kit.MCPDecodeResult{Request: &executeReq{
			GroupKey:  groupKey,
			TargetID:  target,
			SourceIDs: sources,
			Payload:   payload,
		}}, nil
	})
}

func argString(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func splitTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
