package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ThomasRohde/Agent0-sub003/plugin"
	"github.com/ThomasRohde/Agent0-sub003/value"
)

var httpGetSchema = map[string]any{
	"type":                 "object",
	"required":             []any{"url"},
	"additionalProperties": false,
	"properties": map[string]any{
		"url": map[string]any{"type": "string"},
	},
}

// HTTPGet builds the http.get tool (mode read). The cancellation
// handle passed by the evaluator (the budget accountant's
// context.Context) governs the request deadline directly.
func HTTPGet(client *http.Client) plugin.ToolDef {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return plugin.ToolDef{
		Name:       "http.get",
		Mode:       plugin.ModeRead,
		Capability: "http.get",
		Schema:     httpGetSchema,
		Execute: func(ctx context.Context, args value.Value) (value.Value, error) {
			urlV, _ := args.Get("url")
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlV.AsString(), nil)
			if err != nil {
				return value.Value{}, fmt.Errorf("http.get: %w", err)
			}
			resp, err := client.Do(req)
			if err != nil {
				return value.Value{}, fmt.Errorf("http.get: %w", err)
			}
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return value.Value{}, fmt.Errorf("http.get: reading body: %w", err)
			}
			return value.NewRecord([]value.Entry{
				{Key: "status", Value: value.NewNumber(float64(resp.StatusCode))},
				{Key: "body", Value: value.NewString(string(body))},
				{Key: "bytes", Value: value.NewNumber(float64(len(body)))},
			}), nil
		},
	}
}
