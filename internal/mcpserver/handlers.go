package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/braindrive/docchat/internal/braindrive"
	"github.com/braindrive/docchat/internal/chat"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	// cutOffMarker ends an answer that did not finish.
	cutOffMarker = "[cut off]"
	// cancelTimeout bounds the backend cancel sent when a call is abandoned.
	cancelTimeout = 5 * time.Second
)

// registerTools registers the ask-documents and list-models tools.
func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("ask-documents",
			mcp.WithDescription("Ask a question about the indexed documents and receive the full answer"),
			mcp.WithString("prompt", mcp.Required(),
				mcp.Description("The question to ask"),
			),
			mcp.WithString("conversation_id",
				mcp.Description("Continue an existing conversation"),
			),
			mcp.WithString("model",
				mcp.Description("Model key as provider/server/name (default: configured model)"),
			),
			mcp.WithString("collection_id",
				mcp.Description("Restrict retrieval to one document collection"),
			),
		),
		s.handleAskDocuments,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("list-models",
			mcp.WithDescription("List the models the backend can answer with"),
		),
		s.handleListModels,
	)
}

// handleAskDocuments runs one prompt to completion. When the call is
// cancelled the backend is told to stop and the partial answer is returned
// with the cut-off marker.
func (s *Server) handleAskDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	if args == nil {
		return mcp.NewToolResultError("no arguments provided"), nil
	}
	prompt, _ := args["prompt"].(string)
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return mcp.NewToolResultError("missing or empty 'prompt' parameter"), nil
	}
	if s.opts.Transport == nil {
		return mcp.NewToolResultError("no backend configured"), nil
	}

	req := s.opts.Request
	req.Prompt = prompt
	if id, ok := args["conversation_id"].(string); ok && id != "" {
		req.ConversationID = id
	}
	if id, ok := args["collection_id"].(string); ok && id != "" {
		req.CollectionID = id
	}
	if key, ok := args["model"].(string); ok && key != "" {
		model, err := s.resolveModel(ctx, key)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		req.Model = model
	}

	var opts []chat.SessionOption
	if s.opts.Publisher != nil {
		opts = append(opts, chat.WithPublisher(s.opts.Publisher))
	}
	session := chat.NewSession(s.opts.Transport, opts...)

	// The prompt outlives the call context so a cancelled call can stop it
	// on the backend and still report what arrived. runCtx covers a cancel
	// that lands before the prompt is registered with the session.
	runCtx, cancelRun := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelRun()
	stop := context.AfterFunc(ctx, func() {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
		defer cancel()
		session.StopGeneration(cctx)
		cancelRun()
	})
	defer stop()

	if err := ctx.Err(); err != nil {
		return mcp.NewToolResultError("request cancelled"), nil
	}
	reply := chat.NewPlaceholder()
	outcome, err := session.SendPrompt(runCtx, req, reply, chat.Callbacks{})
	if err != nil {
		s.log.Warn("ask-documents failed: %v", err)
		return mcp.NewToolResultError(fmt.Sprintf("request failed: %v", err)), nil
	}

	answer := reply.Content
	if outcome == chat.OutcomeStopped || outcome == chat.OutcomeAborted || reply.IsCutOff {
		answer = strings.TrimRight(answer, "\n") + "\n" + cutOffMarker
	}

	result := mcp.NewToolResultText(answer)
	if id := session.ConversationID(); id != "" {
		result.Content = append(result.Content, mcp.NewTextContent("conversation_id: "+id))
	}
	return result, nil
}

func (s *Server) resolveModel(ctx context.Context, key string) (chat.Model, error) {
	if s.opts.Models == nil {
		return chat.Model{}, fmt.Errorf("model %q: no model list available", key)
	}
	models, err := s.opts.Models.ListModels(ctx)
	if err != nil {
		return chat.Model{}, fmt.Errorf("list models: %w", err)
	}
	model, ok := braindrive.FindModel(models, key)
	if !ok {
		return chat.Model{}, fmt.Errorf("unknown model %q", key)
	}
	return model, nil
}

// modelInfo is the list-models entry.
type modelInfo struct {
	Key      string `json:"key"`
	Provider string `json:"provider"`
	ServerID string `json:"server_id"`
	Server   string `json:"server,omitempty"`
	Name     string `json:"name"`
}

// handleListModels returns the backend's models as JSON.
func (s *Server) handleListModels(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.opts.Models == nil {
		return mcp.NewToolResultError("no backend configured"), nil
	}
	models, err := s.opts.Models.ListModels(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list models: %v", err)), nil
	}

	infos := make([]modelInfo, 0, len(models))
	for _, m := range models {
		infos = append(infos, modelInfo{
			Key:      m.Key(),
			Provider: m.Provider,
			ServerID: m.ServerID,
			Server:   m.ServerName,
			Name:     m.Name,
		})
	}
	output, err := json.Marshal(infos)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode models: %v", err)), nil
	}
	return mcp.NewToolResultText(string(output)), nil
}
