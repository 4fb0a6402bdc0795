package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"stepls/internal/project"
)

func (s *Server) handleHover(ctx context.Context, msg *rpcMessage) error {
	var params textDocumentPositionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "invalid params")
	}
	info, err := s.positionInfo(ctx, params)
	if err != nil {
		return s.sendError(msg.ID, codeRequestCancelled, err.Error())
	}
	if info == nil || info.Element == nil {
		return s.sendResponse(msg.ID, nil)
	}
	def := info.Element.Binding
	if def == nil {
		def = info.Element.Definition
	}
	if def == nil {
		return s.sendResponse(msg.ID, nil)
	}
	s.mu.Lock()
	markdown := s.markdownHover
	s.mu.Unlock()
	rng := elementRange(info.Element, info.LineText)
	return s.sendResponse(msg.ID, hover{
		Contents: hoverContent(def, markdown),
		Range:    &rng,
	})
}

// hoverContent renders a definition: its signature, description and the
// list of arguments.
func hoverContent(def *project.StepDefinition, markdown bool) markupContent {
	var b strings.Builder
	if markdown {
		fmt.Fprintf(&b, "**%s** %s", def.Keyword, def.Text)
	} else {
		fmt.Fprintf(&b, "%s %s", def.Keyword, def.Text)
	}
	if def.Description != "" {
		b.WriteString("\n\n")
		b.WriteString(def.Description)
	}
	if len(def.Arguments) > 0 {
		if markdown {
			b.WriteString("\n\n#### Arguments\n")
		} else {
			b.WriteString("\n\nArguments:\n")
		}
		for _, arg := range def.Arguments {
			if markdown {
				fmt.Fprintf(&b, "\n- `%s`", arg)
			} else {
				fmt.Fprintf(&b, "\n  %s", arg)
			}
		}
	}
	if def.Extension != "" {
		fmt.Fprintf(&b, "\n\nProvided by extension %s", def.Extension)
	}
	kind := "plaintext"
	if markdown {
		kind = "markdown"
	}
	return markupContent{Kind: kind, Value: b.String()}
}

// positionInfo resolves a document position through the host. The result is
// nil for documents outside the workspace.
func (s *Server) positionInfo(ctx context.Context, params textDocumentPositionParams) (*project.PositionInfo, error) {
	rel, ok := s.relPath(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	text, ok := s.host.OpenContent(rel)
	if !ok {
		return nil, nil
	}
	line := lineAt(text, params.Position.Line)
	return s.host.PositionInfo(ctx, rel, toInt(params.Position.Line), runeColumn(line, params.Position.Character))
}
