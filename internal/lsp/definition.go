package lsp

import (
	"context"
	"encoding/json"
	"path/filepath"

	"stepls/internal/fileuri"
	"stepls/internal/project"
)

func (s *Server) handleDefinition(ctx context.Context, msg *rpcMessage) error {
	var params textDocumentPositionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "invalid params")
	}
	info, err := s.positionInfo(ctx, params)
	if err != nil {
		return s.sendError(msg.ID, codeRequestCancelled, err.Error())
	}
	if info == nil || info.Element == nil || info.Element.Binding == nil {
		return s.sendResponse(msg.ID, []location{})
	}
	loc, ok := s.definitionLocation(info.Element.Binding)
	if !ok {
		return s.sendResponse(msg.ID, []location{})
	}
	return s.sendResponse(msg.ID, []location{loc})
}

// definitionLocation points at the defining line of def, either a project
// file or an extension script.
func (s *Server) definitionLocation(def *project.StepDefinition) (location, bool) {
	uri, ok := s.host.GetPathURI(def.SourceFile)
	if !ok {
		if def.SourceFile == "" {
			return location{}, false
		}
		path := filepath.FromSlash(def.SourceFile)
		if !filepath.IsAbs(path) {
			path = filepath.Join(s.host.Root(), path)
		}
		uri = fileuri.FromPath(path)
	}
	pos := position{Line: safeUint32(def.Line - 1), Character: safeUint32(def.Column - 1)}
	return location{URI: uri, Range: lspRange{Start: pos, End: pos}}, true
}
