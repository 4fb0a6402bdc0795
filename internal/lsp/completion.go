package lsp

import (
	"context"
	"encoding/json"
	"strings"
	"unicode"

	"stepls/internal/project"
	"stepls/internal/stepc"
)

var stepKeywords = []string{"Given", "When", "Then", "And"}

func (s *Server) handleCompletion(ctx context.Context, msg *rpcMessage) error {
	var params textDocumentPositionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "invalid params")
	}
	info, err := s.positionInfo(ctx, params)
	if err != nil {
		return s.sendError(msg.ID, codeRequestCancelled, err.Error())
	}
	empty := completionList{Items: []completionItem{}}
	if info == nil {
		return s.sendResponse(msg.ID, empty)
	}
	if info.Element != nil && info.Element.Kind == project.ElementStep {
		defs, err := s.host.Definitions(ctx)
		if err != nil {
			return s.sendError(msg.ID, codeRequestCancelled, err.Error())
		}
		return s.sendResponse(msg.ID, stepCompletions(info, defs))
	}
	if info.Element == nil && info.Scope == project.ScopeScenario && strings.TrimSpace(info.LineText) == "" {
		return s.sendResponse(msg.ID, keywordCompletions())
	}
	return s.sendResponse(msg.ID, empty)
}

// stepCompletions offers the definitions matching the step text typed before
// the cursor. Each item replaces that text.
func stepCompletions(info *project.PositionInfo, defs []*project.StepDefinition) completionList {
	line := []rune(info.LineText)
	cursor := min(max(info.Column-1, 0), len(line))
	start := min(max(info.Element.StartColumn-1, 0), cursor)

	// Skip the keyword as written, which may be "And", and the blanks after it.
	textStart := start
	for textStart < cursor && !unicode.IsSpace(line[textStart]) {
		textStart++
	}
	for textStart < cursor && unicode.IsSpace(line[textStart]) {
		textStart++
	}
	prefix := string(line[textStart:cursor])
	normalized := strings.Join(strings.Fields(prefix), " ")

	lineNo := safeUint32(info.Line - 1)
	rng := lspRange{
		Start: position{Line: lineNo, Character: utf16Column(info.LineText, textStart)},
		End:   position{Line: lineNo, Character: utf16Column(info.LineText, cursor)},
	}
	matches := stepc.PossibleDefinitions(defs, info.Element.Keyword, prefix)
	items := make([]completionItem, 0, len(matches))
	for _, def := range matches {
		item := completionItem{
			Label:     def.Text,
			Kind:      completionItemKindFunction,
			Detail:    def.Keyword,
			Preselect: def.Text == normalized,
			TextEdit:  &textEdit{Range: rng, NewText: def.Text},
		}
		if def.Description != "" {
			item.Documentation = &markupContent{Kind: "plaintext", Value: def.Description}
		}
		items = append(items, item)
	}
	return completionList{Items: items}
}

// keywordCompletions offers the step keywords on an empty scenario line.
func keywordCompletions() completionList {
	items := make([]completionItem, 0, len(stepKeywords))
	for _, kw := range stepKeywords {
		items = append(items, completionItem{
			Label:      kw,
			Kind:       completionItemKindKeyword,
			InsertText: kw + " ",
		})
	}
	return completionList{IsIncomplete: true, Items: items}
}
