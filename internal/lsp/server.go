// Package lsp serves the step language over stdio JSON-RPC.
package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"stepls/internal/diagnostics"
	"stepls/internal/fileuri"
	"stepls/internal/project"
	"stepls/internal/trace"
	"stepls/internal/workspace"
)

var (
	// ErrExit signals a graceful shutdown after receiving "exit".
	ErrExit = errors.New("lsp exit")
	// ErrExitWithoutShutdown signals an "exit" without a preceding "shutdown".
	ErrExitWithoutShutdown = errors.New("lsp exit without shutdown")
)

// Watcher produces disk events for a workspace root until ctx is done.
type Watcher func(ctx context.Context, root string, host *workspace.Host) error

// ServerOptions configures LSP server behavior.
type ServerOptions struct {
	Compiler   project.Compiler
	Extensions project.ExtensionLoader
	Logger     workspace.Logger
	Tracer     trace.Tracer
	MaxDelay   time.Duration
	// Heartbeat is the interval of trace heartbeats; 0 disables them.
	Heartbeat time.Duration
	// Watch, when set, runs once the workspace root is known.
	Watch   Watcher
	Version string
}

// Server handles stdio JSON-RPC for the step language.
type Server struct {
	in     *bufio.Reader
	out    *bufio.Writer
	sendMu sync.Mutex
	mu     sync.Mutex

	host      *workspace.Host
	log       workspace.Logger
	tracer    trace.Tracer
	watch     Watcher
	heartbeat time.Duration
	version   string
	ctx       context.Context

	reqMu    sync.Mutex
	inflight map[string]*inflightRequest
	requests sync.WaitGroup

	rootReady         chan string
	shutdownRequested bool
	markdownHover     bool
	traceLSP          bool
}

// NewServer constructs a new LSP server and the workspace host it drives.
func NewServer(in io.Reader, out io.Writer, opts ServerOptions) *Server {
	s := &Server{
		in:        bufio.NewReader(in),
		out:       bufio.NewWriter(out),
		log:       opts.Logger,
		tracer:    opts.Tracer,
		watch:     opts.Watch,
		heartbeat: opts.Heartbeat,
		version:   opts.Version,
		ctx:       context.Background(),
		rootReady: make(chan string, 1),
		inflight:  make(map[string]*inflightRequest),
	}
	if s.log == nil {
		s.log = workspace.NewLogger(io.Discard, "error")
	}
	if s.tracer == nil {
		s.tracer = trace.Nop
	}
	s.host = workspace.NewHost(workspace.NewCoordinator(), workspace.Options{
		Compiler:   opts.Compiler,
		Extensions: opts.Extensions,
		Notifier:   s,
		Logger:     s.log,
		Tracer:     s.tracer,
		MaxDelay:   opts.MaxDelay,
	})
	return s
}

// Host returns the workspace host driven by the server.
func (s *Server) Host() *workspace.Host {
	return s.host
}

// Run serves LSP requests until exit or end of input. The background build
// consumer and the optional watcher run alongside the reader and stop with it.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(trace.WithTracer(ctx, s.tracer))
	defer cancel()
	s.ctx = ctx

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.host.Run(gctx)
	})
	g.Go(func() error {
		defer cancel()
		return s.readLoop()
	})
	if s.heartbeat > 0 {
		g.Go(func() error {
			trace.Heartbeat(gctx, s.tracer, s.heartbeat, s.pendingStatus)
			return nil
		})
	}
	if s.watch != nil {
		g.Go(func() error {
			select {
			case root := <-s.rootReady:
				if err := s.watch(gctx, root, s.host); err != nil {
					s.logf("file watcher stopped: %v", err)
				}
			case <-gctx.Done():
			}
			return nil
		})
	}
	err := g.Wait()
	s.requests.Wait()
	s.host.Coordinator().Close()
	return err
}

func (s *Server) pendingStatus() string {
	return fmt.Sprintf("pending=%d", s.host.Coordinator().Pending())
}

func (s *Server) readLoop() error {
	for {
		payload, err := readMessage(s.in)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		var msg rpcMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.logf("failed to parse message: %v", err)
			continue
		}
		if msg.Method == "" {
			continue
		}
		if err := s.handleMessage(&msg); err != nil {
			return err
		}
	}
}

func (s *Server) handleMessage(msg *rpcMessage) error {
	s.mu.Lock()
	traceLSP := s.traceLSP
	s.mu.Unlock()
	if traceLSP {
		s.logf("<- %s", msg.Method)
	}
	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "initialized":
		return nil
	case "shutdown":
		return s.handleShutdown(msg)
	case "exit":
		s.mu.Lock()
		requested := s.shutdownRequested
		s.mu.Unlock()
		if requested {
			return ErrExit
		}
		return ErrExitWithoutShutdown
	case "workspace/didChangeConfiguration":
		return s.handleDidChangeConfiguration(msg)
	case "workspace/didChangeWatchedFiles":
		return s.handleDidChangeWatchedFiles(msg)
	case "textDocument/didOpen":
		return s.handleDidOpen(msg)
	case "textDocument/didChange":
		return s.handleDidChange(msg)
	case "textDocument/didSave":
		return nil
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case "$/cancelRequest":
		return s.handleCancelRequest(msg)
	case "textDocument/hover":
		s.startRequest(msg, s.handleHover)
		return nil
	case "textDocument/completion":
		s.startRequest(msg, s.handleCompletion)
		return nil
	case "textDocument/definition":
		s.startRequest(msg, s.handleDefinition)
		return nil
	case "autostep/features":
		s.startRequest(msg, s.handleFeatures)
		return nil
	default:
		if len(msg.ID) > 0 {
			return s.sendError(msg.ID, codeMethodNotFound, "method not found")
		}
		return nil
	}
}

func (s *Server) handleInitialize(msg *rpcMessage) error {
	var params initializeParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.sendError(msg.ID, codeInvalidParams, "invalid params")
		}
	}
	root := ""
	if params.RootURI != "" {
		root = fileuri.ToPath(params.RootURI)
	}
	if root == "" && params.RootPath != "" {
		root = params.RootPath
	}
	if root == "" && len(params.WorkspaceFolders) > 0 {
		root = fileuri.ToPath(params.WorkspaceFolders[0].URI)
	}
	markdown := false
	for _, format := range params.Capabilities.TextDocument.Hover.ContentFormat {
		if format == "markdown" {
			markdown = true
			break
		}
	}
	s.mu.Lock()
	s.markdownHover = markdown
	s.mu.Unlock()

	result := initializeResult{
		Capabilities: serverCapabilities{
			TextDocumentSync: textDocumentSyncOptions{
				OpenClose: true,
				Change:    syncFull,
			},
			HoverProvider:      true,
			DefinitionProvider: true,
			CompletionProvider: &completionOptions{TriggerCharacters: []string{" "}},
		},
		ServerInfo: &serverInfo{Name: "stepls", Version: s.version},
	}
	if err := s.sendResponse(msg.ID, result); err != nil {
		return err
	}
	if root == "" {
		s.logf("initialize without a workspace root; no project will be loaded")
		return nil
	}
	if err := s.host.Initialize(root); err != nil {
		s.logf("initialize %s: %v", root, err)
		return nil
	}
	select {
	case s.rootReady <- s.host.Root():
	default:
	}
	return nil
}

func (s *Server) handleShutdown(msg *rpcMessage) error {
	s.mu.Lock()
	s.shutdownRequested = true
	s.mu.Unlock()
	return s.sendResponse(msg.ID, nil)
}

// relPath maps a document URI to a workspace path. ok is false for URIs the
// host cannot track.
func (s *Server) relPath(uri string) (string, bool) {
	path := fileuri.ToPath(uri)
	if path == "" {
		return "", false
	}
	rel, err := s.host.Relative(path)
	if err != nil {
		return "", false
	}
	return rel, true
}

func (s *Server) handleDidOpen(msg *rpcMessage) error {
	var params didOpenTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	rel, ok := s.relPath(params.TextDocument.URI)
	if !ok {
		return nil
	}
	s.host.OpenFile(rel, params.TextDocument.Text)
	return nil
}

func (s *Server) handleDidChange(msg *rpcMessage) error {
	var params didChangeTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	rel, ok := s.relPath(params.TextDocument.URI)
	if !ok {
		return nil
	}
	text, _ := s.host.OpenContent(rel)
	s.host.EditFile(rel, applyChanges(text, params.ContentChanges))
	return nil
}

func (s *Server) handleDidClose(msg *rpcMessage) error {
	var params didCloseTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	rel, ok := s.relPath(params.TextDocument.URI)
	if !ok {
		return nil
	}
	s.host.CloseFile(rel)
	if err := s.sendPublish(params.TextDocument.URI, nil); err != nil {
		s.logf("failed to clear diagnostics: %v", err)
	}
	return nil
}

func (s *Server) handleDidChangeWatchedFiles(msg *rpcMessage) error {
	var params didChangeWatchedFilesParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	for _, change := range params.Changes {
		rel, ok := s.relPath(change.URI)
		if !ok {
			continue
		}
		switch change.Type {
		case fileCreated:
			s.host.DiskFileCreated(rel)
		case fileChanged:
			s.host.DiskFileChanged(rel)
		case fileDeleted:
			s.host.DiskFileDeleted(rel)
		}
	}
	return nil
}

func (s *Server) handleFeatures(ctx context.Context, msg *rpcMessage) error {
	features, err := s.host.Features(ctx)
	if err != nil {
		return s.sendError(msg.ID, codeRequestCancelled, err.Error())
	}
	result := featuresResult{Features: make([]featureInfo, 0, len(features))}
	for _, f := range features {
		result.Features = append(result.Features, featureInfo{
			SourceFile:  f.SourceFile,
			Name:        f.Name,
			Description: f.Description,
		})
	}
	return s.sendResponse(msg.ID, result)
}

// PublishDiagnostics implements workspace.Notifier.
func (s *Server) PublishDiagnostics(uri string, diags []diagnostics.Diagnostic) error {
	return s.sendPublish(uri, toLSPDiagnostics(diags))
}

// BuildComplete implements workspace.Notifier.
func (s *Server) BuildComplete() error {
	return s.sendNotification("autostep/build_complete", nil)
}

// ShowError implements workspace.Notifier.
func (s *Server) ShowError(message string) error {
	return s.sendNotification("window/showMessage", showMessageParams{Type: messageTypeError, Message: message})
}

func (s *Server) sendResponse(id json.RawMessage, result any) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	}
	return s.send(msg)
}

func (s *Server) sendError(id json.RawMessage, code int, message string) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": rpcError{
			Code:    code,
			Message: message,
		},
	}
	return s.send(msg)
}

func (s *Server) sendNotification(method string, params any) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
	}
	if params != nil {
		msg["params"] = params
	}
	return s.send(msg)
}

func (s *Server) sendPublish(uri string, list []lspDiagnostic) error {
	if list == nil {
		list = []lspDiagnostic{}
	}
	return s.sendNotification("textDocument/publishDiagnostics", publishDiagnosticsParams{
		URI:         uri,
		Diagnostics: list,
	})
}

func (s *Server) send(msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := writeMessage(s.out, payload); err != nil {
		return err
	}
	return s.out.Flush()
}

func (s *Server) logf(format string, args ...any) {
	s.log.Infof("lsp: %s", fmt.Sprintf(format, args...))
}
