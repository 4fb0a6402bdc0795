package project

// StepDefinition is a step that test files can bind to.
type StepDefinition struct {
	Keyword     string
	Text        string
	Description string
	Arguments   []string
	SourceFile  string
	Line        int
	Column      int
	// Extension names the extension that contributed the definition, if any.
	Extension string
}

// Scenario is one scenario of a feature.
type Scenario struct {
	Name  string
	Line  int
	Steps []*Element
}

// Feature is the feature declared by a test file.
type Feature struct {
	Name        string
	Description string
	Line        int
	Scenarios   []*Scenario
}

// CompileResult is the output of compiling one file.
type CompileResult struct {
	Messages  []Message
	Positions *PositionIndex
	// Feature is set for test files that declare one.
	Feature *Feature
	// Definitions is set for interaction files.
	Definitions []*StepDefinition
	// Steps lists the step references of a test file in source order.
	Steps []*Element
}

// LinkResult is the output of binding one file against the definitions of
// the whole project.
type LinkResult struct {
	Messages []Message
	// Positions is the compile index with step bindings applied, if any.
	Positions *PositionIndex
}

// FileResult is the latest result for one project file. It is either a
// *TestResult or an *InteractionResult.
type FileResult interface {
	Kind() FileKind
	// Primary returns the compile messages.
	Primary() []Message
	// Secondary returns the link or binding messages.
	Secondary() []Message
	Positions() *PositionIndex
	isFileResult()
}

// TestResult carries the compile and link result of a test file.
type TestResult struct {
	Compile *CompileResult
	Link    *LinkResult
}

func (*TestResult) isFileResult() {}

// Kind returns KindTest.
func (*TestResult) Kind() FileKind { return KindTest }

// Primary returns the compile messages.
func (r *TestResult) Primary() []Message {
	if r == nil || r.Compile == nil {
		return nil
	}
	return r.Compile.Messages
}

// Secondary returns the link messages.
func (r *TestResult) Secondary() []Message {
	if r == nil || r.Link == nil {
		return nil
	}
	return r.Link.Messages
}

// Positions returns the linked position index, falling back to the
// compile index when the file was not linked.
func (r *TestResult) Positions() *PositionIndex {
	if r == nil {
		return nil
	}
	if r.Link != nil && r.Link.Positions != nil {
		return r.Link.Positions
	}
	if r.Compile == nil {
		return nil
	}
	return r.Compile.Positions
}

// InteractionResult carries the compile and binding result of an interaction file.
type InteractionResult struct {
	Compile *CompileResult
	Binding *LinkResult
}

func (*InteractionResult) isFileResult() {}

// Kind returns KindInteraction.
func (*InteractionResult) Kind() FileKind { return KindInteraction }

// Primary returns the compile messages.
func (r *InteractionResult) Primary() []Message {
	if r == nil || r.Compile == nil {
		return nil
	}
	return r.Compile.Messages
}

// Secondary returns the binding messages.
func (r *InteractionResult) Secondary() []Message {
	if r == nil || r.Binding == nil {
		return nil
	}
	return r.Binding.Messages
}

// Positions returns the position index of the compiled file.
func (r *InteractionResult) Positions() *PositionIndex {
	if r == nil || r.Compile == nil {
		return nil
	}
	return r.Compile.Positions
}
