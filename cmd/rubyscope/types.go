package main

// CLIResult is the top-level envelope for every command's JSON and
// msgpack output.
type CLIResult struct {
	Command string `json:"command" msgpack:"command"`
	Results any    `json:"results" msgpack:"results"`
	Error   string `json:"error,omitempty" msgpack:"error,omitempty"`
}

// CLIFrame is one step of a scope path.
type CLIFrame struct {
	Kind string `json:"kind" msgpack:"kind"`
	Name string `json:"name" msgpack:"name"`
}

// CLIScope answers a scope query. Lines and columns are 1-based.
type CLIScope struct {
	File      string     `json:"file" msgpack:"file"`
	Offset    int        `json:"offset" msgpack:"offset"`
	Line      int        `json:"line" msgpack:"line"`
	Col       int        `json:"col" msgpack:"col"`
	Path      string     `json:"path" msgpack:"path"`
	Namespace string     `json:"namespace" msgpack:"namespace"`
	Frames    []CLIFrame `json:"frames" msgpack:"frames"`
}

// CLIDiagnostic is a syntax diagnostic with 1-based positions.
type CLIDiagnostic struct {
	File      string `json:"file" msgpack:"file"`
	Kind      string `json:"kind" msgpack:"kind"`
	Severity  string `json:"severity" msgpack:"severity"`
	Construct string `json:"construct" msgpack:"construct"`
	Message   string `json:"message" msgpack:"message"`
	StartLine int    `json:"start_line" msgpack:"start_line"`
	StartCol  int    `json:"start_col" msgpack:"start_col"`
	EndLine   int    `json:"end_line" msgpack:"end_line"`
	EndCol    int    `json:"end_col" msgpack:"end_col"`
	Snippet   string `json:"snippet,omitempty" msgpack:"snippet,omitempty"`
}

// CLISymbol is a class, module or method definition.
type CLISymbol struct {
	Name      string `json:"name" msgpack:"name"`
	Kind      string `json:"kind" msgpack:"kind"`
	Path      string `json:"path" msgpack:"path"`
	File      string `json:"file,omitempty" msgpack:"file,omitempty"`
	StartLine int    `json:"start_line" msgpack:"start_line"`
	StartCol  int    `json:"start_col" msgpack:"start_col"`
	EndLine   int    `json:"end_line" msgpack:"end_line"`
	EndCol    int    `json:"end_col" msgpack:"end_col"`
}

// CLINode is one flattened node.
type CLINode struct {
	ID    int    `json:"id" msgpack:"id"`
	Kind  string `json:"kind" msgpack:"kind"`
	Scope string `json:"scope" msgpack:"scope"`
	Opens string `json:"opens,omitempty" msgpack:"opens,omitempty"`
	Begin int    `json:"begin" msgpack:"begin"`
	End   int    `json:"end" msgpack:"end"`
	Line  int    `json:"line" msgpack:"line"`
}

// CLIDump is the full analysis of one file.
type CLIDump struct {
	File        string          `json:"file" msgpack:"file"`
	Fingerprint string          `json:"fingerprint" msgpack:"fingerprint"`
	Generation  uint64          `json:"generation" msgpack:"generation"`
	Failed      bool            `json:"failed" msgpack:"failed"`
	Outline     []CLISymbol     `json:"outline" msgpack:"outline"`
	Nodes       []CLINode       `json:"nodes" msgpack:"nodes"`
	Diagnostics []CLIDiagnostic `json:"diagnostics" msgpack:"diagnostics"`
}

// CLIFile summarizes one indexed file.
type CLIFile struct {
	Path        string `json:"path" msgpack:"path"`
	Failed      bool   `json:"failed" msgpack:"failed"`
	Nodes       int    `json:"nodes" msgpack:"nodes"`
	Scopes      int    `json:"scopes" msgpack:"scopes"`
	Diagnostics int    `json:"diagnostics" msgpack:"diagnostics"`
}
