// Package buildplan defines the already-parsed build instruction types
// buildengine consumes. Parsing a Dockerfile (or any other build syntax)
// into these types is an external collaborator's job — this package only
// names the AST shapes, matching the Non-goal that Dockerfile syntax
// parsing is out of scope.
package buildplan

// FromImage names the base image a build starts from. The base image is
// always required; building a fully-scratch image is not supported.
type FromImage struct {
	Ref      string
	Platform string
}

// CopyFile is one file staged into the synthesized top layer, source path
// on the build host and destination path inside the image.
type CopyFile struct {
	Src string
	Dst string
}

// EnvSet is a set of environment variables to merge into the config,
// rendered as KEY=VALUE strings in the order their keys sort.
type EnvSet map[string]string

// LabelSet is a set of labels to merge into the config. Ignored entirely
// when the target dialect is Docker v2 schema 2.
type LabelSet map[string]string

// Cmd overwrites the config's default command.
type Cmd []string

// Entrypoint overwrites the config's entrypoint.
type Entrypoint []string

// WorkDir overwrites the config's working directory.
type WorkDir string

// User overwrites the config's user.
type User string

// ExposePort adds one port/protocol pair (e.g. "80/tcp") to the config's
// exposed ports.
type ExposePort string

// Instruction is one step of a Plan, applied in order.
type Instruction interface {
	isInstruction()
}

func (CopyFile) isInstruction()   {}
func (EnvSet) isInstruction()     {}
func (LabelSet) isInstruction()   {}
func (Cmd) isInstruction()        {}
func (Entrypoint) isInstruction() {}
func (WorkDir) isInstruction()    {}
func (User) isInstruction()       {}
func (ExposePort) isInstruction() {}

// Plan is a complete, already-parsed build: the base image plus the
// ordered list of mutations to layer on top of it.
type Plan struct {
	From         FromImage
	Files        []CopyFile
	Instructions []Instruction
}
