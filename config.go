package copilot

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is shared across the package the way Sentinel-Gate's config
// package keeps one *validator.Validate for every inbound config struct,
// rather than constructing one per call.
var validate = validator.New(validator.WithRequiredStructEnabled())

// validateSessionConfig runs struct-tag validation over a SessionConfig
// before it is sent to the agent (§6, SPEC_FULL.md ambient stack), so a
// malformed Tool, McpServer URL, or reasoningEffort value fails fast on the
// client side instead of round-tripping to the agent process first.
func validateSessionConfig(cfg SessionConfig) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid session config: %w", err)
	}
	for name, srv := range cfg.McpServers {
		if err := validate.Struct(srv); err != nil {
			return fmt.Errorf("invalid mcpServers[%q]: %w", name, err)
		}
	}
	return nil
}

// ReasoningEffort selects the model's reasoning budget for a session (§6).
type ReasoningEffort string

const (
	ReasoningLow    ReasoningEffort = "low"
	ReasoningMedium ReasoningEffort = "medium"
	ReasoningHigh   ReasoningEffort = "high"
	ReasoningXHigh  ReasoningEffort = "xhigh"
)

// AzureConfig carries Azure-specific provider settings (§6 providerConfig.azure).
type AzureConfig struct {
	Endpoint       string `json:"endpoint,omitempty"`
	DeploymentName string `json:"deploymentName,omitempty"`
	APIVersion     string `json:"apiVersion,omitempty"`
}

// ProviderConfig carries model-provider wiring overrides (§6).
type ProviderConfig struct {
	BearerToken string       `json:"bearerToken,omitempty"`
	WireAPI     string       `json:"wireApi,omitempty"`
	Azure       *AzureConfig `json:"azure,omitempty" validate:"omitempty"`
}

// InfiniteSessionConfig controls automatic context compaction behavior for
// long-running sessions (§6).
type InfiniteSessionConfig struct {
	Enabled          bool `json:"enabled"`
	CompactThreshold int  `json:"compactThreshold,omitempty"`
}

// EnvValueMode controls how the agent is told to source environment
// variable values it requests from the client (§6, §4.5 capability flags).
type EnvValueMode string

const (
	EnvValueModeInherit EnvValueMode = "inherit"
	EnvValueModePrompt  EnvValueMode = "prompt"
	EnvValueModeDeny    EnvValueMode = "deny"
)

// McpServerConfig is the sealed variant set for an MCP server attachment
// (§6): either a Local (stdio command) or a Remote (URL) server. Concrete
// types implement the unexported marker method; marshalMcpServers produces
// the wire object keyed by server name (§8 "mcpServers must serialize as an
// object keyed by server name").
type McpServerConfig interface {
	isMcpServerConfig()
	mcpWire() mcpServerWire
}

// LocalMcpServer launches an MCP server as a local subprocess.
type LocalMcpServer struct {
	Command string            `json:"command" validate:"required"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

func (LocalMcpServer) isMcpServerConfig() {}
func (l LocalMcpServer) mcpWire() mcpServerWire {
	return mcpServerWire{Type: "local", Command: l.Command, Args: l.Args, Env: l.Env}
}

// RemoteMcpServer attaches an MCP server reachable over HTTP(S).
type RemoteMcpServer struct {
	URL     string            `json:"url" validate:"required,url"`
	Headers map[string]string `json:"headers,omitempty"`
}

func (RemoteMcpServer) isMcpServerConfig() {}
func (r RemoteMcpServer) mcpWire() mcpServerWire {
	return mcpServerWire{Type: "remote", URL: r.URL, Headers: r.Headers}
}

// mcpServerWire is the flattened wire shape for either McpServerConfig variant.
type mcpServerWire struct {
	Type    string            `json:"type"`
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// marshalMcpServers renders a name→config map as the wire object (§8).
func marshalMcpServers(servers map[string]McpServerConfig) (json.RawMessage, error) {
	if len(servers) == 0 {
		return json.Marshal(map[string]mcpServerWire{})
	}
	out := make(map[string]mcpServerWire, len(servers))
	for name, cfg := range servers {
		out[name] = cfg.mcpWire()
	}
	return json.Marshal(out)
}

// Attachment is the sealed variant set for a message attachment (§6): a
// File, a Directory, or a Selection within a file.
type Attachment interface {
	isAttachment()
	attachmentWire() attachmentWire
}

// FileAttachment references a whole file by path.
type FileAttachment struct {
	Path string
}

func (FileAttachment) isAttachment() {}
func (f FileAttachment) attachmentWire() attachmentWire {
	return attachmentWire{Type: "file", Path: f.Path}
}

// DirectoryAttachment references a whole directory by path.
type DirectoryAttachment struct {
	Path string
}

func (DirectoryAttachment) isAttachment() {}
func (d DirectoryAttachment) attachmentWire() attachmentWire {
	return attachmentWire{Type: "directory", Path: d.Path}
}

// SelectionPosition identifies a range within a file. Per §6/§8, the wire
// field is "character", never "column" — a common naming trap this type
// exists specifically to get right.
type SelectionPosition struct {
	StartLine      int `json:"startLine"`
	StartCharacter int `json:"startCharacter"`
	EndLine        int `json:"endLine"`
	EndCharacter   int `json:"endCharacter"`
}

// SelectionAttachment references a specific range within a file.
type SelectionAttachment struct {
	Path string
	SelectionPosition
}

func (SelectionAttachment) isAttachment() {}
func (s SelectionAttachment) attachmentWire() attachmentWire {
	return attachmentWire{
		Type:           "selection",
		Path:           s.Path,
		StartLine:      s.StartLine,
		StartCharacter: s.StartCharacter,
		EndLine:        s.EndLine,
		EndCharacter:   s.EndCharacter,
	}
}

// attachmentWire is the flattened wire shape for any Attachment variant.
type attachmentWire struct {
	Type           string `json:"type"`
	Path           string `json:"path"`
	StartLine      int    `json:"startLine,omitempty"`
	StartCharacter int    `json:"startCharacter,omitempty"`
	EndLine        int    `json:"endLine,omitempty"`
	EndCharacter   int    `json:"endCharacter,omitempty"`
}

func marshalAttachments(atts []Attachment) []attachmentWire {
	if len(atts) == 0 {
		return nil
	}
	out := make([]attachmentWire, len(atts))
	for i, a := range atts {
		out[i] = a.attachmentWire()
	}
	return out
}

// MessageMode selects send semantics for Session.Send (§4.5). The wire
// values are exactly "enqueue" and "immediate" — never an internal agent
// mode name (§8 boundary case).
type MessageMode string

const (
	ModeEnqueue   MessageMode = "enqueue"
	ModeImmediate MessageMode = "immediate"
)

// SendOptions configures a single Session.Send call (§4.5).
type SendOptions struct {
	Mode        MessageMode
	Attachments []Attachment
}

// SessionConfig configures session.create (§6). mcpServers is always
// present (possibly empty) per the wire contract (§8).
type SessionConfig struct {
	Model           string                     `json:"model,omitempty"`
	Mode            string                     `json:"mode,omitempty"`
	Tools           []Tool                     `json:"-" validate:"dive"`
	Hooks           map[HookKind][]HookHandler `json:"-"`
	OnPermission    PermissionHandler          `json:"-"`
	OnUserInput     UserInputHandler           `json:"-"`
	McpServers      map[string]McpServerConfig `json:"-"`
	InfiniteSess    *InfiniteSessionConfig     `json:"infiniteSessions,omitempty"`
	AutoStart       *bool                      `json:"-"`
	EnvValueMode    EnvValueMode               `json:"envValueMode,omitempty"`
	ProviderConfig  *ProviderConfig            `json:"providerConfig,omitempty" validate:"omitempty"`
	ReasoningEffort ReasoningEffort            `json:"reasoningEffort,omitempty" validate:"omitempty,oneof=low medium high xhigh"`
	WorkspacePath   string                     `json:"workspacePath,omitempty"`
}

// autoStart reports the effective AutoStart value, defaulting to true (§6).
func (c SessionConfig) autoStart() bool {
	if c.AutoStart == nil {
		return true
	}
	return *c.AutoStart
}

// capabilityFlags computes which client-side handlers are populated, for
// the session.create capability declaration (§4.5, §9: "Compute these from
// the populated registries at create time, not from static defaults").
func (c SessionConfig) capabilityFlags() capabilityFlags {
	return capabilityFlags{
		RequestPermission: c.OnPermission != nil,
		RequestUserInput:  c.OnUserInput != nil,
		Hooks:             len(c.Hooks) > 0,
		EnvValueMode:      c.EnvValueMode,
	}
}

type capabilityFlags struct {
	RequestPermission bool         `json:"requestPermission"`
	RequestUserInput  bool         `json:"requestUserInput"`
	Hooks             bool         `json:"hooks"`
	EnvValueMode      EnvValueMode `json:"envValueMode,omitempty"`
}

// ResumeSessionConfig mirrors SessionConfig for session.resume by embedding
// it, so it carries exactly SessionConfig's fields; SessionID, which
// identifies the session being resumed, is its only field of its own.
// Every embedded field forwards through unchanged, per §4.4
// ("resumeSession... forwards ALL configured fields, not only the id").
type ResumeSessionConfig struct {
	SessionID string
	SessionConfig
}
