package adapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Issue is one field-level validation failure.
type Issue struct {
	// Field is the document path of the offending field,
	// e.g. "outputEvents[2].emitAs".
	Field   string
	Message string
}

func (i Issue) String() string {
	return i.Field + ": " + i.Message
}

// ValidationError lists every field-level problem found in a document.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		parts[i] = is.String()
	}
	return "adapter: invalid config: " + strings.Join(parts, "; ")
}

// HasField reports whether any issue names field.
func (e *ValidationError) HasField(field string) bool {
	for _, is := range e.Issues {
		if is.Field == field {
			return true
		}
	}
	return false
}

// Parse decodes a JSON adapter document and validates it.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("adapter: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseResult is the outcome of SafeParse.
type ParseResult struct {
	OK     bool
	Config *Config
	Err    error
}

// SafeParse is Parse reported as a value: OK is true exactly when Config is
// set, otherwise Err describes the failure.
func SafeParse(data []byte) ParseResult {
	cfg, err := Parse(data)
	if err != nil {
		return ParseResult{Err: err}
	}
	return ParseResult{OK: true, Config: cfg}
}

// Validate checks the document's invariants and returns a *ValidationError
// naming every offending field, or nil.
func (c *Config) Validate() error {
	var issues []Issue
	add := func(field, msg string) {
		issues = append(issues, Issue{Field: field, Message: msg})
	}

	if c.Version != SupportedVersion {
		add("version", fmt.Sprintf("must be %d, got %d", SupportedVersion, c.Version))
	}
	if strings.TrimSpace(c.Name) == "" {
		add("name", "required")
	}
	switch {
	case len(c.Command) == 0:
		add("command", "required")
	case strings.TrimSpace(c.Command[0]) == "":
		add("command[0]", "binary must be non-empty")
	}
	for i, arg := range c.Command {
		if strings.ContainsRune(arg, '\x00') {
			add("command["+strconv.Itoa(i)+"]", "contains null byte")
		}
	}

	switch c.SessionMode {
	case "":
		add("sessionMode", "required")
	case ModeStream, ModeIterative:
	default:
		add("sessionMode", fmt.Sprintf("must be %q or %q, got %q", ModeStream, ModeIterative, c.SessionMode))
	}

	if c.Prompt.Flag != "" && c.Prompt.Stdin {
		add("prompt", "flag and stdin are mutually exclusive")
	}
	if c.Output == nil {
		add("output", "required")
	}
	for i, f := range c.AutoApprove {
		if f == "" {
			add("autoApprove["+strconv.Itoa(i)+"]", "must be non-empty")
		}
	}

	if c.Resume != nil {
		if c.Resume.Flag == "" {
			add("resume.flag", "required")
		}
		if c.Resume.SessionIDPath == "" {
			add("resume.sessionIdPath", "required")
		} else {
			compilePath(&issues, "resume.sessionIdPath", c.Resume.SessionIDPath)
		}
	}

	for i, ev := range c.Events {
		validateEvent(&issues, "outputEvents["+strconv.Itoa(i)+"]", ev)
	}

	if c.Result == nil {
		add("result", "required")
	} else {
		if c.Result.MatchPath == "" {
			add("result.matchPath", "required")
		} else {
			compilePath(&issues, "result.matchPath", c.Result.MatchPath)
		}
		if c.Result.MatchValue == "" {
			add("result.matchValue", "required")
		}
		if c.Result.ContentPath == "" {
			add("result.contentPath", "required")
		} else {
			compilePath(&issues, "result.contentPath", c.Result.ContentPath)
		}
	}

	if len(issues) == 0 {
		return nil
	}
	return &ValidationError{Issues: issues}
}

func validateEvent(issues *[]Issue, prefix string, ev EventMapping) {
	add := func(field, msg string) {
		*issues = append(*issues, Issue{Field: prefix + "." + field, Message: msg})
	}
	if ev.Match.Path == "" {
		add("match.path", "required")
	} else {
		compilePath(issues, prefix+".match.path", ev.Match.Path)
	}
	if ev.Match.Value == "" {
		add("match.value", "required")
	}
	if !ev.EmitAs.Valid() {
		add("emitAs", fmt.Sprintf("unknown update kind %q", ev.EmitAs))
	}
	if ev.Extract == nil {
		return
	}
	fields := [...]struct{ name, expr string }{
		{"content", ev.Extract.Content},
		{"title", ev.Extract.Title},
		{"status", ev.Extract.Status},
	}
	for _, f := range fields {
		if f.expr != "" {
			compilePath(issues, prefix+".extract."+f.name, f.expr)
		}
	}
}

// IsValidationError reports whether err carries a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
