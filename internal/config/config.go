// Package config loads bridge settings from an optional config file and the
// environment. Environment variables take priority over the file.
//
// The file may be JSON or CUE. Either way it is evaluated with CUE and
// unified with the embedded #Settings schema, so unknown keys and wrongly
// typed values are reported with their file position.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/caarlos0/env/v11"
)

//go:embed schema.cue
var schemaSource string

// Defaults for optional settings.
const (
	DefaultTrelloAPI   = "https://api.trello.com/1"
	DefaultZulipSite   = "https://zulip.com"
	DefaultDB          = ".trello-to-zulip.db"
	DefaultNATSSubject = "trello.narrations"
	DefaultWebhookAddr = ":8080"
)

// Settings is the resolved configuration.
type Settings struct {
	TrelloKey      string   `env:"TRELLO_KEY"`
	TrelloToken    string   `env:"TRELLO_TOKEN"`
	TrelloOrg      string   `env:"TRELLO_ORG"`
	TrelloAPI      string   `env:"TRELLO_API"`
	TrelloBoardIDs []string `env:"TRELLO_BOARD_IDS" envSeparator:","`

	ZulipEmail  string `env:"ZULIP_EMAIL"`
	ZulipKey    string `env:"ZULIP_KEY"`
	ZulipStream string `env:"ZULIP_STREAM"`
	ZulipSite   string `env:"ZULIP_SITE"`

	DB                string `env:"T2Z_DB"`
	FailureDir        string `env:"T2Z_FAILURE_DIR"`
	FailureS3Bucket   string `env:"T2Z_FAILURE_S3_BUCKET"`
	FailureS3Prefix   string `env:"T2Z_FAILURE_S3_PREFIX"`
	FailureS3Region   string `env:"T2Z_FAILURE_S3_REGION"`
	FailureS3Endpoint string `env:"T2Z_FAILURE_S3_ENDPOINT"`
	NATSURL           string `env:"T2Z_NATS_URL"`
	NATSSubject       string `env:"T2Z_NATS_SUBJECT"`
	WebhookAddr       string `env:"T2Z_WEBHOOK_ADDR"`
}

// Setting names checked by commands.
var (
	TrelloSettings = []string{"TRELLO_KEY", "TRELLO_TOKEN", "TRELLO_ORG"}
	ZulipSettings  = []string{"ZULIP_EMAIL", "ZULIP_KEY", "ZULIP_STREAM"}
)

// fileSettings mirrors #Settings for decoding an evaluated config file.
type fileSettings struct {
	TrelloKey      string `json:"TRELLO_KEY"`
	TrelloToken    string `json:"TRELLO_TOKEN"`
	TrelloOrg      string `json:"TRELLO_ORG"`
	TrelloAPI      string `json:"TRELLO_API"`
	TrelloBoardIDs any    `json:"TRELLO_BOARD_IDS"`

	ZulipEmail  string `json:"ZULIP_EMAIL"`
	ZulipKey    string `json:"ZULIP_KEY"`
	ZulipStream string `json:"ZULIP_STREAM"`
	ZulipSite   string `json:"ZULIP_SITE"`

	DB                string `json:"T2Z_DB"`
	FailureDir        string `json:"T2Z_FAILURE_DIR"`
	FailureS3Bucket   string `json:"T2Z_FAILURE_S3_BUCKET"`
	FailureS3Prefix   string `json:"T2Z_FAILURE_S3_PREFIX"`
	FailureS3Region   string `json:"T2Z_FAILURE_S3_REGION"`
	FailureS3Endpoint string `json:"T2Z_FAILURE_S3_ENDPOINT"`
	NATSURL           string `json:"T2Z_NATS_URL"`
	NATSSubject       string `json:"T2Z_NATS_SUBJECT"`
	WebhookAddr       string `json:"T2Z_WEBHOOK_ADDR"`
}

// FileError is a config file problem, positioned when CUE knows where.
type FileError struct {
	Message string
	Pos     token.Pos
}

func (e *FileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// MissingSettingError reports a required setting with no value.
type MissingSettingError struct {
	Name string
}

func (e *MissingSettingError) Error() string {
	return "setting not present in config: " + e.Name
}

// IsMissingSetting reports whether err is a MissingSettingError.
func IsMissingSetting(err error) bool {
	var target *MissingSettingError
	return errors.As(err, &target)
}

// Options control where Load reads from.
type Options struct {
	// Path is the config file. Empty means environment only.
	Path string
	// Environ replaces the process environment when non-nil.
	Environ map[string]string
}

// Load resolves settings: file first, then environment, then defaults.
func Load(opts Options) (*Settings, error) {
	s := &Settings{}
	if opts.Path != "" {
		data, err := os.ReadFile(opts.Path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := decodeFile(s, opts.Path, data); err != nil {
			return nil, err
		}
	}

	if err := env.ParseWithOptions(s, env.Options{Environment: opts.Environ}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	s.TrelloBoardIDs = cleanIDs(s.TrelloBoardIDs)
	s.applyDefaults()
	return s, nil
}

// Parse evaluates config file contents and returns the settings they
// define, without environment overrides or defaults.
func Parse(filename string, data []byte) (*Settings, error) {
	s := &Settings{}
	if err := decodeFile(s, filename, data); err != nil {
		return nil, err
	}
	s.TrelloBoardIDs = cleanIDs(s.TrelloBoardIDs)
	return s, nil
}

func decodeFile(s *Settings, filename string, data []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile settings schema: %w", err)
	}

	file := ctx.CompileBytes(data, cue.Filename(filename))
	if err := file.Err(); err != nil {
		return fileError(err)
	}

	v := schema.LookupPath(cue.ParsePath("#Settings")).Unify(file)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fileError(err)
	}

	var f fileSettings
	if err := v.Decode(&f); err != nil {
		return fileError(err)
	}

	ids, err := boardIDs(f.TrelloBoardIDs)
	if err != nil {
		return &FileError{Message: err.Error()}
	}

	*s = Settings{
		TrelloKey:         f.TrelloKey,
		TrelloToken:       f.TrelloToken,
		TrelloOrg:         f.TrelloOrg,
		TrelloAPI:         f.TrelloAPI,
		TrelloBoardIDs:    ids,
		ZulipEmail:        f.ZulipEmail,
		ZulipKey:          f.ZulipKey,
		ZulipStream:       f.ZulipStream,
		ZulipSite:         f.ZulipSite,
		DB:                f.DB,
		FailureDir:        f.FailureDir,
		FailureS3Bucket:   f.FailureS3Bucket,
		FailureS3Prefix:   f.FailureS3Prefix,
		FailureS3Region:   f.FailureS3Region,
		FailureS3Endpoint: f.FailureS3Endpoint,
		NATSURL:           f.NATSURL,
		NATSSubject:       f.NATSSubject,
		WebhookAddr:       f.WebhookAddr,
	}
	return nil
}

// fileError converts the first CUE error into a FileError.
func fileError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &FileError{Message: err.Error()}
	}
	first := errs[0]
	format, args := first.Msg()
	msg := fmt.Sprintf(format, args...)
	if path := first.Path(); len(path) > 0 {
		msg = strings.Join(path, ".") + ": " + msg
	}
	return &FileError{Message: msg, Pos: first.Position()}
}

// boardIDs accepts a comma-separated string or a list of strings.
func boardIDs(v any) ([]string, error) {
	switch ids := v.(type) {
	case nil:
		return nil, nil
	case string:
		return strings.Split(ids, ","), nil
	case []any:
		out := make([]string, 0, len(ids))
		for _, id := range ids {
			s, ok := id.(string)
			if !ok {
				return nil, fmt.Errorf("TRELLO_BOARD_IDS: expected string, got %T", id)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("TRELLO_BOARD_IDS: expected string or list, got %T", v)
	}
}

func cleanIDs(ids []string) []string {
	var out []string
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func (s *Settings) applyDefaults() {
	if s.TrelloAPI == "" {
		s.TrelloAPI = DefaultTrelloAPI
	}
	if s.ZulipSite == "" {
		s.ZulipSite = DefaultZulipSite
	}
	if s.DB == "" {
		s.DB = DefaultDB
	}
	if s.NATSSubject == "" {
		s.NATSSubject = DefaultNATSSubject
	}
	if s.WebhookAddr == "" {
		s.WebhookAddr = DefaultWebhookAddr
	}
}

// Value returns the value of a setting by its name. Board IDs are joined
// with commas.
func (s *Settings) Value(name string) (string, bool) {
	switch name {
	case "TRELLO_KEY":
		return s.TrelloKey, true
	case "TRELLO_TOKEN":
		return s.TrelloToken, true
	case "TRELLO_ORG":
		return s.TrelloOrg, true
	case "TRELLO_API":
		return s.TrelloAPI, true
	case "TRELLO_BOARD_IDS":
		return strings.Join(s.TrelloBoardIDs, ","), true
	case "ZULIP_EMAIL":
		return s.ZulipEmail, true
	case "ZULIP_KEY":
		return s.ZulipKey, true
	case "ZULIP_STREAM":
		return s.ZulipStream, true
	case "ZULIP_SITE":
		return s.ZulipSite, true
	case "T2Z_DB":
		return s.DB, true
	case "T2Z_FAILURE_DIR":
		return s.FailureDir, true
	case "T2Z_FAILURE_S3_BUCKET":
		return s.FailureS3Bucket, true
	case "T2Z_FAILURE_S3_PREFIX":
		return s.FailureS3Prefix, true
	case "T2Z_FAILURE_S3_REGION":
		return s.FailureS3Region, true
	case "T2Z_FAILURE_S3_ENDPOINT":
		return s.FailureS3Endpoint, true
	case "T2Z_NATS_URL":
		return s.NATSURL, true
	case "T2Z_NATS_SUBJECT":
		return s.NATSSubject, true
	case "T2Z_WEBHOOK_ADDR":
		return s.WebhookAddr, true
	}
	return "", false
}

// Require returns a MissingSettingError for the first named setting that
// is empty.
func (s *Settings) Require(names ...string) error {
	for _, name := range names {
		v, ok := s.Value(name)
		if !ok {
			return fmt.Errorf("unknown setting %q", name)
		}
		if v == "" {
			return &MissingSettingError{Name: name}
		}
	}
	return nil
}
