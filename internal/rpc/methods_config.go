package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"

	"github.com/codex-agent/agentcore/internal/config"
)

// ConfigService backs the config.* RPC method family (spec §6), wrapping the
// layer set a single-user CLI process loads at startup plus the write path
// for persisting edits back to the user's config.toml.
type ConfigService struct {
	CodexHome   string
	ProjectDirs []string
	Overrides   config.LoaderOverrides
}

// RegisterConfigMethods binds config.read, config.value_write, and
// config.batch_write onto p.
func RegisterConfigMethods(p *Processor, svc *ConfigService) {
	p.Register("config.read", svc.handleRead)
	p.Register("config.value_write", svc.handleValueWrite)
	p.Register("config.batch_write", svc.handleBatchWrite)
}

type configReadParams struct {
	IncludeLayers bool `json:"include_layers"`
}

type configReadResult struct {
	Config  map[string]any                 `json:"config"`
	Origins map[string]config.LayerMetadata `json:"origins"`
	Layers  []configLayerView               `json:"layers,omitempty"`
}

type configLayerView struct {
	Source  config.Source `json:"source"`
	Version string        `json:"version"`
}

func (s *ConfigService) handleRead(_ context.Context, params json.RawMessage) (interface{}, *Error) {
	var req configReadParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, &Error{Code: CodeInvalidInput, Message: "config.read: " + err.Error()}
		}
	}

	stack, err := s.loadStack()
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: err.Error()}
	}

	result := configReadResult{
		Config:  stack.EffectiveConfig(),
		Origins: stack.Origins(),
	}
	if req.IncludeLayers {
		for _, l := range stack.GetLayers(config.LowestPrecedenceFirst, false) {
			result.Layers = append(result.Layers, configLayerView{Source: l.Source, Version: l.Version})
		}
	}
	return result, nil
}

func (s *ConfigService) loadStack() (*config.Stack, error) {
	layers, err := config.LoadLayers(s.CodexHome, s.ProjectDirs, s.Overrides)
	if err != nil {
		return nil, err
	}
	return config.New(layers)
}

func (s *ConfigService) userConfigPath() string {
	return filepath.Join(s.CodexHome, "config.toml")
}

type configValueWriteParams struct {
	FilePath        string               `json:"file_path,omitempty"`
	KeyPath         string               `json:"key_path"`
	Value           any                  `json:"value"`
	MergeStrategy   config.MergeStrategy `json:"merge_strategy"`
	ExpectedVersion string               `json:"expected_version,omitempty"`
}

type configWriteResult struct {
	Status   config.WriteStatus `json:"status"`
	FilePath string             `json:"file_path"`
}

func (s *ConfigService) handleValueWrite(_ context.Context, params json.RawMessage) (interface{}, *Error) {
	var req configValueWriteParams
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, &Error{Code: CodeInvalidInput, Message: "config.value_write: " + err.Error()}
	}
	if req.KeyPath == "" {
		return nil, &Error{Code: CodeInvalidInput, Message: "config.value_write: key_path is required"}
	}

	path := req.FilePath
	if path == "" {
		path = s.userConfigPath()
	}

	result, err := config.ValueWrite(path, req.KeyPath, req.Value, req.MergeStrategy, req.ExpectedVersion)
	return writeOutcome(result, err)
}

type configEditParams struct {
	KeyPath       string               `json:"key_path"`
	Value         any                  `json:"value"`
	MergeStrategy config.MergeStrategy `json:"merge_strategy"`
}

type configBatchWriteParams struct {
	FilePath        string             `json:"file_path,omitempty"`
	Edits           []configEditParams `json:"edits"`
	ExpectedVersion string             `json:"expected_version,omitempty"`
}

func (s *ConfigService) handleBatchWrite(_ context.Context, params json.RawMessage) (interface{}, *Error) {
	var req configBatchWriteParams
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, &Error{Code: CodeInvalidInput, Message: "config.batch_write: " + err.Error()}
	}
	if len(req.Edits) == 0 {
		return nil, &Error{Code: CodeInvalidInput, Message: "config.batch_write: edits must not be empty"}
	}

	path := req.FilePath
	if path == "" {
		path = s.userConfigPath()
	}

	edits := make([]config.Edit, len(req.Edits))
	for i, e := range req.Edits {
		edits[i] = config.Edit{KeyPath: e.KeyPath, Value: e.Value, MergeStrategy: e.MergeStrategy}
	}

	result, err := config.BatchWrite(path, edits, req.ExpectedVersion)
	return writeOutcome(result, err)
}

func writeOutcome(result config.WriteResult, err error) (interface{}, *Error) {
	var conflict *config.ErrConfigVersionConflict
	if errors.As(err, &conflict) {
		data, _ := json.Marshal(map[string]string{"config_write_error_code": "configVersionConflict"})
		return nil, &Error{Code: CodeConfigVersionConflict, Message: err.Error(), Data: data}
	}
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: err.Error()}
	}
	return configWriteResult{Status: result.Status, FilePath: result.FilePath}, nil
}
