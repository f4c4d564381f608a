package tool

import (
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/echanatwell/ArxivAgent/agent/contract"
)

// Registry maps tool names to capabilities. It is populated at setup and
// read-only afterwards.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]contractx.Tool
	order []string
}

var _ contractx.ToolResolver = (*Registry)(nil)

func NewRegistry(tools ...contractx.Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]contractx.Tool, len(tools))}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(t contractx.Tool) error {
	if t == nil {
		return fmt.Errorf("%w: tool is nil", contractx.ErrValidation)
	}
	name := strings.TrimSpace(t.Name())

	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		return fmt.Errorf("%w: tool name is empty", contractx.ErrDuplicateTool)
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", contractx.ErrDuplicateTool, name)
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

func (r *Registry) Resolve(name string) (contractx.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", contractx.ErrUnknownTool, name)
	}
	return t, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Infos describes the registered tools to the reasoning model, in
// registration order.
func (r *Registry) Infos() []*schema.ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]*schema.ToolInfo, 0, len(r.order))
	for _, name := range r.order {
		infos = append(infos, ToolInfo(r.tools[name].Spec()))
	}
	return infos
}

func ToolInfo(spec contractx.ToolSpec) *schema.ToolInfo {
	params := make(map[string]*schema.ParameterInfo, len(spec.Params))
	for name, p := range spec.Params {
		params[name] = &schema.ParameterInfo{
			Type:     paramDataType(p.Type),
			Desc:     p.Desc,
			Required: p.Required,
		}
	}
	return &schema.ToolInfo{
		Name:        spec.Name,
		Desc:        spec.Description,
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}
}

func paramDataType(t contractx.ParamType) schema.DataType {
	switch t {
	case contractx.ParamInteger:
		return schema.Integer
	default:
		return schema.String
	}
}
