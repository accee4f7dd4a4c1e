package agent

import "context"

// NotImplemented 是尚未接入真实能力的占位 agent，Process 总是返回失败结果。
type NotImplemented struct {
	Base
	Description string
}

func NewNotImplemented(name, description string) *NotImplemented {
	return &NotImplemented{Base: Base{Config: NewConfig(name)}, Description: description}
}

func (a *NotImplemented) Process(context.Context, map[string]any) (Result, error) {
	return Result{
		Success: false,
		Error:   a.Config.Name + " agent is not implemented yet",
		Metadata: map[string]any{
			"description": a.Description,
		},
	}, nil
}

// Defaults 返回服务启动时注册的 agent。
func Defaults() []Agent {
	return []Agent{
		NewNotImplemented("research", "paper search and retrieval-augmented answers"),
		NewNotImplemented("resume", "resume analysis and job matching"),
	}
}
