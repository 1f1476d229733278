package mcp

// ResponseEnvelope is the shape of every tool response.
type ResponseEnvelope struct {
	Data     any            `json:"data"`
	Context  map[string]any `json:"context,omitempty"`
	Chart    string         `json:"chart,omitempty"`
	Warnings []string       `json:"warnings,omitempty"`
	Guidance []string       `json:"_guidance,omitempty"`
}

// WrapResponse builds an envelope; plan ends up in the context block.
func WrapResponse(data any, plan string, context map[string]any, warnings, guidance []string) ResponseEnvelope {
	if plan != "" {
		if context == nil {
			context = make(map[string]any)
		}
		context["testplan"] = plan
	}
	return ResponseEnvelope{
		Data:     data,
		Context:  context,
		Warnings: warnings,
		Guidance: guidance,
	}
}
