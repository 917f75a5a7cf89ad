package envelope

import (
	"recast/internal/errors"
)

// Builder constructs Response envelopes using a fluent API.
type Builder struct {
	resp *Response
}

// New creates a new envelope builder.
func New() *Builder {
	return &Builder{
		resp: &Response{
			SchemaVersion: CurrentSchemaVersion,
		},
	}
}

// Data sets the tool-specific payload.
func (b *Builder) Data(data interface{}) *Builder {
	b.resp.Data = data
	return b
}

// Warning appends a non-fatal warning.
func (b *Builder) Warning(code, message string) *Builder {
	b.resp.Warnings = append(b.resp.Warnings, Warning{Code: code, Message: message})
	return b
}

// Error records a failure. Structured errors contribute their code,
// details and suggested fixes; anything else becomes INTERNAL_ERROR.
func (b *Builder) Error(err error) *Builder {
	if err == nil {
		return b
	}
	info := &ErrorInfo{
		Code:    string(errors.InternalError),
		Message: err.Error(),
	}
	var re *errors.RecastError
	if errors.As(err, &re) {
		info.Code = string(re.Code)
		info.Message = re.Message
		info.Details = re.Details
		for _, fix := range re.SuggestedFixes {
			info.SuggestedFixes = append(info.SuggestedFixes, FixAction{
				Command:     fix.Command,
				Description: fix.Description,
				Safe:        fix.Safe,
			})
		}
	}
	b.resp.Error = info
	return b
}

// Suggest appends a follow-up call recommendation.
func (b *Builder) Suggest(tool, reason string, params map[string]interface{}) *Builder {
	b.resp.SuggestedNextCalls = append(b.resp.SuggestedNextCalls, SuggestedCall{
		Tool:   tool,
		Params: params,
		Reason: reason,
	})
	return b
}

// Build returns the assembled response. Data defaults to an empty
// object so clients never see a null payload.
func (b *Builder) Build() *Response {
	if b.resp.Data == nil && b.resp.Error == nil {
		b.resp.Data = map[string]interface{}{}
	}
	return b.resp
}
