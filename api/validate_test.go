package api

import (
	"errors"
	"testing"
)

func TestValidateCreateTask(t *testing.T) {
	tests := []struct {
		name string
		req  createTaskRequest
		want string
	}{
		{name: "valid", req: createTaskRequest{Title: "t", Priority: "medium"}},
		{name: "whitespace title is accepted", req: createTaskRequest{Title: " ", Priority: "low"}},
		{name: "no title", req: createTaskRequest{Priority: "low"}, want: msgRequired},
		{name: "no priority", req: createTaskRequest{Title: "t"}, want: msgRequired},
		{name: "unknown priority", req: createTaskRequest{Title: "t", Priority: "critical"}, want: msgInvalidPriority},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateCreateTask(&tt.req)
			if tt.want == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Message != tt.want {
				t.Fatalf("expected %q got %q", tt.want, verr.Message)
			}
		})
	}
}
