package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
)

func TestPriorityIsValid(t *testing.T) {
	for _, p := range []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent} {
		if !p.IsValid() {
			t.Fatalf("expected %q to be valid", p)
		}
	}
	for _, p := range []Priority{"", "critical", "HIGH", " low"} {
		if p.IsValid() {
			t.Fatalf("expected %q to be invalid", p)
		}
	}
}

func TestNewTaskDefaults(t *testing.T) {
	now := time.Date(2024, 3, 5, 10, 20, 30, 456_000_000, time.FixedZone("X", 2*3600))
	task := NewTask("TASK-1", "Fix bug", "", PriorityHigh, now)

	if task.Status != StatusPending {
		t.Fatalf("expected pending status, got %q", task.Status)
	}
	if task.CreatedAt != "2024-03-05T08:20:30.456Z" {
		t.Fatalf("unexpected createdAt: %s", task.CreatedAt)
	}
}

func TestTaskMarshalFieldOrderAndEmptyDescription(t *testing.T) {
	task := Task{ID: "TASK-1", Title: "t", Priority: PriorityLow, Status: StatusPending, CreatedAt: "2024-01-01T00:00:00.000Z"}

	payload, err := sonic.Marshal(task)
	if err != nil {
		t.Fatalf("marshal task: %v", err)
	}

	want := `{"taskId":"TASK-1","title":"t","description":"","priority":"low","status":"pending","createdAt":"2024-01-01T00:00:00.000Z"}`
	if string(payload) != want {
		t.Fatalf("unexpected payload:\n got %s\nwant %s", payload, want)
	}
	if !strings.Contains(string(payload), `"description":""`) {
		t.Fatalf("expected description field to be present, got %s", payload)
	}
}
