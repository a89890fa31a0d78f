package engine

import (
	"errors"
	"testing"

	"github.com/shaiso/Relay/internal/jsonv"
)

func TestNormalize_Array(t *testing.T) {
	steps, err := ParseSteps([]byte(`[
		{"id": "post", "method": "get", "endpoint": "https://api.test", "url_ext": "/posts/1", "group": "g1"},
		{"action": "POST", "endpoint": "https://api.test", "body": {"a": 1}},
		{"_key": "named", "timeoutMs": 500, "retries": 0, "collect": "first", "outputAs": "data.x"}
	]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(steps))
	}

	// Явный id
	if steps[0].ID != "post" {
		t.Errorf("expected id post, got %s", steps[0].ID)
	}
	if steps[0].HTTPMethod() != "GET" {
		t.Errorf("expected GET, got %s", steps[0].HTTPMethod())
	}
	if steps[0].URL() != "https://api.test/posts/1" {
		t.Errorf("unexpected url %s", steps[0].URL())
	}
	if steps[0].Group == nil || *steps[0].Group != "g1" {
		t.Errorf("expected group g1, got %v", steps[0].Group)
	}

	// Сгенерированный id и action вместо method
	if steps[1].ID != "s2" {
		t.Errorf("expected generated id s2, got %s", steps[1].ID)
	}
	if steps[1].HTTPMethod() != "POST" {
		t.Errorf("expected POST from action, got %s", steps[1].HTTPMethod())
	}
	if steps[1].Group != nil {
		t.Errorf("expected default group, got %v", *steps[1].Group)
	}
	if !jsonv.Equal(steps[1].Body, jsonv.MustParse(`{"a":1}`)) {
		t.Errorf("unexpected body %s", steps[1].Body.Text())
	}

	// _key внутри элемента массива
	s := steps[2]
	if s.ID != "named" {
		t.Errorf("expected id from _key, got %s", s.ID)
	}
	if s.TimeoutMs == nil || *s.TimeoutMs != 500 {
		t.Errorf("expected timeoutMs 500, got %v", s.TimeoutMs)
	}
	if s.Retries == nil || *s.Retries != 0 {
		t.Errorf("expected explicit retries 0, got %v", s.Retries)
	}
	if s.Collect != "first" || s.OutputAs != "data.x" {
		t.Errorf("unexpected collect/outputAs: %q %q", s.Collect, s.OutputAs)
	}
}

func TestNormalize_Object(t *testing.T) {
	steps, err := ParseSteps([]byte(`{
		"user":  {"url_ext": "/u"},
		"posts": {"id": "custom"},
		"third": {}
	}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []struct{ id, key string }{
		{"user", "user"},
		{"custom", "posts"},
		{"third", "third"},
	}
	if len(steps) != len(want) {
		t.Fatalf("expected %d steps, got %d", len(want), len(steps))
	}
	for i, w := range want {
		if steps[i].ID != w.id || steps[i].Key != w.key {
			t.Errorf("step %d: expected id=%s key=%s, got id=%s key=%s",
				i, w.id, w.key, steps[i].ID, steps[i].Key)
		}
	}
}

func TestNormalize_Fields(t *testing.T) {
	steps, err := ParseSteps([]byte(`[{
		"group": null,
		"headers": {"X-Num": 5, "X-Str": "a", "X-Null": null},
		"extract": {"second": "b.c", "first": "a"},
		"timeoutMs": "fast"
	}]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := steps[0]

	if s.Group != nil {
		t.Error("group null should mean default group")
	}
	if s.Headers["X-Num"] != "5" || s.Headers["X-Str"] != "a" {
		t.Errorf("unexpected headers %v", s.Headers)
	}
	if _, ok := s.Headers["X-Null"]; ok {
		t.Error("null header should be skipped")
	}
	if len(s.Extract) != 2 || s.Extract[0].Field != "second" || s.Extract[1].Path != "a" {
		t.Errorf("extract should keep declaration order, got %v", s.Extract)
	}
	if s.TimeoutMs != nil {
		t.Error("non-numeric timeoutMs should be ignored")
	}
	if s.HasBody() {
		t.Error("absent body should be null")
	}
}

func TestNormalize_InvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{name: "string", input: `"steps"`, want: ErrInvalidInput},
		{name: "number", input: `42`, want: ErrInvalidInput},
		{name: "null", input: `null`, want: ErrInvalidInput},
		{name: "broken json", input: `[{`, want: ErrInvalidInput},
		{name: "scalar element", input: `[{"id":"a"}, 5]`, want: ErrInvalidStep},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSteps([]byte(tt.input))
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestNormalize_ValidationErrorContext(t *testing.T) {
	_, err := ParseSteps([]byte(`{"ok": {}, "bad": [1]}`))

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if vErr.Key != "bad" || vErr.Index != 2 {
		t.Errorf("unexpected context: key=%s index=%d", vErr.Key, vErr.Index)
	}
	if vErr.Error() != `step "bad": expected object, got array` {
		t.Errorf("unexpected message: %s", vErr.Error())
	}
}

func TestNormalize_Empty(t *testing.T) {
	steps, err := ParseSteps([]byte(`[]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(steps) != 0 {
		t.Errorf("expected no steps, got %d", len(steps))
	}
}
