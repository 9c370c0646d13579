package runtime

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/studyforge-backend/internal/domain"
)

func TestHandlersValidate(t *testing.T) {
	h := Handlers{
		AssetGenerate: HandlerFunc[AssetGenerate](func(c *Context, p AssetGenerate) (any, error) { return nil, nil }),
	}
	err := h.Validate()
	if err == nil {
		t.Fatalf("expected missing handlers error")
	}
	for _, jt := range []string{JobTypeReportGenerate, JobTypeReminderSend} {
		if !strings.Contains(err.Error(), jt) {
			t.Fatalf("error %q does not mention %s", err, jt)
		}
	}
}

func TestDispatchRoutesByType(t *testing.T) {
	asset := uuid.New()
	var got uuid.UUID
	assets := HandlerFunc[AssetGenerate](func(c *Context, p AssetGenerate) (any, error) {
		got = p.AssetID
		return map[string]any{"ok": true}, nil
	})
	h := Handlers{
		AssetGenerate:  assets,
		ReportGenerate: HandlerFunc[ReportGenerate](func(c *Context, p ReportGenerate) (any, error) { return nil, errors.New("wrong") }),
		ReminderSend:   HandlerFunc[ReminderSend](func(c *Context, p ReminderSend) (any, error) { return nil, errors.New("wrong") }),
	}
	if err := h.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	raw, err := Encode(AssetGenerate{AssetID: asset})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	c := &Context{Job: &types.BackgroundJob{JobType: JobTypeAssetGenerate, Payload: raw}}
	if _, err := h.Dispatch(c); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got != asset {
		t.Fatalf("asset=%s want %s", got, asset)
	}
	if _, ok := c.Payload().(AssetGenerate); !ok {
		t.Fatalf("payload=%T", c.Payload())
	}
}

func TestDispatchBadPayloadIsPermanent(t *testing.T) {
	h := Handlers{}
	cases := []*types.BackgroundJob{
		{JobType: JobTypeAssetGenerate, Payload: []byte(`{}`)},
		{JobType: JobTypeReminderSend, Payload: []byte(`not json`)},
		{JobType: "mystery", Payload: []byte(`{}`)},
	}
	for _, job := range cases {
		_, err := h.Dispatch(&Context{Job: job})
		if !IsPermanent(err) {
			t.Fatalf("%s: err=%v want permanent", job.JobType, err)
		}
	}
}

func TestRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	boom := errors.New("boom")

	at, ok := p.Next(1, 3, boom, now)
	if !ok || !at.Equal(now.Add(60*time.Second)) {
		t.Fatalf("attempt 1: at=%v ok=%v", at, ok)
	}
	at, ok = p.Next(2, 3, boom, now)
	if !ok || !at.Equal(now.Add(120*time.Second)) {
		t.Fatalf("attempt 2: at=%v ok=%v", at, ok)
	}
	if _, ok := p.Next(3, 3, boom, now); ok {
		t.Fatalf("attempt 3 of 3 must fail")
	}
	if _, ok := p.Next(1, 3, Permanent(boom), now); ok {
		t.Fatalf("permanent errors must not retry")
	}
	if !errors.Is(fmt.Errorf("wrapped: %w", Permanent(boom)), boom) {
		t.Fatalf("Permanent must unwrap")
	}
	if !IsPermanent(fmt.Errorf("wrapped: %w", Permanent(boom))) {
		t.Fatalf("IsPermanent must see through wrapping")
	}
}

