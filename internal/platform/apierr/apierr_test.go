package apierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func TestStatusOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"not found", fmt.Errorf("load: %w", ErrNotFound), http.StatusNotFound},
		{"invalid", fmt.Errorf("x: %w", ErrInvalidArgument), http.StatusBadRequest},
		{"conflict", ErrConflict, http.StatusConflict},
		{"explicit", New(http.StatusForbidden, "forbidden", errors.New("no")), http.StatusForbidden},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := StatusOf(tc.err); got != tc.want {
			t.Fatalf("%s: StatusOf=%d want %d", tc.name, got, tc.want)
		}
	}
}

func TestMapDB(t *testing.T) {
	if err := MapDB("op", gorm.ErrRecordNotFound); !errors.Is(err, ErrNotFound) {
		t.Fatalf("record not found should map to ErrNotFound, got %v", err)
	}
	if err := MapDB("op", &pgconn.PgError{Code: "23505"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("unique violation should map to ErrConflict, got %v", err)
	}
	if err := MapDB("op", errors.New("UNIQUE constraint failed: gate_verification_record.user_id")); !errors.Is(err, ErrConflict) {
		t.Fatalf("sqlite unique violation should map to ErrConflict, got %v", err)
	}
	if err := MapDB("op", &pgconn.PgError{Code: "40001"}); !errors.Is(err, ErrRetryable) {
		t.Fatalf("serialization failure should be retryable, got %v", err)
	}
	if err := MapDB("op", context.DeadlineExceeded); !errors.Is(err, ErrRetryable) {
		t.Fatalf("deadline should be retryable, got %v", err)
	}
	if MapDB("op", nil) != nil {
		t.Fatalf("nil should stay nil")
	}
}
