package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/examprep/backend/internal/store"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"serialization failure", &pq.Error{Code: "40001"}, store.ErrStale},
		{"deadlock", &pq.Error{Code: "40P01"}, store.ErrStale},
		{"malformed uuid", &pq.Error{Code: "22P02"}, store.ErrNotFound},
		{"unique violation", &pq.Error{Code: "23505"}, store.ErrDuplicate},
		{"wrapped", fmt.Errorf("complete attempt: %w", &pq.Error{Code: "40001"}), store.ErrStale},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, classify(tt.err), tt.want)
		})
	}
}

func TestClassify_PassesThroughOtherErrors(t *testing.T) {
	plain := errors.New("connection refused")
	assert.Equal(t, plain, classify(plain))

	fk := &pq.Error{Code: "23503"}
	got := classify(fk)
	assert.NotErrorIs(t, got, store.ErrStale)
	assert.NotErrorIs(t, got, store.ErrDuplicate)
}
