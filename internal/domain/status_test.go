package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-order-core/internal/domain"
)

func TestStatus_Valid(t *testing.T) {
	for _, s := range domain.Statuses {
		assert.True(t, s.Valid(), "%s should be valid", s)
	}
	for _, s := range []domain.Status{"", "PENDING", "refunded", "unknown"} {
		assert.False(t, s.Valid(), "%q should be invalid", s)
	}
}

func TestStatus_Terminal(t *testing.T) {
	terminal := map[domain.Status]bool{
		domain.StatusDelivered: true,
		domain.StatusCanceled:  true,
	}
	for _, s := range domain.Statuses {
		assert.Equal(t, terminal[s], s.Terminal(), "terminal(%s)", s)
		if s.Terminal() {
			assert.Empty(t, domain.NextStatuses(s), "terminal %s must have no outgoing edges", s)
		}
	}
}

func TestCanTransition_Table(t *testing.T) {
	allowed := map[[2]domain.Status]bool{
		{domain.StatusPending, domain.StatusProcessing}:  true,
		{domain.StatusPending, domain.StatusPaid}:        true,
		{domain.StatusPending, domain.StatusCanceled}:    true,
		{domain.StatusProcessing, domain.StatusPaid}:     true,
		{domain.StatusProcessing, domain.StatusCanceled}: true,
		{domain.StatusPaid, domain.StatusShipped}:        true,
		{domain.StatusShipped, domain.StatusDelivered}:   true,
	}

	for _, from := range domain.Statuses {
		for _, to := range domain.Statuses {
			want := allowed[[2]domain.Status{from, to}]
			assert.Equal(t, want, domain.CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestCanTransition_NoSelfEdgesAndNoCancelAfterPayment(t *testing.T) {
	for _, s := range domain.Statuses {
		assert.False(t, domain.CanTransition(s, s), "self edge %s", s)
	}
	for _, s := range []domain.Status{domain.StatusPaid, domain.StatusShipped, domain.StatusDelivered} {
		assert.False(t, domain.CanTransition(s, domain.StatusCanceled), "%s must not be cancelable", s)
	}
}

func TestTransitionTable_IsAcyclic(t *testing.T) {
	// Depth-first search for a back edge starting from every status.
	const (
		white = iota
		grey
		black
	)
	color := map[domain.Status]int{}
	var visit func(s domain.Status)
	visit = func(s domain.Status) {
		color[s] = grey
		for _, next := range domain.NextStatuses(s) {
			require.NotEqual(t, grey, color[next], "cycle through %s -> %s", s, next)
			if color[next] == white {
				visit(next)
			}
		}
		color[s] = black
	}
	for _, s := range domain.Statuses {
		if color[s] == white {
			visit(s)
		}
	}
}

func TestNextStatuses_ReturnsCopy(t *testing.T) {
	next := domain.NextStatuses(domain.StatusPending)
	require.NotEmpty(t, next)
	next[0] = domain.StatusDelivered
	assert.False(t, domain.CanTransition(domain.StatusPending, domain.StatusDelivered))
}

func TestParseStatus(t *testing.T) {
	s, ok := domain.ParseStatus("shipped")
	require.True(t, ok)
	assert.Equal(t, domain.StatusShipped, s)

	_, ok = domain.ParseStatus("lost")
	assert.False(t, ok)
}
