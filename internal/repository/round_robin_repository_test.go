package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

func TestRedisRoundRobinKey(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{prefix: "helpdesk:rr", want: "helpdesk:rr:AGENT"},
		{prefix: "helpdesk:rr:", want: "helpdesk:rr:AGENT"},
		{prefix: "", want: "helpdesk:rr:AGENT"},
		{prefix: "tenant-a:cursor", want: "tenant-a:cursor:AGENT"},
	}
	for _, tc := range tests {
		t.Run(tc.prefix, func(t *testing.T) {
			repo := NewRedisRoundRobinRepository(nil, tc.prefix).(*redisRoundRobinRepository)
			assert.Equal(t, tc.want, repo.key(domain.StaffRoleAgent))
		})
	}
}
