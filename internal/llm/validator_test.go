package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateApprove(t *testing.T) {
	provider := &fakeProvider{
		available: true,
		reply:     "APPROVE\nRenames a file inside the project directory.",
	}
	v := NewValidator(provider)

	verdict, err := v.Validate(context.Background(), "mv old.txt new.txt", "bash")
	require.NoError(t, err)

	assert.True(t, verdict.Approved)
	assert.Equal(t, "Renames a file inside the project directory.", verdict.Rationale)

	require.NotNil(t, provider.lastReq)
	assert.Contains(t, provider.lastReq.Messages[0].Content, "mv old.txt new.txt")
	assert.Contains(t, provider.lastReq.Messages[0].Content, "bash")
}

func TestValidateDeny(t *testing.T) {
	provider := &fakeProvider{
		available: true,
		reply:     "DENY: overwrites the system hosts file",
	}
	v := NewValidator(provider)

	verdict, err := v.Validate(context.Background(), "cp hosts /etc/hosts", "bash")
	require.NoError(t, err)

	assert.False(t, verdict.Approved)
	assert.Equal(t, "overwrites the system hosts file", verdict.Rationale)
}

func TestValidateTransportError(t *testing.T) {
	provider := &fakeProvider{
		available: true,
		err:       errors.New("connection refused"),
	}
	v := NewValidator(provider)

	verdict, err := v.Validate(context.Background(), "git push", "bash")
	require.Error(t, err)
	assert.Nil(t, verdict)
}

func TestValidateNoProvider(t *testing.T) {
	v := NewValidator(nil)
	_, err := v.Validate(context.Background(), "git push", "bash")
	require.Error(t, err)

	v = NewValidator(&fakeProvider{available: false})
	_, err = v.Validate(context.Background(), "git push", "bash")
	require.Error(t, err)
}

func TestValidateCanceled(t *testing.T) {
	provider := &fakeProvider{
		available: true,
		err:       errors.New("request aborted"),
	}
	v := NewValidator(provider)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := v.Validate(ctx, "git push", "bash")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name          string
		reply         string
		wantApproved  bool
		wantRationale string
	}{
		{
			"approve with reason on second line",
			"APPROVE\nRead-only directory listing.",
			true,
			"Read-only directory listing.",
		},
		{
			"deny with inline reason",
			"DENY: deletes files outside the working directory",
			false,
			"deletes files outside the working directory",
		},
		{
			"lowercase verdict accepted",
			"approve\nlooks fine",
			true,
			"looks fine",
		},
		{
			"trailing punctuation stripped",
			"DENY.",
			false,
			"denied by validator",
		},
		{
			"deny without reason gets a default",
			"DENY",
			false,
			"denied by validator",
		},
		{
			"blank line before rationale",
			"APPROVE\n\nStandard version query.",
			true,
			"Standard version query.",
		},
		{
			"prose is not an approval",
			"I think this command is probably fine to run.",
			false,
			`unrecognized validator reply "I think this command is probably fine to run."`,
		},
		{
			"approved is not approve",
			"APPROVED\nlooks fine",
			false,
			`unrecognized validator reply "APPROVED"`,
		},
		{
			"empty reply",
			"   \n  ",
			false,
			"empty validator reply",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseVerdict(tt.reply)
			assert.Equal(t, tt.wantApproved, got.Approved)
			assert.Equal(t, tt.wantRationale, got.Rationale)
		})
	}
}
